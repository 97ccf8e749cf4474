// Package scanner reconciles on-disk reality with the history index
// (C6), either on a timer, at startup, or on explicit request.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ftm-project/ftm/internal/core/hasher"
	"github.com/ftm-project/ftm/internal/core/history"
	"github.com/ftm-project/ftm/internal/core/pattern"
)

// Result is the {created, modified, deleted} count a scan reports.
type Result struct {
	Created  int `json:"created"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
}

// Upserter is the subset of Engine behavior a scan needs to record a
// create/modify, kept as an interface so scanner doesn't import engine
// (which imports scanner) and to keep unit tests free of HTTP/watcher
// wiring.
type Upserter interface {
	Upsert(file, checksum string, size int64, data []byte) (created bool, err error)
	Delete(file string) error
}

// Scanner walks root, honoring matcher excludes to prune directories,
// and reconciles against idx via up.
type Scanner struct {
	root    string
	matcher atomic.Pointer[pattern.Matcher]
	idx     *history.Index
	up      Upserter
	maxFile int64

	mu      sync.Mutex
	running bool
	waiters []chan Result
	last    Result
}

func New(root string, matcher *pattern.Matcher, idx *history.Index, up Upserter, maxFileSize int64) *Scanner {
	s := &Scanner{root: root, idx: idx, up: up, maxFile: maxFileSize}
	s.matcher.Store(matcher)
	return s
}

// SetMatcher swaps the pattern matcher used by future scans, e.g. after
// a config change alters watch patterns or excludes.
func (s *Scanner) SetMatcher(m *pattern.Matcher) {
	s.matcher.Store(m)
}

// Scan runs a full reconciliation pass. Concurrent callers while a scan
// is already in progress are deduplicated: they block and receive the
// in-flight scan's result rather than starting a second pass.
func (s *Scanner) Scan() (Result, error) {
	s.mu.Lock()
	if s.running {
		wait := make(chan Result, 1)
		s.waiters = append(s.waiters, wait)
		s.mu.Unlock()
		return <-wait, nil
	}
	s.running = true
	s.mu.Unlock()

	result, err := s.run()

	s.mu.Lock()
	s.running = false
	s.last = result
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w <- result
	}
	return result, err
}

func (s *Scanner) run() (Result, error) {
	var result Result
	visited := make(map[string]struct{})
	m := s.matcher.Load()

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // transient I/O error on one entry: skip, keep scanning
		}
		if p == s.root {
			return nil
		}
		rel := pattern.NormalizePath(relTo(s.root, p))

		if d.IsDir() {
			if m.ExcludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !m.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > s.maxFile {
			return nil // TooLarge or unreadable: skip silently, as at event time
		}

		visited[rel] = struct{}{}

		res, err := hasher.Read(p, s.maxFile)
		if err != nil {
			return nil
		}
		if res.Checksum == s.idx.LatestChecksum(rel) {
			return nil // unchanged
		}

		created, err := s.up.Upsert(rel, res.Checksum, res.Size, res.Bytes)
		if err != nil {
			return nil
		}
		if created {
			result.Created++
		} else {
			result.Modified++
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	for file, node := range s.idx.Files(false) {
		s.walkDeletes(file, node, visited, &result, m)
	}
	return result, nil
}

// walkDeletes descends the index's file tree looking for tracked paths
// that were not visited by the walk above (and still match current
// patterns — a path excluded by a config change is left alone rather
// than force-deleted).
func (s *Scanner) walkDeletes(prefix string, node *history.FileNode, visited map[string]struct{}, result *Result, m *pattern.Matcher) {
	if node.Children == nil {
		if _, ok := visited[prefix]; ok {
			return
		}
		if !m.Match(prefix) {
			return
		}
		if s.idx.LatestChecksum(prefix) == "" {
			return
		}
		if err := s.up.Delete(prefix); err == nil {
			result.Deleted++
		}
		return
	}
	for name, child := range node.Children {
		s.walkDeletes(prefix+"/"+name, child, visited, result, m)
	}
}

func relTo(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return rel
}
