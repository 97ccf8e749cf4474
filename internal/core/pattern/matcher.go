// Package pattern implements the glob include/exclude decision for a path
// relative to a watched root (C1 in the engine design).
package pattern

import (
	"path"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a relative, forward-slash path is tracked.
//
// A path matches iff it satisfies at least one include pattern and no
// exclude pattern. Excludes are also checked against every ancestor
// prefix of the path so that a rule like "**/node_modules/**" prunes
// descent during a directory walk, not just the leaf file.
type Matcher struct {
	includes []string
	excludes []string
}

// New builds a Matcher from config.yaml's watch.patterns/watch.exclude.
// An empty includes list matches nothing; callers that want "match
// everything" should pass []string{"**"}.
func New(includes, excludes []string) *Matcher {
	m := &Matcher{
		includes: normalizeAll(includes),
		excludes: normalizeAll(excludes),
	}
	return m
}

func normalizeAll(pats []string) []string {
	out := make([]string, len(pats))
	for i, p := range pats {
		out[i] = normalizeCase(path.Clean(filepathToSlash(p)))
	}
	return out
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// normalizeCase lower-cases patterns and paths on platforms where the
// filesystem itself is case-insensitive, per spec.md §4.1.
func normalizeCase(p string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(p)
	}
	return p
}

// NormalizePath converts an OS path to the forward-slash, cleaned form
// the matcher and the rest of the engine operate on.
func NormalizePath(p string) string {
	p = filepathToSlash(p)
	if p == "." {
		return p
	}
	return strings.TrimPrefix(path.Clean(p), "./")
}

// Match reports whether rel (already normalized) is tracked.
func (m *Matcher) Match(rel string) bool {
	rel = normalizeCase(rel)

	matched := false
	for _, inc := range m.includes {
		if ok, _ := doublestar.Match(inc, rel); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	return !m.excluded(rel)
}

// ExcludesDir reports whether a directory (and everything under it)
// should be pruned from a tree walk: true when the directory path
// itself, or any ancestor prefix of it, matches an exclude pattern.
func (m *Matcher) ExcludesDir(rel string) bool {
	return m.excluded(normalizeCase(rel))
}

func (m *Matcher) excluded(rel string) bool {
	for _, exc := range m.excludes {
		if ok, _ := doublestar.Match(exc, rel); ok {
			return true
		}
	}

	// Check every ancestor prefix so "**/node_modules/**" prunes descent
	// into node_modules even when matched against the directory itself
	// rather than a file beneath it.
	segs := strings.Split(rel, "/")
	for i := 1; i < len(segs); i++ {
		prefix := strings.Join(segs[:i], "/")
		for _, exc := range m.excludes {
			if ok, _ := doublestar.Match(exc, prefix); ok {
				return true
			}
			if ok, _ := doublestar.Match(exc, prefix+"/"); ok {
				return true
			}
		}
	}
	return false
}
