// Package history implements the global history index (C3): an
// append-only, ordered sequence of file events with a derived per-file
// view, persisted as JSON under temp-file-plus-rename discipline.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ftm-project/ftm/internal/errors"
)

// Op is the closed three-element variant for a history entry. Modeled as
// a string type whose values are the exact literals the JSON wire format
// uses, never a bare int enum.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Entry is one append-only record. Checksum and Size are omitted on the
// wire (via omitempty) when Op is delete.
type Entry struct {
	Timestamp int64  `json:"timestamp"`
	File      string `json:"file"`
	Op        Op     `json:"op"`
	Checksum  string `json:"checksum,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// AppendResult reports what append actually did, so callers (the engine's
// per-file state machine) can decide whether a snapshot put is still
// needed.
type AppendResult int

const (
	Appended AppendResult = iota
	Unchanged
)

// onDisk is the persisted shape of index.json.
type onDisk struct {
	Entries []Entry `json:"entries"`
}

// Index is the in-memory representation: an ordered sequence of entries
// plus a derived path → []position lookup, rebuilt from the sequence on
// load and kept in sync on every append and trim.
type Index struct {
	mu      sync.RWMutex
	path    string // .ftm/index.json
	entries []Entry
	byFile  map[string][]int // file -> positions into entries, ascending

	quota *Quota

	persistMu      sync.Mutex
	dirty          bool
	coalesceTimer  *time.Timer
	coalesceWindow time.Duration
}

// Load reads an existing index.json (or starts empty if absent) and
// rebuilds the per-file map.
func Load(path string, quota *Quota) (*Index, error) {
	idx := &Index{
		path:           path,
		byFile:         make(map[string][]int),
		quota:          quota,
		coalesceWindow: 100 * time.Millisecond,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			quota.attach(idx)
			return idx, nil
		}
		return nil, errors.IO("failed to read index.json", err)
	}

	var d onDisk
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Corrupt("index.json", err)
	}
	idx.entries = d.Entries
	idx.rebuildFileIndex()
	quota.attach(idx)
	return idx, nil
}

func (idx *Index) rebuildFileIndex() {
	idx.byFile = make(map[string][]int, len(idx.entries))
	for i, e := range idx.entries {
		idx.byFile[e.File] = append(idx.byFile[e.File], i)
	}
}

// latestLocked returns the last entry for file, assuming the caller
// already holds idx.mu.
func (idx *Index) latestLocked(file string) (Entry, bool) {
	positions := idx.byFile[file]
	if len(positions) == 0 {
		return Entry{}, false
	}
	return idx.entries[positions[len(positions)-1]], true
}

// LatestChecksum returns the checksum of the most recent non-delete
// entry for file, or "" if the file has no entries or was last deleted.
func (idx *Index) LatestChecksum(file string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.latestLocked(file)
	if !ok || e.Op == OpDelete {
		return ""
	}
	return e.Checksum
}

// IsTracked reports whether file currently has a non-delete latest entry.
func (idx *Index) IsTracked(file string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.latestLocked(file)
	return ok && e.Op != OpDelete
}

// Append validates invariants 4 and 5, then appends, trims under quota,
// and schedules a persist. A duplicate-checksum modify is a no-op
// returning Unchanged rather than an error.
func (idx *Index) Append(file string, op Op, checksum string, size int64) (AppendResult, error) {
	idx.mu.Lock()

	prev, hasPrev := idx.latestLocked(file)

	if op == OpDelete {
		// Invariant 5: a delete is only valid if the prior entry for F is
		// not itself a delete (or F has no history at all, in which case
		// there is nothing to delete — treat as a no-op).
		if !hasPrev || prev.Op == OpDelete {
			idx.mu.Unlock()
			return Unchanged, nil
		}
	} else {
		// Invariant 4: suppress a no-op modify/create with an identical
		// checksum to the immediately preceding entry.
		if hasPrev && prev.Op != OpDelete && prev.Checksum == checksum {
			idx.mu.Unlock()
			return Unchanged, nil
		}
	}

	entry := Entry{
		Timestamp: nowMillis(),
		File:      file,
		Op:        op,
		Checksum:  checksum,
		Size:      size,
	}
	if op == OpDelete {
		entry.Checksum = ""
		entry.Size = 0
	}

	idx.entries = append(idx.entries, entry)
	idx.byFile[file] = append(idx.byFile[file], len(idx.entries)-1)

	if idx.quota != nil {
		idx.quota.enforceLocked(idx)
	}

	idx.mu.Unlock()

	idx.schedulePersist()
	return Appended, nil
}

// History returns the ordered entries for file.
func (idx *Index) History(file string) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	positions := idx.byFile[file]
	out := make([]Entry, 0, len(positions))
	for _, p := range positions {
		out = append(out, idx.entries[p])
	}
	return out
}

// Activity returns every entry with since <= timestamp <= until (zero
// time on either bound means unbounded), sorted ascending by timestamp.
// When includeDeleted is false, delete entries are left out; the create
// and modify entries of a file are returned even if that file's latest
// entry is a delete.
func (idx *Index) Activity(since, until time.Time, includeDeleted bool) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var sinceMs, untilMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}
	if !until.IsZero() {
		untilMs = until.UnixMilli()
	} else {
		untilMs = int64(1)<<63 - 1
	}

	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if e.Timestamp < sinceMs || e.Timestamp > untilMs {
			continue
		}
		if !includeDeleted && e.Op == OpDelete {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// FileNode is one node of the tree returned by Files: either a leaf
// (Count set) or an interior node (Children set).
type FileNode struct {
	Name     string               `json:"name"`
	Count    int                  `json:"count,omitempty"`
	Children map[string]*FileNode `json:"children,omitempty"`
}

// Files builds a trie keyed by path segment from the flat per-file map,
// fresh on every call — no persistent parent pointers are kept, per the
// design note on cyclic references.
func (idx *Index) Files(includeDeleted bool) map[string]*FileNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	root := make(map[string]*FileNode)
	for file, positions := range idx.byFile {
		if len(positions) == 0 {
			continue
		}
		latest := idx.entries[positions[len(positions)-1]]
		if !includeDeleted && latest.Op == OpDelete {
			continue
		}
		insertPath(root, strings.Split(file, "/"), len(positions))
	}
	return root
}

func insertPath(level map[string]*FileNode, segs []string, count int) {
	seg := segs[0]
	node, ok := level[seg]
	if !ok {
		node = &FileNode{Name: seg}
		level[seg] = node
	}
	if len(segs) == 1 {
		node.Count = count
		return
	}
	if node.Children == nil {
		node.Children = make(map[string]*FileNode)
	}
	insertPath(node.Children, segs[1:], count)
}

// removeLocked drops the entry at sequence position pos, fixing up
// byFile positions for every entry that shifted. Caller holds idx.mu.
func (idx *Index) removeLocked(pos int) Entry {
	removed := idx.entries[pos]
	idx.entries = append(idx.entries[:pos], idx.entries[pos+1:]...)
	idx.rebuildFileIndex()
	return removed
}

func (idx *Index) schedulePersist() {
	idx.persistMu.Lock()
	idx.dirty = true
	if idx.coalesceTimer == nil {
		idx.coalesceTimer = time.AfterFunc(idx.coalesceWindow, idx.flushTimer)
	}
	idx.persistMu.Unlock()
}

func (idx *Index) flushTimer() {
	idx.persistMu.Lock()
	idx.coalesceTimer = nil
	idx.persistMu.Unlock()
	_ = idx.Flush()
}

// Flush persists the current entries to index.json via temp-file-plus-
// rename, regardless of the coalescer's timer state. Safe to call
// concurrently; callers on shutdown must call this to guarantee the last
// batch isn't lost.
func (idx *Index) Flush() error {
	idx.persistMu.Lock()
	if !idx.dirty {
		idx.persistMu.Unlock()
		return nil
	}
	idx.dirty = false
	idx.persistMu.Unlock()

	idx.mu.RLock()
	d := onDisk{Entries: idx.entries}
	idx.mu.RUnlock()

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.IO("failed to marshal index.json", err)
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IO("failed to create index directory", err)
	}
	tmp, err := os.CreateTemp(dir, "index.json.*")
	if err != nil {
		return errors.IO("failed to create temp index file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IO("failed to write temp index file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IO("failed to fsync temp index file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.IO("failed to close temp index file", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		os.Remove(tmpName)
		return errors.IO("failed to rename temp index file into place", err)
	}
	return nil
}

// Stats reports the current count and quota configuration, consumed by
// /api/stats.
func (idx *Index) Stats() (count int, maxHistory int, quotaBytes int64, maxQuota int64) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	count = len(idx.entries)
	if idx.quota != nil {
		maxHistory = idx.quota.maxHistory
		maxQuota = idx.quota.maxQuota
		quotaBytes = idx.quota.liveBytesLocked(idx)
	}
	return
}

var nowMillisOverride func() int64

func nowMillis() int64 {
	if nowMillisOverride != nil {
		return nowMillisOverride()
	}
	return time.Now().UTC().UnixMilli()
}
