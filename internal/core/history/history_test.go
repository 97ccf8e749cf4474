package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestIndex(t *testing.T, maxHistory int, maxQuota int64) *Index {
	t.Helper()
	q := NewQuota(maxHistory, maxQuota)
	idx, err := Load(filepath.Join(t.TempDir(), "index.json"), q)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return idx
}

func TestAppendThenHistoryContainsEntry(t *testing.T) {
	idx := newTestIndex(t, 100, 1<<20)

	res, err := idx.Append("foo.txt", OpCreate, "deadbeef", 2)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if res != Appended {
		t.Fatalf("Append returned %v, want Appended", res)
	}

	hist := idx.History("foo.txt")
	if len(hist) != 1 {
		t.Fatalf("History length = %d, want 1", len(hist))
	}
	if hist[0].Checksum != "deadbeef" || hist[0].Op != OpCreate {
		t.Fatalf("unexpected entry: %+v", hist[0])
	}
}

func TestAppendSuppressesNoOpModify(t *testing.T) {
	idx := newTestIndex(t, 100, 1<<20)

	if _, err := idx.Append("foo.txt", OpCreate, "aaa", 2); err != nil {
		t.Fatalf("Append create: %v", err)
	}
	res, err := idx.Append("foo.txt", OpModify, "aaa", 2)
	if err != nil {
		t.Fatalf("Append modify: %v", err)
	}
	if res != Unchanged {
		t.Fatalf("Append returned %v, want Unchanged", res)
	}
	if len(idx.History("foo.txt")) != 1 {
		t.Fatalf("history grew on no-op modify")
	}
}

func TestAppendNeverHasAdjacentDuplicateChecksums(t *testing.T) {
	idx := newTestIndex(t, 100, 1<<20)
	idx.Append("foo.txt", OpCreate, "a", 1)
	idx.Append("foo.txt", OpModify, "a", 1)
	idx.Append("foo.txt", OpModify, "b", 1)
	idx.Append("foo.txt", OpModify, "b", 1)

	hist := idx.History("foo.txt")
	for i := 1; i < len(hist); i++ {
		if hist[i].Checksum != "" && hist[i].Checksum == hist[i-1].Checksum {
			t.Fatalf("adjacent duplicate checksums at %d: %+v %+v", i, hist[i-1], hist[i])
		}
	}
}

func TestDeleteRequiresNonDeletePrior(t *testing.T) {
	idx := newTestIndex(t, 100, 1<<20)

	res, err := idx.Append("foo.txt", OpDelete, "", 0)
	if err != nil {
		t.Fatalf("Append delete on empty history: %v", err)
	}
	if res != Unchanged {
		t.Fatalf("delete with no prior history should be Unchanged, got %v", res)
	}

	idx.Append("foo.txt", OpCreate, "a", 1)
	res, err = idx.Append("foo.txt", OpDelete, "", 0)
	if err != nil {
		t.Fatalf("Append delete: %v", err)
	}
	if res != Appended {
		t.Fatalf("delete after create should be Appended, got %v", res)
	}

	res, err = idx.Append("foo.txt", OpDelete, "", 0)
	if err != nil {
		t.Fatalf("Append second delete: %v", err)
	}
	if res != Unchanged {
		t.Fatalf("double delete should be Unchanged, got %v", res)
	}
}

func TestQuotaTrimsByCount(t *testing.T) {
	idx := newTestIndex(t, 3, 1<<30)

	idx.Append("foo.txt", OpCreate, "c1", 1)
	idx.Append("foo.txt", OpModify, "c2", 1)
	idx.Append("foo.txt", OpModify, "c3", 1)
	idx.Append("foo.txt", OpModify, "c4", 1)

	hist := idx.History("foo.txt")
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3 after trim", len(hist))
	}
	if hist[0].Checksum != "c2" {
		t.Fatalf("oldest entry should have been trimmed, got first = %+v", hist[0])
	}

	orphans := idx.quota.DrainOrphans()
	found := false
	for _, o := range orphans {
		if o == "c1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected c1 queued as orphan, got %v", orphans)
	}
}

func TestQuotaTrimsByBytes(t *testing.T) {
	idx := newTestIndex(t, 100, 100)

	idx.Append("a.txt", OpCreate, "ca", 60)
	idx.Append("b.txt", OpCreate, "cb", 60)

	_, maxHistory, quotaBytes, maxQuota := idx.Stats()
	_ = maxHistory
	if quotaBytes > maxQuota {
		t.Fatalf("live byte sum %d exceeds max_quota %d after trim", quotaBytes, maxQuota)
	}
}

func TestQuotaNeverDropsSoleLiveEntry(t *testing.T) {
	idx := newTestIndex(t, 1, 1<<30)

	idx.Append("a.txt", OpCreate, "ca", 1)
	// max_history=1 is already satisfied; a second distinct file would
	// need to displace a.txt's only entry, which quota must refuse.
	idx.Append("b.txt", OpCreate, "cb", 1)

	if idx.LatestChecksum("a.txt") == "" && idx.LatestChecksum("b.txt") == "" {
		t.Fatalf("quota enforcement erased all live history")
	}
}

func TestActivityWindowAndOrdering(t *testing.T) {
	idx := newTestIndex(t, 100, 1<<20)
	nowMillisOverride = func() int64 { return 1000 }
	idx.Append("a.txt", OpCreate, "ca", 1)
	nowMillisOverride = func() int64 { return 2000 }
	idx.Append("b.txt", OpCreate, "cb", 1)
	nowMillisOverride = nil

	acts := idx.Activity(time.UnixMilli(1500), time.Time{}, true)
	if len(acts) != 1 || acts[0].File != "b.txt" {
		t.Fatalf("unexpected activity window result: %+v", acts)
	}
}

func TestFlushPersistsAndLoadRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	q1 := NewQuota(100, 1<<20)
	idx1, err := Load(path, q1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	idx1.Append("foo.txt", OpCreate, "c1", 5)
	if err := idx1.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	q2 := NewQuota(100, 1<<20)
	idx2, err := Load(path, q2)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := idx2.LatestChecksum("foo.txt"); got != "c1" {
		t.Fatalf("reloaded LatestChecksum = %q, want c1", got)
	}
}

func TestFilesTreeOmitsDeletedByDefault(t *testing.T) {
	idx := newTestIndex(t, 100, 1<<20)
	idx.Append("dir/a.txt", OpCreate, "ca", 1)
	idx.Append("dir/b.txt", OpCreate, "cb", 1)
	idx.Append("dir/b.txt", OpDelete, "", 0)

	tree := idx.Files(false)
	dirNode, ok := tree["dir"]
	if !ok {
		t.Fatalf("missing dir node in tree: %+v", tree)
	}
	if _, ok := dirNode.Children["a.txt"]; !ok {
		t.Fatalf("expected a.txt present")
	}
	if _, ok := dirNode.Children["b.txt"]; ok {
		t.Fatalf("expected deleted b.txt to be omitted")
	}

	treeAll := idx.Files(true)
	if _, ok := treeAll["dir"].Children["b.txt"]; !ok {
		t.Fatalf("expected deleted b.txt present when includeDeleted=true")
	}
}
