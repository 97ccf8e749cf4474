package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ftm-project/ftm/internal/core/history"
	"github.com/ftm-project/ftm/internal/core/pattern"
)

type fakeEngine struct {
	idx *history.Index
}

func (f *fakeEngine) Upsert(file, checksum string, size int64, data []byte) (bool, error) {
	created := f.idx.LatestChecksum(file) == ""
	_, err := f.idx.Append(file, pickOp(created), checksum, size)
	return created, err
}

func pickOp(created bool) history.Op {
	if created {
		return history.OpCreate
	}
	return history.OpModify
}

func (f *fakeEngine) Delete(file string) error {
	_, err := f.idx.Append(file, history.OpDelete, "", 0)
	return err
}

func newTestScanner(t *testing.T, root string) (*Scanner, *history.Index) {
	t.Helper()
	idx, err := history.Load(filepath.Join(t.TempDir(), "index.json"), history.NewQuota(1000, 1<<30))
	if err != nil {
		t.Fatalf("history.Load: %v", err)
	}
	m := pattern.New([]string{"**"}, nil)
	eng := &fakeEngine{idx: idx}
	return New(root, m, idx, eng, 1<<20), idx
}

func TestScanDetectsNewFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "foo.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, idx := newTestScanner(t, root)

	result, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("Created = %d, want 1", result.Created)
	}
	if idx.LatestChecksum("foo.txt") == "" {
		t.Fatalf("expected foo.txt to be tracked after scan")
	}
}

func TestScanIsIdempotentSecondPass(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "foo.txt"), []byte("hello"), 0o644)
	s, _ := newTestScanner(t, root)

	if _, err := s.Scan(); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	result, err := s.Scan()
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if result.Created != 0 || result.Modified != 0 || result.Deleted != 0 {
		t.Fatalf("second scan not idempotent: %+v", result)
	}
}

func TestScanDetectsDeletion(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "foo.txt")
	os.WriteFile(target, []byte("hello"), 0o644)
	s, _ := newTestScanner(t, root)

	if _, err := s.Scan(); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	os.Remove(target)

	result, err := s.Scan()
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("Deleted = %d, want 1", result.Deleted)
	}
}

func TestScanDetectsModification(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "foo.txt")
	os.WriteFile(target, []byte("hello"), 0o644)
	s, _ := newTestScanner(t, root)

	if _, err := s.Scan(); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	os.WriteFile(target, []byte("hello world"), 0o644)

	result, err := s.Scan()
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if result.Modified != 1 {
		t.Fatalf("Modified = %d, want 1", result.Modified)
	}
}
