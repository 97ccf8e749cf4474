package ftm

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func TestCheckoutTracksCreateModifyDelete(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e, err := Checkout(root)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return len(e.History("a.txt")) == 1
	})

	if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		return len(e.History("a.txt")) == 2
	})

	if err := os.Remove(target); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		hist := e.History("a.txt")
		return len(hist) == 3 && hist[len(hist)-1].Checksum == ""
	})
}

func TestOnSettleSkipsRehashWhenContentUnchanged(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	if err := os.WriteFile(target, []byte("stable"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e, err := Checkout(root)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return len(e.History("a.txt")) == 1
	})

	// Re-settle the same path directly without any content change: this
	// must not append a second history entry.
	e.onSettle("a.txt", true)
	e.onSettle("a.txt", true)

	if got := len(e.History("a.txt")); got != 1 {
		t.Fatalf("History length = %d, want 1 (no-op settles should not append)", got)
	}
}

func TestDiffAndRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	if err := os.WriteFile(target, []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e, err := Checkout(root)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return len(e.History("a.txt")) == 1
	})
	first := e.History("a.txt")[0].Checksum

	if err := os.WriteFile(target, []byte("line one\nline three\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		return len(e.History("a.txt")) == 2
	})
	second := e.History("a.txt")[1].Checksum

	result, err := e.Diff(first, second)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(result.Hunks) == 0 {
		t.Fatalf("expected a non-empty diff between distinct versions")
	}

	if err := e.Restore("a.txt", first[:8]); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "line one\nline two\n" {
		t.Fatalf("content after restore = %q, want original content", got)
	}
}

func TestStatsReflectsConfiguredQuota(t *testing.T) {
	root := t.TempDir()
	e, err := Checkout(root)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer e.Stop()

	_, maxHistory, _, maxQuota := e.Stats()
	if maxHistory != e.conf.Settings.MaxHistory {
		t.Fatalf("maxHistory = %d, want %d", maxHistory, e.conf.Settings.MaxHistory)
	}
	if maxQuota != e.conf.Settings.MaxQuota {
		t.Fatalf("maxQuota = %d, want %d", maxQuota, e.conf.Settings.MaxQuota)
	}
}

func TestSetConfigUpdatesWatchPatternsLive(t *testing.T) {
	root := t.TempDir()
	e, err := Checkout(root)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer e.Stop()

	if err := e.SetConfig("watch.patterns", []string{"**/*.txt"}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	// A .md file should no longer be tracked once patterns are narrowed
	// to *.txt, for both the scanner and the live watcher.
	if err := os.WriteFile(filepath.Join(root, "skip.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		return len(e.History("keep.txt")) == 1
	})
	if len(e.History("skip.md")) != 0 {
		t.Fatalf("expected skip.md to remain untracked after narrowing watch patterns")
	}
}

func TestCleanAndDiskFreeAndTrackedSizeDoNotError(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e, err := Checkout(root)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer e.Stop()

	e.Clean()

	if _, err := e.DiskFree(); err != nil {
		t.Fatalf("DiskFree: %v", err)
	}
	if e.TrackedSize() == "" {
		t.Fatalf("expected a non-empty TrackedSize result")
	}
}
