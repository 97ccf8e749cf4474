package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ftm-project/ftm/internal/core/pattern"
)

func TestDebounceCoalescesBurstIntoOneSettle(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "foo.txt")
	if err := os.WriteFile(target, []byte("v0"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	var mu sync.Mutex
	var calls int

	m := pattern.New([]string{"**"}, nil)
	w, err := New(root, m, 250*time.Millisecond, func(rel string, exists bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		os.WriteFile(target, []byte("v"+string(rune('1'+i))), 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Fatalf("settle called %d times, want 1", got)
	}
}

func TestExcludedPathNeverSettles(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "node_modules"), 0o755)

	var mu sync.Mutex
	var calls int

	m := pattern.New([]string{"**"}, []string{"**/node_modules/**"})
	w, err := New(root, m, 250*time.Millisecond, func(rel string, exists bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	os.WriteFile(filepath.Join(root, "node_modules", "pkg.json"), []byte("{}"), 0o644)
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 0 {
		t.Fatalf("settle called %d times for excluded path, want 0", got)
	}
}
