package restorer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRestoreCreatesFileWithContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "foo.txt")

	if err := Restore(target, []byte("hello")); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q, want %q", got, "hello")
	}
}

func TestRestoreIsIdempotentForSameContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "foo.txt")

	if err := Restore(target, []byte("v1")); err != nil {
		t.Fatalf("first Restore: %v", err)
	}
	if err := Restore(target, []byte("v1")); err != nil {
		t.Fatalf("second Restore: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("content = %q, want %q", got, "v1")
	}
}

func TestRestoreLeavesNoTempFilesInDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "foo.txt")
	if err := Restore(target, []byte("content")); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "foo.txt" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
