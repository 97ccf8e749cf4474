package hasher

import (
	"path/filepath"
	"strings"
	"testing"

	"os"
)

func TestReadIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r1, err := Read(path, 1<<20)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	r2, err := Read(path, 1<<20)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r1.Checksum != r2.Checksum {
		t.Fatalf("checksum not deterministic: %q vs %q", r1.Checksum, r2.Checksum)
	}
	if r1.Size != int64(len("hello world")) {
		t.Fatalf("Size = %d, want %d", r1.Size, len("hello world"))
	}
	if string(r1.Bytes) != "hello world" {
		t.Fatalf("Bytes = %q, want %q", r1.Bytes, "hello world")
	}
}

func TestReadTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Read(path, 10); err == nil {
		t.Fatalf("expected TooLarge error, got nil")
	}
}

func TestQuickDigestMatchesAcrossIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(pathA, []byte("same content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(pathB, []byte("same content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	digestA, sizeA, err := QuickDigest(pathA, 1<<20)
	if err != nil {
		t.Fatalf("QuickDigest a: %v", err)
	}
	digestB, sizeB, err := QuickDigest(pathB, 1<<20)
	if err != nil {
		t.Fatalf("QuickDigest b: %v", err)
	}
	if digestA != digestB || sizeA != sizeB {
		t.Fatalf("expected identical content to produce identical digest/size, got (%x,%d) vs (%x,%d)", digestA, sizeA, digestB, sizeB)
	}
}

func TestQuickDigestChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d1, _, err := QuickDigest(path, 1<<20)
	if err != nil {
		t.Fatalf("QuickDigest: %v", err)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d2, _, err := QuickDigest(path, 1<<20)
	if err != nil {
		t.Fatalf("QuickDigest: %v", err)
	}

	if d1 == d2 {
		t.Fatalf("expected digest to change when content changes")
	}
}

func TestQuickDigestTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := QuickDigest(path, 10); err == nil {
		t.Fatalf("expected TooLarge error, got nil")
	}
}
