package osops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyDirectory_CopiesTree(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "nested", "deep"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "deep", "leaf.txt"), []byte("leaf"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyDirectory(src, dst); err != nil {
		t.Fatalf("CopyDirectory failed: %v", err)
	}

	top, err := os.ReadFile(filepath.Join(dst, "top.txt"))
	if err != nil || string(top) != "top" {
		t.Fatalf("top.txt wrong: %q %v", top, err)
	}
	leaf, err := os.ReadFile(filepath.Join(dst, "nested", "deep", "leaf.txt"))
	if err != nil || string(leaf) != "leaf" {
		t.Fatalf("leaf.txt wrong: %q %v", leaf, err)
	}
	info, err := os.Stat(filepath.Join(dst, "nested", "deep", "leaf.txt"))
	if err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("mode not preserved: %v %v", info, err)
	}
}

func TestCopyDirectory_SourceMustBeDirectory(t *testing.T) {
	src := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := CopyDirectory(src, t.TempDir()); err == nil {
		t.Fatalf("expected error for file source")
	}
}

func TestPathExistsAndDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing")
	if PathExists(path) {
		t.Fatalf("path should not exist yet")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !PathExists(path) {
		t.Fatalf("path should exist")
	}
	if err := DeletePath(path); err != nil {
		t.Fatalf("DeletePath failed: %v", err)
	}
	if PathExists(path) {
		t.Fatalf("path should be gone")
	}
	if err := DeletePath(path); err != nil {
		t.Fatalf("deleting a missing path should be fine: %v", err)
	}
}
