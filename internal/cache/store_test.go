package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestTreePutAndRead(t *testing.T) {
	tree := newMemTree(t)
	payload := []byte("payload")
	if err := tree.Put(context.Background(), "dist/2024-01-02/rustc.tar.gz", payload); err != nil {
		t.Fatalf("put error: %v", err)
	}

	if got := readFile(t, tree, "dist/2024-01-02/rustc.tar.gz"); string(got) != string(payload) {
		t.Fatalf("cached payload mismatch: %s", got)
	}
	sum, err := tree.Checksum("dist/2024-01-02/rustc.tar.gz")
	if err != nil {
		t.Fatalf("checksum error: %v", err)
	}
	if sum != *checksumOf(payload) {
		t.Fatalf("checksum mismatch")
	}

	entries, err := afero.ReadDir(tree.Fs(), "/mirror/dist/2024-01-02")
	if err != nil {
		t.Fatalf("readdir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files should not survive a successful put: %d entries", len(entries))
	}
}

func TestTreePutOverwrites(t *testing.T) {
	tree := newMemTree(t)
	writeFile(t, tree, "dist/a", []byte("old"))
	writeFile(t, tree, "dist/a", []byte("new"))
	if got := readFile(t, tree, "dist/a"); string(got) != "new" {
		t.Fatalf("put should replace existing content, got %s", got)
	}
}

func TestTreePutHonoursCancellation(t *testing.T) {
	tree := newMemTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tree.Put(ctx, "dist/a", []byte("x")); err == nil {
		t.Fatalf("cancelled context should abort the write")
	}
	if exists(t, tree, "dist/a") {
		t.Fatalf("nothing should be written after cancellation")
	}
}

func TestTreePathRejectsEscape(t *testing.T) {
	tree := newMemTree(t)

	full, err := tree.Path("../../etc/passwd")
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if full != filepath.Join("/mirror", "etc", "passwd") {
		t.Fatalf("dot-dot segments should be clamped under the root, got %s", full)
	}
	if _, err := tree.Path(""); err == nil {
		t.Fatalf("empty path should be rejected")
	}
	if _, err := tree.Path("/"); err == nil {
		t.Fatalf("root itself is not a valid entry path")
	}
}

func TestTreePathUnderFilesystemRoot(t *testing.T) {
	tree, err := NewTree(afero.NewMemMapFs(), "/")
	if err != nil {
		t.Fatalf("tree error: %v", err)
	}
	full, err := tree.Path("dist/a")
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if full != filepath.Join("/", "dist", "a") {
		t.Fatalf("unexpected path %s", full)
	}
	rel, err := tree.Rel(full)
	if err != nil || rel != "dist/a" {
		t.Fatalf("Rel should invert Path, got %q %v", rel, err)
	}
	if _, err := tree.Path("../.."); err == nil {
		t.Fatalf("root itself is not a valid entry path")
	}
}

func TestTreeExistsMissingRoot(t *testing.T) {
	tree, err := NewTree(afero.NewOsFs(), filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("tree error: %v", err)
	}
	ok, err := tree.Exists("dist/a")
	if err != nil || ok {
		t.Fatalf("missing root should report not-exists without error, got %v %v", ok, err)
	}
}

func TestTreePutOnDisk(t *testing.T) {
	root := t.TempDir()
	tree, err := NewTree(afero.NewOsFs(), root)
	if err != nil {
		t.Fatalf("tree error: %v", err)
	}
	writeFile(t, tree, "dist/2024-01-02/cargo.tar.xz", []byte("cargo"))

	info, err := os.Stat(filepath.Join(root, "dist", "2024-01-02", "cargo.tar.xz"))
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("artefacts should be world readable, got %v", info.Mode().Perm())
	}
}
