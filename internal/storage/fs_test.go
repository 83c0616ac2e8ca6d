package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/xflkit/internal/apperr"
)

func tempPackage(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempPackage(t)
	content := []byte(`<DOMDocument/>`)
	if err := s.Write("DOMDocument.xml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("DOMDocument.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if !s.Exists("DOMDocument.xml") {
		t.Error("Exists = false after write")
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempPackage(t)
	if err := s.Write("LIBRARY/Characters/Hero.xml", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("LIBRARY/Characters/Hero.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDeletePrunesEmptyFolders(t *testing.T) {
	s := tempPackage(t)
	_ = s.Write("LIBRARY/a/b/del.xml", []byte("bye"))
	_ = s.Write("LIBRARY/keep.xml", []byte("stay"))
	if err := s.Delete("LIBRARY/a/b/del.xml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("LIBRARY/a/b/del.xml"); !errors.Is(err, apperr.ErrIO) {
		t.Errorf("read deleted file: err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "LIBRARY", "a")); !os.IsNotExist(err) {
		t.Errorf("empty folder left behind: %v", err)
	}
	if !s.Exists("LIBRARY/keep.xml") {
		t.Error("sibling file removed")
	}
}

func TestMove(t *testing.T) {
	s := tempPackage(t)
	_ = s.Write("LIBRARY/old.xml", []byte("data"))
	if err := s.Move("LIBRARY/old.xml", "LIBRARY/sub/new.xml"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("LIBRARY/sub/new.xml")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if s.Exists("LIBRARY/old.xml") {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempPackage(t)
	_ = s.Write("LIBRARY/a.xml", []byte("a"))
	_ = s.Write("LIBRARY/sub/b.xml", []byte("b"))
	_ = s.Write("LIBRARY/photo.png", []byte("not xml"))

	items, err := s.List("LIBRARY", ".xml")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	paths := map[string]bool{}
	for _, it := range items {
		paths[it.Path] = true
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
	}
	if !paths["LIBRARY/sub/b.xml"] {
		t.Errorf("paths = %v, want slash-separated LIBRARY/sub/b.xml", paths)
	}

	all, _ := s.List("LIBRARY", "")
	if len(all) != 3 {
		t.Errorf("unfiltered len = %d, want 3", len(all))
	}
}

func TestList_MissingDir(t *testing.T) {
	s := tempPackage(t)
	items, err := s.List("LIBRARY", ".xml")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempPackage(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.xml",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("read %q: err = %v", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if s.Exists(p) {
			t.Errorf("Exists(%q) = true", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempPackage(t)
	_ = s.Write("atomic.xml", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.xml", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.xml")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".xflkit-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, apperr.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "xflkit-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}
