package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/checksum"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Trip\n![beach](data:image/png;base64,iVBORw0KGgo=)\n")
	if err := s.Write("trip.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("trip.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempVault(t)
	for i := 0; i < 3; i++ {
		if err := s.Write("n.md", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "n.md" {
		t.Errorf("unexpected vault entries: %v", entries)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Read missing: err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("one.md", []byte("1"))
	_ = s.Write("sub/two.md", []byte("2"))
	_ = s.Write("skip.txt", []byte("x"))
	_ = os.WriteFile(filepath.Join(s.Root(), ".mediafold-tmp-123.md"), []byte("partial"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.Root(), ".hidden"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), ".hidden", "h.md"), []byte("h"), 0o644)

	metas, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[string]string{}
	for _, m := range metas {
		got[m.Path] = m.Checksum
	}
	if len(got) != 2 {
		t.Fatalf("List = %v, want 2 documents", got)
	}
	if got["one.md"] != checksum.Sum([]byte("1")) {
		t.Errorf("checksum for one.md = %q", got["one.md"])
	}
	if _, ok := got["sub/two.md"]; !ok {
		t.Errorf("sub/two.md missing from %v", got)
	}
}

func TestPathTraversal(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"../escape.md", "a/../../escape.md", "/etc/passwd"} {
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", p)
		}
		if _, err := s.Read(p); err == nil {
			t.Errorf("Read(%q) should fail", p)
		}
	}
}
