package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ragqa/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "  Second file.  ")
	writeFile(t, filepath.Join(dir, "a.TXT"), "First file.")
	writeFile(t, filepath.Join(dir, "notes.md"), "# skipped")
	writeFile(t, filepath.Join(dir, "broken.pdf"), "this is not a pdf")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "nested, not loaded")

	docs, stats, err := New(nil).LoadDir(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d: %+v", len(docs), docs)
	}
	if docs[0].DocumentID != "a.TXT" || docs[1].DocumentID != "b.txt" {
		t.Errorf("unexpected order: %s, %s", docs[0].DocumentID, docs[1].DocumentID)
	}
	if docs[1].Text != "Second file." {
		t.Errorf("text not trimmed: %q", docs[1].Text)
	}
	want := Stats{Files: 2, Skipped: 1, Failed: 1, Documents: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestLoad_GlobAndFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x1.txt"), "one")
	writeFile(t, filepath.Join(dir, "x2.txt"), "two")

	docs, _, err := New(nil).LoadFiles([]string{filepath.Join(dir, "x*.txt"), filepath.Join(dir, "x1.txt")})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents after dedupe, got %d", len(docs))
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := New(nil).LoadFiles([]string{filepath.Join(dir, "missing")}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("LoadFiles(missing) error = %v, want ErrNotFound", err)
	}
	if _, _, err := New(nil).LoadDir(filepath.Join(dir, "missing")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("LoadDir(missing) error = %v, want ErrNotFound", err)
	}

	writeFile(t, filepath.Join(dir, "one", "same.txt"), "a")
	writeFile(t, filepath.Join(dir, "two", "same.txt"), "b")
	_, _, err := New(nil).LoadFiles([]string{filepath.Join(dir, "one"), filepath.Join(dir, "two")})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Load(duplicate ids) error = %v, want ErrInvalidInput", err)
	}
}
