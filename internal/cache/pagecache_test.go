package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/corpusclean/internal/pdftext"
)

type countingSource struct {
	calls int
	pages []string
	err   error
}

func (s *countingSource) Pages(string) ([]string, error) {
	s.calls++
	return s.pages, s.err
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestSource_CachesSuccessfulExtraction(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	src := writeSource(t, base, "a.pdf", "pdf bytes")
	next := &countingSource{pages: []string{"one", "two"}}
	s := &Source{Next: next, Cache: &PageCache{Dir: filepath.Join(base, "cache")}}

	for i := 0; i < 3; i++ {
		pages, err := s.Pages(src)
		if err != nil {
			t.Fatalf("Pages: %v", err)
		}
		if len(pages) != 2 || pages[1] != "two" {
			t.Fatalf("unexpected pages %q", pages)
		}
	}
	if next.calls != 1 {
		t.Fatalf("extractor called %d times, want 1", next.calls)
	}
}

func TestSource_ChangedFileMisses(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	src := writeSource(t, base, "a.pdf", "v1")
	next := &countingSource{pages: []string{"p"}}
	s := &Source{Next: next, Cache: &PageCache{Dir: filepath.Join(base, "cache")}}
	if _, err := s.Pages(src); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.WriteFile(src, []byte("v2 longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pages(src); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Fatalf("edited file should miss, calls=%d", next.calls)
	}
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	src := writeSource(t, base, "bad.pdf", "x")
	next := &countingSource{err: pdftext.ErrExtraction}
	s := &Source{Next: next, Cache: &PageCache{Dir: filepath.Join(base, "cache")}}
	for i := 0; i < 2; i++ {
		if _, err := s.Pages(src); !errors.Is(err, pdftext.ErrExtraction) {
			t.Fatalf("want ErrExtraction, got %v", err)
		}
	}
	if next.calls != 2 {
		t.Fatalf("failures must not be cached, calls=%d", next.calls)
	}
}

func TestPageCache_StrictPerms(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	src := writeSource(t, base, "a.pdf", "x")
	dir := filepath.Join(base, "cache")
	c := &PageCache{Dir: dir, StrictPerms: true}
	if err := c.Save(src, []string{"p"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	sinfo, _ := os.Stat(src)
	finfo, err := os.Stat(filepath.Join(dir, KeyFor(src, sinfo)+".json"))
	if err != nil {
		t.Fatalf("stat entry: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("entry mode = %o, want 0600", got)
	}
}

func TestPurgeByAge(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	dir := filepath.Join(base, "cache")
	c := &PageCache{Dir: dir}
	oldSrc := writeSource(t, base, "old.pdf", "old")
	newSrc := writeSource(t, base, "new.pdf", "new")
	if err := c.Save(oldSrc, []string{"o"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(newSrc, []string{"n"}); err != nil {
		t.Fatal(err)
	}
	// Backdate the old entry.
	info, _ := os.Stat(oldSrc)
	p := filepath.Join(dir, KeyFor(oldSrc, info)+".json")
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatal(err)
	}
	e.SavedAt = time.Now().Add(-48 * time.Hour)
	b, _ = json.Marshal(e)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := PurgeByAge(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, ok, _ := c.Load(oldSrc); ok {
		t.Fatal("old entry should be gone")
	}
	if _, ok, _ := c.Load(newSrc); !ok {
		t.Fatal("new entry should survive")
	}
}

func TestEnforceLimits_Count(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	dir := filepath.Join(base, "cache")
	c := &PageCache{Dir: dir}
	var srcs []string
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		src := writeSource(t, base, name, name)
		srcs = append(srcs, src)
		if err := c.Save(src, []string{name}); err != nil {
			t.Fatal(err)
		}
		info, _ := os.Stat(src)
		ts := time.Now().Add(time.Duration(i-10) * time.Minute)
		if err := os.Chtimes(filepath.Join(dir, KeyFor(src, info)+".json"), ts, ts); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := EnforceLimits(dir, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, ok, _ := c.Load(srcs[0]); ok {
		t.Fatal("least recently used entry should be evicted")
	}
}

func TestClearDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("ClearDir: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("dir should exist: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dir not empty")
	}
	if err := ClearDir("  "); err == nil {
		t.Fatal("blank dir must be rejected")
	}
}
