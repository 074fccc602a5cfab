package storage

import (
	"path/filepath"
	"slices"
	"testing"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "nested", "ads.db"))
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_Bibcodes(t *testing.T) {
	c := openTestCache(t)

	if _, ok, err := c.GetBibcodes("10.1/xyz"); err != nil || ok {
		t.Fatalf("GetBibcodes() on empty cache = %v, %v", ok, err)
	}

	if err := c.PutBibcodes("10.1/XYZ", []string{"2016ApJ...822...88W"}); err != nil {
		t.Fatalf("PutBibcodes() error = %v", err)
	}
	got, ok, err := c.GetBibcodes("10.1/xyz")
	if err != nil || !ok {
		t.Fatalf("GetBibcodes() = %v, %v", ok, err)
	}
	if !slices.Equal(got, []string{"2016ApJ...822...88W"}) {
		t.Errorf("GetBibcodes() = %v", got)
	}

	// Replacing keeps one row.
	if err := c.PutBibcodes("10.1/xyz", []string{"A", "B"}); err != nil {
		t.Fatalf("PutBibcodes() error = %v", err)
	}
	got, _, _ = c.GetBibcodes("10.1/xyz")
	if !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("GetBibcodes() after replace = %v", got)
	}
	if s, _ := c.Stats(); s.Lookups != 1 {
		t.Errorf("Stats().Lookups = %d, want 1", s.Lookups)
	}
}

func TestCache_BibTeX(t *testing.T) {
	c := openTestCache(t)

	entry := "@ARTICLE{A,\n}\n"
	if err := c.PutBibTeX("A", entry); err != nil {
		t.Fatalf("PutBibTeX() error = %v", err)
	}
	got, ok, err := c.GetBibTeX("A")
	if err != nil || !ok || got != entry {
		t.Errorf("GetBibTeX() = %q, %v, %v", got, ok, err)
	}
	if _, ok, _ := c.GetBibTeX("B"); ok {
		t.Error("GetBibTeX(B) should miss")
	}
}

func TestCache_ClearAndStats(t *testing.T) {
	c := openTestCache(t)
	c.PutBibcodes("x", []string{"A"})
	c.PutBibTeX("A", "@a{A,\n}\n")
	c.PutBibTeX("B", "@a{B,\n}\n")

	s, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.Lookups != 1 || s.Entries != 2 {
		t.Errorf("Stats() = %+v", s)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s, _ := c.Stats(); s.Lookups != 0 || s.Entries != 0 {
		t.Errorf("Stats() after Clear = %+v", s)
	}
}

func TestOpenCache_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ads.db")
	c, err := OpenCache(path)
	if err != nil {
		t.Fatal(err)
	}
	c.PutBibTeX("A", "entry")
	c.Close()

	c, err = OpenCache(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer c.Close()
	if got, ok, _ := c.GetBibTeX("A"); !ok || got != "entry" {
		t.Errorf("entry lost across reopen: %q, %v", got, ok)
	}
}
