package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTables(t *testing.T) {
	tb := DefaultTables()
	if len(tb.Books) != 4 {
		t.Fatalf("books: got %d", len(tb.Books))
	}
	want := []string{"concept", "algorithm", "implementation", "theory", "comparison"}
	for i, r := range tb.QueryRules {
		if r.Type != want[i] {
			t.Errorf("rule %d: got %s, want %s", i, r.Type, want[i])
		}
	}
	if tb.ConceptWeight != 1.0 || tb.KeywordWeight != 0.5 {
		t.Errorf("weights: got %v/%v", tb.ConceptWeight, tb.KeywordWeight)
	}
}

func TestTables_MatchFilename(t *testing.T) {
	tb := DefaultTables()
	tests := []struct {
		name string
		want string
	}{
		{"Gonzalez_Woods_4th.pdf", "gonzalez"},
		{"szeliski-2022.pdf", "szeliski"},
		{"Deep_Learning.pdf", "goodfellow"},
		{"PRML.pdf", "bishop"},
		{"notes.txt", ""},
	}
	for _, tt := range tests {
		got := tb.MatchFilename(tt.name)
		code := ""
		if got != nil {
			code = got.Code
		}
		if code != tt.want {
			t.Errorf("MatchFilename(%q) = %q, want %q", tt.name, code, tt.want)
		}
	}
}

func TestTables_Book(t *testing.T) {
	tb := DefaultTables()
	if b := tb.Book("bishop"); b == nil || b.Author != "Christopher M. Bishop" {
		t.Errorf("Book(bishop) = %+v", b)
	}
	if b := tb.Book("nope"); b != nil {
		t.Errorf("Book(nope) = %+v, want nil", b)
	}
}

func TestLoadTables_partialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	content := `
concepts: ["pixel", "voxel"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	tb, err := LoadTables(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tb.Concepts) != 2 || tb.Concepts[1] != "voxel" {
		t.Errorf("concepts: got %v", tb.Concepts)
	}
	if len(tb.Books) != 4 {
		t.Errorf("books should fall back to defaults, got %d", len(tb.Books))
	}
}

func TestLoadTables_emptyPath(t *testing.T) {
	tb, err := LoadTables("")
	if err != nil {
		t.Fatal(err)
	}
	if len(tb.Synonyms) == 0 {
		t.Error("expected default synonyms")
	}
}
