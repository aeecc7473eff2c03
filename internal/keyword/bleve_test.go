package keyword

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/vector"
)

func entries() []vector.Entry {
	return []vector.Entry{
		{Key: "gonzalez-dip#000000", BookID: "gonzalez-dip", BookCode: "gonzalez", BookTitle: "Digital Image Processing",
			PageStart: 10, PageEnd: 11, Text: "O método de Otsu escolhe o limiar ótimo a partir do histograma da imagem."},
		{Key: "gonzalez-dip#000001", BookID: "gonzalez-dip", BookCode: "gonzalez", BookTitle: "Digital Image Processing",
			PageStart: 12, PageEnd: 12, Text: "The Sobel operator approximates the image gradient."},
		{Key: "szeliski-cv#000000", BookID: "szeliski-cv", BookCode: "szeliski", BookTitle: "Computer Vision",
			PageStart: 3, PageEnd: 3, Text: "Edge detectors such as Sobel and Canny respond to intensity changes."},
	}
}

func TestBleveIndex_Lookup(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Rebuild(ctx, entries()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n, _ := idx.DocCount(); n != 3 {
		t.Errorf("DocCount = %d", n)
	}

	hits, err := idx.Lookup(ctx, "Otsu", "", 10)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for otsu, got %d", len(hits))
	}
	h := hits[0]
	if h.ChunkID != "gonzalez-dip#000000" || h.BookID != "gonzalez-dip" || h.Book != "Digital Image Processing" {
		t.Errorf("hit provenance %+v", h)
	}
	if h.PageStart != 10 || h.PageEnd != 11 {
		t.Errorf("pages %d-%d", h.PageStart, h.PageEnd)
	}
	if !strings.Contains(h.Snippet, "Otsu") {
		t.Errorf("snippet %q", h.Snippet)
	}

	hits, _ = idx.Lookup(ctx, "sobel", "", 10)
	if len(hits) != 2 {
		t.Errorf("expected 2 hits for sobel, got %d", len(hits))
	}
	for _, book := range []string{"szeliski-cv", "SZELISKI"} {
		hits, _ = idx.Lookup(ctx, "sobel", book, 10)
		if len(hits) != 1 || hits[0].BookID != "szeliski-cv" {
			t.Errorf("book %q: %+v", book, hits)
		}
	}
	hits, _ = idx.Lookup(ctx, "image gradient", "", 10)
	if len(hits) != 1 || hits[0].ChunkID != "gonzalez-dip#000001" {
		t.Errorf("phrase lookup: %+v", hits)
	}
	hits, _ = idx.Lookup(ctx, "gradient image", "", 10)
	if len(hits) != 0 {
		t.Errorf("reversed phrase should not match: %+v", hits)
	}
}

func TestBleveIndex_emptyTerm(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	_, err = idx.Lookup(context.Background(), "  ", "", 5)
	var pe *models.ParamError
	if !errors.As(err, &pe) || pe.Field != "term" {
		t.Errorf("expected ParamError on term, got %v", err)
	}
}

func TestBleveIndex_rebuildOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := idx.Rebuild(ctx, entries()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Rebuild(ctx, entries()[:1]); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("rebuild should replace contents, DocCount = %d", n)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	hits, err := reopened.Lookup(ctx, "otsu", "", 5)
	if err != nil || len(hits) != 1 {
		t.Errorf("reopened lookup: %v, %v", hits, err)
	}
}

func TestSnippet(t *testing.T) {
	short := "short text"
	if Snippet(short, "text", 100) != short {
		t.Error("short text should be returned whole")
	}
	long := strings.Repeat("lorem ipsum ", 40) + "Canny detector " + strings.Repeat("dolor sit ", 40)
	s := Snippet(long, "canny", 80)
	if !strings.Contains(s, "Canny") {
		t.Errorf("snippet should contain the term: %q", s)
	}
	if !strings.HasPrefix(s, "...") || !strings.HasSuffix(s, "...") {
		t.Errorf("snippet should mark both cuts: %q", s)
	}
	if len(s) > 80+6 {
		t.Errorf("snippet too long: %d", len(s))
	}
	if got := Snippet(long, "absent", 40); !strings.HasPrefix(got, "lorem") {
		t.Errorf("missing term should give the head: %q", got)
	}
}
