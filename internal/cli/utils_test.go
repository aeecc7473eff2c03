package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/storage"
)

func sampleResponse() *models.RetrieveResponse {
	return &models.RetrieveResponse{
		Query:            "o que é convolução",
		QueryType:        "concept",
		Threshold:        0.2,
		SuggestedBook:    "gonzalez",
		BookFilter:       "gonzalez",
		DetectedConcepts: []string{"convolução"},
		QueryTime:        12,
		Results: []*models.Passage{{
			Rank: 1, ChunkID: "gonzalez-dip#000040", Text: "A convolução combina a imagem com um kernel.",
			Book: "Digital Image Processing", BookID: "gonzalez-dip", PageStart: 40, PageEnd: 40,
			Score: 0.812, Source: "Digital Image Processing, página 40",
		}},
		Suggestions: []string{"Como implementar convolução"},
	}
}

func TestWriteRetrieveResponse_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieveResponse(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteRetrieveResponse(json): %v", err)
	}
	var decoded models.RetrieveResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "o que é convolução" || len(decoded.Results) != 1 || decoded.Results[0].ChunkID != "gonzalez-dip#000040" {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestWriteRetrieveResponse_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRetrieveResponse(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"1 passage(s) in 12ms",
		"Book filter: gonzalez",
		"Concepts: convolução",
		"1. Digital Image Processing, página 40 | score 0.812",
		"Como implementar convolução",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	resp := &models.RetrieveResponse{QueryType: "generic", Relaxed: true, NoResults: true, Message: "Nenhum trecho encontrado"}
	_ = WriteRetrieveResponse(&buf, resp, OutputText)
	if !strings.Contains(buf.String(), "(relaxed)") || !strings.Contains(buf.String(), "Nenhum trecho encontrado") {
		t.Errorf("no-results output:\n%s", buf.String())
	}
}

func TestWriteIngestReport(t *testing.T) {
	var buf bytes.Buffer
	r := &models.IngestReport{
		Mode: models.IngestModeBuild, BooksIndexed: 3, ChunksIndexed: 120, Duration: 900,
		Failures: []models.IngestFailureEntry{{Book: "bishop-prml", Reason: "no extractable text"}},
	}
	_ = WriteIngestReport(&buf, r, OutputText)
	out := buf.String()
	if !strings.Contains(out, "Ingest (build): 3 book(s), 120 chunk(s)") || !strings.Contains(out, "skipped bishop-prml: no extractable text") {
		t.Errorf("report output:\n%s", out)
	}

	buf.Reset()
	_ = WriteIngestReport(&buf, &models.IngestReport{EmptyCorpus: true}, OutputText)
	if !strings.Contains(buf.String(), "no books") {
		t.Errorf("empty corpus output: %q", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	st := &models.IndexStats{BookCount: 2, ChunkCount: 40, IndexDimension: 384, EmbeddingModelVersion: "hash-v1/384"}
	usage := &storage.Usage{Database: 2048, VectorIndex: 3 << 20}
	if err := WriteStats(&buf, st, usage, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["book_count"] != float64(2) || decoded["disk"] == nil {
		t.Errorf("decoded stats %v", decoded)
	}

	buf.Reset()
	_ = WriteStats(&buf, st, usage, OutputText)
	if !strings.Contains(buf.String(), "Embedder:   hash-v1/384") || !strings.Contains(buf.String(), "Disk usage: 3.0 MiB") {
		t.Errorf("text stats:\n%s", buf.String())
	}
}

func TestWriteBooksAndConcepts(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteBooks(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No books ingested") {
		t.Errorf("empty books: %q", buf.String())
	}
	buf.Reset()
	_ = WriteBooks(&buf, []models.BookSummary{{BookID: "szeliski-cv", Code: "szeliski", Title: "Computer Vision", Author: "Szeliski", PageCount: 900, Chunks: 10}}, OutputText)
	if !strings.Contains(buf.String(), "Computer Vision (Szeliski)") {
		t.Errorf("books: %q", buf.String())
	}

	buf.Reset()
	_ = WriteConcepts(&buf, []models.ConceptGroup{{Category: "Filtros", Concepts: []string{"sobel", "canny"}}}, OutputText)
	if buf.String() != "Filtros:\n  sobel, canny\n" {
		t.Errorf("concepts: %q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "TEXT": OutputText, "json": OutputJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
