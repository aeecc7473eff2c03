// Package cli renders bookref results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/storage"
	"github.com/hyperjump/bookref/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	rule           = "─────────────────────────────────────────────────────────"
	passagePreview = 400
)

// ParseFormat maps a --format flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrieveResponse writes a retrieval response to w in the given format.
func WriteRetrieveResponse(w io.Writer, resp *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%d passage(s) in %dms | type: %s | threshold: %.2f", len(resp.Results), resp.QueryTime, resp.QueryType, resp.Threshold)
	if resp.Relaxed {
		fmt.Fprint(w, " (relaxed)")
	}
	fmt.Fprintln(w)
	if resp.BookFilter != "" {
		fmt.Fprintf(w, "Book filter: %s\n", resp.BookFilter)
	} else if resp.SuggestedBook != "" {
		fmt.Fprintf(w, "Suggested book: %s\n", resp.SuggestedBook)
	}
	if len(resp.DetectedConcepts) > 0 {
		fmt.Fprintf(w, "Concepts: %s\n", strings.Join(resp.DetectedConcepts, ", "))
	}
	fmt.Fprintln(w)
	if resp.NoResults {
		fmt.Fprintln(w, resp.Message)
	}
	for _, p := range resp.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%d. %s | score %.3f\n", p.Rank, p.Source, p.Score)
		fmt.Fprintf(w, "   %s\n\n", p.ChunkID)
		fmt.Fprintln(w, utils.TruncateAtWord(p.Text, passagePreview))
		fmt.Fprintln(w)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(w, "Follow-up questions:")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	return nil
}

// WriteIngestReport writes an ingestion report.
func WriteIngestReport(w io.Writer, r *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	if r.EmptyCorpus {
		fmt.Fprintln(w, "Corpus directory has no books.")
		return nil
	}
	fmt.Fprintf(w, "Ingest (%s): %d book(s), %d chunk(s) indexed in %dms\n", r.Mode, r.BooksIndexed, r.ChunksIndexed, r.Duration)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  skipped %s: %s\n", f.Book, f.Reason)
	}
	return nil
}

// WriteStats writes index statistics, with disk usage when known.
func WriteStats(w io.Writer, st *models.IndexStats, usage *storage.Usage, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			*models.IndexStats
			Disk *storage.Usage `json:"disk,omitempty"`
		}{st, usage})
	}
	fmt.Fprintf(w, "Books:      %d\n", st.BookCount)
	fmt.Fprintf(w, "Chunks:     %d\n", st.ChunkCount)
	fmt.Fprintf(w, "Dimension:  %d\n", st.IndexDimension)
	fmt.Fprintf(w, "Embedder:   %s\n", st.EmbeddingModelVersion)
	if st.BuiltAt != nil {
		fmt.Fprintf(w, "Built at:   %s (%s)\n", st.BuiltAt.Format("2006-01-02 15:04:05"), st.BuildID)
	}
	if usage != nil {
		fmt.Fprintf(w, "Disk usage: %s (database %s, vectors %s, keywords %s)\n",
			FormatBytes(usage.Total()), FormatBytes(usage.Database), FormatBytes(usage.VectorIndex), FormatBytes(usage.KeywordIndex))
	}
	return nil
}

// WriteBooks writes the book catalog.
func WriteBooks(w io.Writer, books []models.BookSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, books)
	}
	if len(books) == 0 {
		fmt.Fprintln(w, "No books ingested.")
		return nil
	}
	for _, b := range books {
		fmt.Fprintf(w, "%-28s %-10s %5d pages %6d chunks  %s", b.BookID, b.Code, b.PageCount, b.Chunks, b.Title)
		if b.Author != "" {
			fmt.Fprintf(w, " (%s)", b.Author)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteConcepts writes the concept groups.
func WriteConcepts(w io.Writer, groups []models.ConceptGroup, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, groups)
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s:\n  %s\n", g.Category, strings.Join(g.Concepts, ", "))
	}
	return nil
}

// WriteConceptInfo writes the reference material for one concept.
func WriteConceptInfo(w io.Writer, info *models.ConceptInfo, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, info)
	}
	fmt.Fprintf(w, "%s [%s]\n", info.Concept, info.Category)
	return WriteRetrieveResponse(w, info.Response, format)
}

// WriteLookupHits writes keyword lookup hits.
func WriteLookupHits(w io.Writer, term string, hits []*models.LookupHit, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, hits)
	}
	fmt.Fprintf(w, "%d hit(s) for %q\n", len(hits), term)
	for _, h := range hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s, pages %d-%d | %s | score %.3f\n", h.Book, h.PageStart, h.PageEnd, h.ChunkID, h.Score)
		fmt.Fprintln(w, h.Snippet)
	}
	return nil
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
