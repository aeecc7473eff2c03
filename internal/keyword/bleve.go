package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/vector"
	"github.com/hyperjump/bookref/pkg/utils"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	snippetChars = 240
	batchSize    = 500
)

// chunkDoc is the document stored per chunk.
type chunkDoc struct {
	BookID    string `json:"book_id"`
	BookCode  string `json:"book_code"`
	Title     string `json:"title"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	Text      string `json:"text"`
}

// BleveIndex implements Index using Bleve. With an empty path the index lives in memory.
type BleveIndex struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	index bleve.Index
}

// Option configures a BleveIndex.
type Option func(*BleveIndex)

// WithLogger sets a logger for rebuild events.
func WithLogger(l *zap.Logger) Option {
	return func(b *BleveIndex) { b.logger = l }
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming): a lookup for "otsu"
	// must match the word itself, not a stem shared with other words.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.IncludeTermVectors = true
	doc.AddFieldMappingsAt("text", text)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name
	doc.AddFieldMappingsAt("book_id", exact)
	doc.AddFieldMappingsAt("book_code", exact)

	title := bleve.NewTextFieldMapping()
	title.IncludeInAll = false
	doc.AddFieldMappingsAt("title", title)

	pages := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("page_start", pages)
	doc.AddFieldMappingsAt("page_end", pages)

	im.DefaultMapping = doc
	return im
}

// NewBleveIndex opens the index at path, creating it when absent. An empty path
// creates a memory-only index.
func NewBleveIndex(path string, opts ...Option) (*BleveIndex, error) {
	b := &BleveIndex{path: path}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.NopIfNil(b.logger)

	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		b.index = idx
		return b, nil
	}
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		b.index = idx
		return b, nil
	}
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b.index = idx
	return b, nil
}

// Rebuild indexes entries into a fresh index and swaps it in. Lookups keep using
// the previous index until the swap.
func (b *BleveIndex) Rebuild(ctx context.Context, entries []vector.Entry) error {
	tmpPath := ""
	var next bleve.Index
	var err error
	if b.path == "" {
		next, err = bleve.NewMemOnly(newMapping())
	} else {
		tmpPath = b.path + ".rebuild"
		if err := os.RemoveAll(tmpPath); err != nil {
			return fmt.Errorf("clear rebuild dir: %w", err)
		}
		next, err = bleve.New(tmpPath, newMapping())
	}
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}

	if err := fill(ctx, next, entries); err != nil {
		next.Close()
		if tmpPath != "" {
			os.RemoveAll(tmpPath)
		}
		return err
	}

	if tmpPath != "" {
		// Move the finished index into place and reopen it there.
		if err := next.Close(); err != nil {
			return fmt.Errorf("close rebuilt index: %w", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		b.index.Close()
	}
	if tmpPath != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove old index: %w", err)
		}
		if err := os.Rename(tmpPath, b.path); err != nil {
			return fmt.Errorf("move rebuilt index: %w", err)
		}
		next, err = bleve.Open(b.path)
		if err != nil {
			b.index = nil
			return fmt.Errorf("failed to open Bleve index: %w", err)
		}
	}
	b.index = next
	b.logger.Info("keyword index rebuilt", zap.Int("chunks", len(entries)))
	return nil
}

func fill(ctx context.Context, idx bleve.Index, entries []vector.Entry) error {
	batch := idx.NewBatch()
	for i := range entries {
		e := &entries[i]
		if err := batch.Index(e.Key, chunkDoc{
			BookID:    e.BookID,
			BookCode:  strings.ToLower(e.BookCode),
			Title:     e.BookTitle,
			PageStart: e.PageStart,
			PageEnd:   e.PageEnd,
			Text:      e.Text,
		}); err != nil {
			return fmt.Errorf("index chunk %s: %w", e.Key, err)
		}
		if batch.Size() >= batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

// Lookup runs a phrase match for term over chunk texts. limit defaults to 10 and
// is capped at 100.
func (b *BleveIndex) Lookup(ctx context.Context, term, book string, limit int) ([]*models.LookupHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &models.ParamError{Field: "term", Reason: "must not be empty"}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tq := bleve.NewMatchPhraseQuery(term)
	tq.SetField("text")
	var q blevequery.Query = tq
	if book != "" {
		byID := bleve.NewTermQuery(book)
		byID.SetField("book_id")
		byCode := bleve.NewTermQuery(strings.ToLower(book))
		byCode.SetField("book_code")
		q = bleve.NewConjunctionQuery(tq, bleve.NewDisjunctionQuery(byID, byCode))
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "_id"})

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, fmt.Errorf("keyword index is closed")
	}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*models.LookupHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		text := fieldString(hit.Fields, "text")
		out = append(out, &models.LookupHit{
			ChunkID:   hit.ID,
			BookID:    fieldString(hit.Fields, "book_id"),
			Book:      fieldString(hit.Fields, "title"),
			PageStart: fieldInt(hit.Fields, "page_start"),
			PageEnd:   fieldInt(hit.Fields, "page_end"),
			Score:     hit.Score,
			Snippet:   Snippet(text, term, snippetChars),
		})
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func fieldInt(fields map[string]interface{}, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Snippet returns about width bytes of text around the first case-insensitive
// occurrence of term, with "..." marking cut ends. Without an occurrence it
// returns the start of text.
func Snippet(text, term string, width int) string {
	if len(text) <= width {
		return text
	}
	at := strings.Index(strings.ToLower(text), strings.ToLower(term))
	if at < 0 || len(strings.ToLower(text)) != len(text) {
		// Lowercasing changed byte offsets; fall back to the head of the text.
		return utils.TruncateAtWord(text, width)
	}
	start := at - width/3
	if start < 0 {
		start = 0
	}
	for start > 0 && start < len(text) && !utf8.RuneStart(text[start]) {
		start--
	}
	end := start + width
	if end > len(text) {
		end = len(text)
	}
	s := utils.RuneBoundary(text[start:], end-start)
	if start > 0 {
		if i := strings.IndexByte(s, ' '); i >= 0 && i < len(s)/4 {
			s = s[i+1:]
		}
		s = "..." + s
	}
	if end < len(text) {
		if i := strings.LastIndexByte(s, ' '); i > len(s)*3/4 {
			s = s[:i]
		}
		s += "..."
	}
	return s
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, nil
	}
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
