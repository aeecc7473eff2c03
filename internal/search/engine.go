// Package search answers retrieval requests against the published vector index.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/keyword"
	"github.com/hyperjump/bookref/internal/metrics"
	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/ranking"
	"github.com/hyperjump/bookref/internal/storage"
	"github.com/hyperjump/bookref/internal/vector"
	"github.com/hyperjump/bookref/pkg/utils"
)

const (
	conceptTopK = 3

	noResultsMessage = "Nenhum trecho encontrado acima do limiar de similaridade, mesmo após relaxá-lo. " +
		"Tente reformular a consulta, usar outros termos ou remover o filtro de livro."
)

// ErrNoKeywordIndex is returned by Lookup when no keyword index was configured.
var ErrNoKeywordIndex = errors.New("keyword index not configured")

// Retriever runs queries through analysis, embedding, search and formatting.
// Every call reads the snapshot published at the time it starts.
type Retriever struct {
	index    *vector.FlatIndex
	analyzer *ranking.QueryAnalyzer
	cfg      config.RetrievalConfig
	store    storage.Storage
	keywords keyword.Index
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger for per-request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithStore lets ListBooks and Page read the corpus store.
func WithStore(s storage.Storage) Option {
	return func(r *Retriever) { r.store = s }
}

// WithKeywordIndex enables Lookup.
func WithKeywordIndex(kw keyword.Index) Option {
	return func(r *Retriever) { r.keywords = kw }
}

// NewRetriever creates a retriever over index. A nil cfg uses the default retrieval settings.
func NewRetriever(index *vector.FlatIndex, analyzer *ranking.QueryAnalyzer, cfg *config.RetrievalConfig, opts ...Option) *Retriever {
	r := &Retriever{index: index, analyzer: analyzer}
	if cfg != nil {
		r.cfg = *cfg
	} else {
		r.cfg = config.Default().Retrieval
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.NopIfNil(r.logger)
	return r
}

// Analyzer returns the query analyzer shared by this retriever.
func (r *Retriever) Analyzer() *ranking.QueryAnalyzer {
	return r.analyzer
}

// Retrieve answers one query. An empty result is reported through NoResults, not
// as an error. Invalid input gives *models.ParamError before any search work.
func (r *Retriever) Retrieve(ctx context.Context, req models.RetrieveRequest) (*models.RetrieveResponse, error) {
	start := time.Now()
	if err := ProcessRequest(&req, &r.cfg); err != nil {
		return nil, err
	}
	resp, outcome, err := r.retrieve(ctx, req)
	if err != nil {
		metrics.ObserveRetrieve(metrics.OutcomeError, start, 0)
		r.logger.Warn("retrieve failed", zap.String("query", req.Query), zap.Error(err))
		return nil, err
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	metrics.ObserveRetrieve(outcome, start, len(resp.Results))
	r.logger.Debug("retrieve",
		zap.String("query", req.Query),
		zap.String("type", resp.QueryType),
		zap.String("book_filter", resp.BookFilter),
		zap.Float64("threshold", resp.Threshold),
		zap.Bool("relaxed", resp.Relaxed),
		zap.Int("results", len(resp.Results)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

func (r *Retriever) retrieve(ctx context.Context, req models.RetrieveRequest) (*models.RetrieveResponse, string, error) {
	q := r.analyzer.Analyze(req.Query, req.TopK, req.BookFilter)
	metrics.IncQueryType(q.Type.String())

	if err := r.index.CheckVersion(); err != nil {
		return nil, "", err
	}
	vec, err := r.index.Embedder().Embed(ctx, q.EmbeddingText)
	if err != nil {
		return nil, "", fmt.Errorf("embed query: %w", err)
	}

	resp := &models.RetrieveResponse{
		Query:            q.Original,
		SuggestedBook:    q.SuggestedBook,
		QueryType:        q.Type.String(),
		BookFilter:       q.BookFilter,
		Threshold:        q.Threshold,
		ExpandedTerms:    q.ExpandedTerms,
		DetectedConcepts: q.DetectedConcepts,
		Confidence:       round(q.Confidence, 2),
	}

	hits, err := r.search(ctx, vec, q.TopK, q.BookFilter, q.Threshold)
	if err != nil {
		return nil, "", err
	}
	outcome := metrics.OutcomeOK
	if len(hits) == 0 {
		// One retry at the relaxed threshold. A suggested book was only a guess,
		// so the retry searches every book; a caller's filter stays.
		filter := ""
		if q.FilterExplicit {
			filter = q.BookFilter
		}
		hits, err = r.search(ctx, vec, q.TopK, filter, q.RelaxedThreshold)
		if err != nil {
			return nil, "", err
		}
		resp.Relaxed = true
		resp.Threshold = q.RelaxedThreshold
		resp.BookFilter = filter
		outcome = metrics.OutcomeRelaxed
	}

	resp.Results = formatPassages(hits, r.cfg.MaxResultChars)
	if len(hits) == 0 {
		resp.NoResults = true
		resp.Message = noResultsMessage
		outcome = metrics.OutcomeNoResults
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Entry.Text
	}
	resp.Suggestions = r.analyzer.Suggestions(q, texts)
	return resp, outcome, nil
}

// search returns the hits scoring at least threshold, in rank order.
func (r *Retriever) search(ctx context.Context, vec []float32, k int, filter string, threshold float64) ([]*vector.SearchResult, error) {
	hits, err := r.index.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= threshold {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// Stats describes the published index.
func (r *Retriever) Stats(ctx context.Context) (*models.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := r.index.Stats()
	out := &models.IndexStats{
		BookCount:             len(st.Books),
		ChunkCount:            st.Chunks,
		IndexDimension:        st.Dimension,
		EmbeddingModelVersion: st.Version,
		BuildID:               st.BuildID,
		BuiltAt:               st.BuiltAt,
		Books:                 make([]models.BookStat, 0, len(st.Books)),
	}
	for _, b := range st.Books {
		out.Books = append(out.Books, models.BookStat{BookID: b.BookID, Title: b.Title, Chunks: b.Chunks})
	}
	return out, nil
}

// ListBooks returns the ingested books with their indexed chunk counts. Without a
// corpus store only the indexed books are known.
func (r *Retriever) ListBooks(ctx context.Context) ([]models.BookSummary, error) {
	chunks := make(map[string]int)
	st := r.index.Stats()
	for _, b := range st.Books {
		chunks[b.BookID] = b.Chunks
	}
	if r.store == nil {
		out := make([]models.BookSummary, 0, len(st.Books))
		for _, b := range st.Books {
			out = append(out, models.BookSummary{BookID: b.BookID, Title: b.Title, Chunks: b.Chunks})
		}
		return out, nil
	}
	books, err := r.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	out := make([]models.BookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, models.BookSummary{
			BookID:    b.ID,
			Code:      b.Code,
			Title:     b.Title,
			Author:    b.Author,
			PageCount: b.PageCount,
			Chunks:    chunks[b.ID],
		})
	}
	return out, nil
}

// Page returns one stored page of a book.
func (r *Retriever) Page(ctx context.Context, bookID string, number int) (*models.Page, error) {
	if number < 1 {
		return nil, &models.ParamError{Field: "page", Reason: "pages are numbered from 1"}
	}
	if r.store == nil {
		return nil, models.ErrBookNotFound
	}
	return r.store.GetPage(ctx, bookID, number)
}

// ListConcepts returns the known concepts grouped by category.
func (r *Retriever) ListConcepts() []models.ConceptGroup {
	return r.analyzer.ListConcepts()
}

// ConceptInfo retrieves reference material for a known concept. Unknown names give
// *models.UnknownConceptError with close matches.
func (r *Retriever) ConceptInfo(ctx context.Context, name string) (*models.ConceptInfo, error) {
	concept, phrase, err := r.analyzer.ResolveConcept(name)
	if err != nil {
		return nil, err
	}
	resp, err := r.Retrieve(ctx, models.RetrieveRequest{Query: ranking.ConceptQuery(phrase), TopK: conceptTopK})
	if err != nil {
		return nil, err
	}
	return &models.ConceptInfo{
		Concept:  concept,
		Category: r.analyzer.Category(concept),
		Response: resp,
	}, nil
}

// Lookup finds exact-term occurrences through the keyword index.
func (r *Retriever) Lookup(ctx context.Context, req models.LookupRequest) ([]*models.LookupHit, error) {
	if r.keywords == nil {
		return nil, ErrNoKeywordIndex
	}
	return r.keywords.Lookup(ctx, req.Term, req.Book, req.Limit)
}
