package search

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/embedding"
	"github.com/hyperjump/bookref/internal/keyword"
	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/ranking"
	"github.com/hyperjump/bookref/internal/storage"
	"github.com/hyperjump/bookref/internal/vector"
)

// fixedEmbedder returns preset vectors for known texts and falls back to feature
// hashing for anything else. Tests register query vectors by embedding text.
type fixedEmbedder struct {
	*embedding.HashEmbedder
	mu   sync.Mutex
	vecs map[string][]float32
}

func newFixedEmbedder() *fixedEmbedder {
	return &fixedEmbedder{HashEmbedder: embedding.NewHashEmbedder(4), vecs: make(map[string][]float32)}
}

func (e *fixedEmbedder) set(text string, v ...float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vecs[text] = v
}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	v, ok := e.vecs[text]
	e.mu.Unlock()
	if ok {
		return append([]float32(nil), v...), nil
	}
	return e.HashEmbedder.Embed(ctx, text)
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

const (
	textConv   = "A convolução desliza um kernel sobre a imagem e soma os produtos."
	textMask   = "Máscaras de convolução maiores suavizam mais a imagem."
	textStereo = "A visão estéreo recupera profundidade a partir de duas câmeras."
	textDrop   = "Dropout desliga unidades aleatoriamente durante o treinamento."

	// EmbeddingText of "o que é convolução" with the default tables.
	convQuery = "o que é convolução convolution kernel"
)

type fixture struct {
	emb   *fixedEmbedder
	index *vector.FlatIndex
	r     *Retriever
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{emb: newFixedEmbedder()}
	f.emb.set(textConv, 1, 0, 0, 0)
	f.emb.set(textMask, 0.6, 0.8, 0, 0)
	f.emb.set(textStereo, 0, 1, 0, 0)
	f.emb.set(textDrop, 0, 0, 1, 0)

	f.index = vector.NewFlatIndex(f.emb)
	chunks := []*models.Chunk{
		{ID: 0, BookID: "gonzalez-dip", BookCode: "gonzalez", BookTitle: "Digital Image Processing", Text: textConv, PageStart: 40, PageEnd: 40},
		{ID: 1, BookID: "gonzalez-dip", BookCode: "gonzalez", BookTitle: "Digital Image Processing", Text: textMask, PageStart: 41, PageEnd: 42},
		{ID: 0, BookID: "szeliski-cv", BookCode: "szeliski", BookTitle: "Computer Vision", Text: textStereo, PageStart: 7, PageEnd: 7},
		{ID: 0, BookID: "goodfellow-dl", BookCode: "goodfellow", BookTitle: "Deep Learning", Text: textDrop, PageStart: 3, PageEnd: 3},
	}
	if err := f.index.Build(context.Background(), chunks); err != nil {
		t.Fatalf("Build: %v", err)
	}
	cfg := config.Default().Retrieval
	f.r = NewRetriever(f.index, ranking.NewQueryAnalyzer(config.DefaultTables(), &cfg), &cfg, WithLogger(zap.NewNop()))
	return f
}

// unit returns a unit vector with x on axis and the remainder on the last axis.
func unit(axis int, x float64) []float32 {
	v := make([]float32, 4)
	v[axis] = float32(x)
	v[3] = float32(math.Sqrt(1 - x*x))
	return v
}

func TestRetriever_Retrieve_ok(t *testing.T) {
	f := newFixture(t)
	f.emb.set(convQuery, 1, 0, 0, 0)

	resp, err := f.r.Retrieve(context.Background(), models.RetrieveRequest{Query: "o que é convolução"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Relaxed || resp.NoResults {
		t.Errorf("unexpected relaxed=%v no_results=%v", resp.Relaxed, resp.NoResults)
	}
	if resp.QueryType != "concept" || resp.SuggestedBook != "gonzalez" || resp.BookFilter != "gonzalez" {
		t.Errorf("analysis %+v", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	first, second := resp.Results[0], resp.Results[1]
	if first.ChunkID != "gonzalez-dip#000000" || first.Rank != 1 || first.Score != 1 {
		t.Errorf("first result %+v", first)
	}
	if first.Source != "Digital Image Processing, página 40" {
		t.Errorf("source %q", first.Source)
	}
	if second.Source != "Digital Image Processing, páginas 41-42" || second.Rank != 2 {
		t.Errorf("second result %+v", second)
	}
	if len(resp.Suggestions) == 0 || len(resp.Suggestions) > 5 {
		t.Errorf("suggestions %v", resp.Suggestions)
	}
}

// Scenario B: a short concept question finds nothing at the adapted threshold and
// one relaxed retry is made before giving up.
func TestRetriever_Retrieve_relaxedRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.r.Analyzer().Analyze("o que é convolução", 5, "")
	if math.Abs(q.Threshold-0.2) > 1e-9 || math.Abs(q.RelaxedThreshold-0.1) > 1e-9 {
		t.Fatalf("thresholds %v/%v", q.Threshold, q.RelaxedThreshold)
	}

	// Best gonzalez score 0.15 sits between the relaxed and the adapted threshold.
	f.emb.set(convQuery, unit(0, 0.15)...)
	resp, err := f.r.Retrieve(ctx, models.RetrieveRequest{Query: "o que é convolução"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Relaxed || resp.NoResults || len(resp.Results) != 1 {
		t.Fatalf("relaxed retry: %+v", resp)
	}
	if resp.Results[0].ChunkID != "gonzalez-dip#000000" || math.Abs(resp.Threshold-0.1) > 1e-9 {
		t.Errorf("relaxed result %+v threshold %v", resp.Results[0], resp.Threshold)
	}

	// Nothing anywhere: NoResults after exactly one retry.
	f.emb.set(convQuery, 0, 0, 0, 1)
	resp, err = f.r.Retrieve(ctx, models.RetrieveRequest{Query: "o que é convolução"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.NoResults || !resp.Relaxed || resp.Message == "" || len(resp.Results) != 0 {
		t.Errorf("no results: %+v", resp)
	}
}

func TestRetriever_Retrieve_retryDropsSuggestedBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// gonzalez chunks score 0 and 0.12, szeliski scores 0.15.
	f.emb.set(convQuery, unit(1, 0.15)...)

	resp, err := f.r.Retrieve(ctx, models.RetrieveRequest{Query: "o que é convolução"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Relaxed || resp.BookFilter != "" || len(resp.Results) != 2 {
		t.Fatalf("advisory retry: %+v", resp)
	}
	if resp.Results[0].BookID != "szeliski-cv" || resp.Results[1].BookID != "gonzalez-dip" {
		t.Errorf("order %s, %s", resp.Results[0].BookID, resp.Results[1].BookID)
	}

	resp, err = f.r.Retrieve(ctx, models.RetrieveRequest{Query: "o que é convolução", BookFilter: "gonzalez"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.BookFilter != "gonzalez" || len(resp.Results) != 1 || resp.Results[0].BookID != "gonzalez-dip" {
		t.Errorf("explicit filter must survive the retry: %+v", resp)
	}
}

// Scenario C: a filter naming no indexed book is an empty answer, not an error.
func TestRetriever_Retrieve_unknownBookFilter(t *testing.T) {
	f := newFixture(t)
	f.emb.set(convQuery, 1, 0, 0, 0)
	resp, err := f.r.Retrieve(context.Background(), models.RetrieveRequest{Query: "o que é convolução", BookFilter: "hartley"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.NoResults || len(resp.Results) != 0 || resp.BookFilter != "hartley" {
		t.Errorf("response %+v", resp)
	}
}

func TestRetriever_Retrieve_persistedIndexOfOtherEmbedder(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	chunk := []*models.Chunk{{ID: 0, BookID: "gonzalez-dip", BookCode: "gonzalez", BookTitle: "Digital Image Processing", Text: textConv, PageStart: 40, PageEnd: 40}}
	old := vector.NewFlatIndex(embedding.NewHashEmbedder(32), vector.WithDir(dir))
	if err := old.Build(ctx, chunk); err != nil {
		t.Fatal(err)
	}

	index := vector.NewFlatIndex(embedding.NewHashEmbedder(64), vector.WithDir(dir))
	if err := index.Load(ctx); !errors.Is(err, models.ErrVersionMismatch) {
		t.Fatalf("Load: expected version mismatch, got %v", err)
	}
	cfg := config.Default().Retrieval
	r := NewRetriever(index, ranking.NewQueryAnalyzer(config.DefaultTables(), &cfg), &cfg, WithLogger(zap.NewNop()))

	resp, err := r.Retrieve(ctx, models.RetrieveRequest{Query: "o que é convolução"})
	if !errors.Is(err, models.ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch instead of an empty answer, got resp=%+v err=%v", resp, err)
	}

	if err := index.Build(ctx, chunk); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(ctx, models.RetrieveRequest{Query: "o que é convolução"}); err != nil {
		t.Errorf("after rebuild: %v", err)
	}
}

func TestRetriever_thresholdMonotonicity(t *testing.T) {
	f := newFixture(t)
	vec := []float32{0.5, 0.5, 0.5, 0.5}
	prev := math.MaxInt
	for th := 0.0; th <= 1.0; th += 0.05 {
		hits, err := f.r.search(context.Background(), vec, 20, "", th)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) > prev {
			t.Fatalf("threshold %.2f returned %d results, more than %d at a lower threshold", th, len(hits), prev)
		}
		prev = len(hits)
	}

	// End to end, as long as the first pass finds something.
	f.emb.set("arquivo de teste qualquer", vec...)
	prev = math.MaxInt
	for _, base := range []float64{0.15, 0.3, 0.45, 0.55, 0.65} {
		cfg := config.Default().Retrieval
		cfg.SimilarityThreshold = base
		r := NewRetriever(f.index, ranking.NewQueryAnalyzer(config.DefaultTables(), &cfg), &cfg)
		resp, err := r.Retrieve(context.Background(), models.RetrieveRequest{Query: "arquivo de teste qualquer", TopK: 10})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Relaxed {
			t.Fatalf("base %.2f needed a retry", base)
		}
		if len(resp.Results) > prev {
			t.Fatalf("base %.2f returned %d results, previous %d", base, len(resp.Results), prev)
		}
		prev = len(resp.Results)
	}
}

func TestRetriever_Retrieve_validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name  string
		req   models.RetrieveRequest
		field string
	}{
		{"empty query", models.RetrieveRequest{Query: "   "}, "query"},
		{"long query", models.RetrieveRequest{Query: strings.Repeat("a", 1001)}, "query"},
		{"negative top_k", models.RetrieveRequest{Query: "otsu", TopK: -1}, "top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.r.Retrieve(ctx, tt.req)
			var pe *models.ParamError
			if !errors.As(err, &pe) || pe.Field != tt.field {
				t.Fatalf("expected ParamError on %s, got %v", tt.field, err)
			}
			if !errors.Is(err, models.ErrInvalidParameter) {
				t.Error("ParamError should match ErrInvalidParameter")
			}
		})
	}
}

func TestProcessRequest_topK(t *testing.T) {
	cfg := config.Default().Retrieval
	req := models.RetrieveRequest{Query: " otsu "}
	if err := ProcessRequest(&req, &cfg); err != nil {
		t.Fatal(err)
	}
	if req.TopK != cfg.DefaultTopK || req.Query != "otsu" {
		t.Errorf("defaults not applied: %+v", req)
	}
	req = models.RetrieveRequest{Query: "otsu", TopK: 500}
	if err := ProcessRequest(&req, &cfg); err != nil {
		t.Fatal(err)
	}
	if req.TopK != cfg.MaxTopK {
		t.Errorf("TopK = %d, want %d", req.TopK, cfg.MaxTopK)
	}
	req = models.RetrieveRequest{Query: strings.Repeat("é", 1000)}
	if err := ProcessRequest(&req, &cfg); err != nil {
		t.Errorf("1000 characters should be accepted: %v", err)
	}
}

func TestRetriever_StatsAndBooks(t *testing.T) {
	f := newFixture(t)
	st, err := f.r.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.BookCount != 3 || st.ChunkCount != 4 || st.IndexDimension != 4 || st.BuildID == "" {
		t.Errorf("stats %+v", st)
	}
	if st.EmbeddingModelVersion != "hash-v1/4" {
		t.Errorf("version %q", st.EmbeddingModelVersion)
	}

	books, err := f.r.ListBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 3 || books[0].BookID != "gonzalez-dip" || books[0].Chunks != 2 {
		t.Errorf("books without store %+v", books)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	book := &models.Book{ID: "gonzalez-dip", Code: "gonzalez", Title: "Digital Image Processing", PageCount: 2}
	if err := store.ReplaceBook(context.Background(), book, []models.Page{{Number: 1, Text: "um"}, {Number: 2, Text: "dois"}}, "fp"); err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(f.index, f.r.Analyzer(), nil, WithStore(store))
	books, err = r.ListBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].Code != "gonzalez" || books[0].Chunks != 2 || books[0].PageCount != 2 {
		t.Errorf("books with store %+v", books)
	}
	p, err := r.Page(context.Background(), "gonzalez-dip", 2)
	if err != nil || p.Text != "dois" {
		t.Errorf("Page: %+v, %v", p, err)
	}
	if _, err := r.Page(context.Background(), "gonzalez-dip", 0); !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("page 0: %v", err)
	}
}

func TestRetriever_ConceptInfo(t *testing.T) {
	f := newFixture(t)
	q := f.r.Analyzer().Analyze(ranking.ConceptQuery("convolução"), conceptTopK, "")
	f.emb.set(q.EmbeddingText, 1, 0, 0, 0)

	info, err := f.r.ConceptInfo(context.Background(), "Convolução")
	if err != nil {
		t.Fatal(err)
	}
	if info.Concept != "convolução" || info.Response == nil {
		t.Fatalf("info %+v", info)
	}
	if len(info.Response.Results) == 0 || len(info.Response.Results) > 3 {
		t.Errorf("results %d", len(info.Response.Results))
	}

	_, err = f.r.ConceptInfo(context.Background(), "convoluçao")
	if !errors.Is(err, models.ErrUnknownConcept) {
		t.Errorf("expected unknown concept, got %v", err)
	}
}

func TestRetriever_Lookup(t *testing.T) {
	f := newFixture(t)
	if _, err := f.r.Lookup(context.Background(), models.LookupRequest{Term: "kernel"}); !errors.Is(err, ErrNoKeywordIndex) {
		t.Errorf("expected ErrNoKeywordIndex, got %v", err)
	}

	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()
	if err := kw.Rebuild(context.Background(), f.index.Snapshot().Entries); err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(f.index, f.r.Analyzer(), nil, WithKeywordIndex(kw))
	hits, err := r.Lookup(context.Background(), models.LookupRequest{Term: "kernel"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "gonzalez-dip#000000" {
		t.Errorf("hits %+v", hits)
	}
}

func TestSource(t *testing.T) {
	if got := Source("Deep Learning", 5, 5); got != "Deep Learning, página 5" {
		t.Errorf("single page %q", got)
	}
	if got := Source("Deep Learning", 5, 7); got != "Deep Learning, páginas 5-7" {
		t.Errorf("page span %q", got)
	}
}
