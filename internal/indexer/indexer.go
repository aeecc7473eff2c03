package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/internal/corpus"
	"github.com/hyperjump/bookref/internal/extract"
	"github.com/hyperjump/bookref/internal/fileid"
	"github.com/hyperjump/bookref/internal/keyword"
	"github.com/hyperjump/bookref/internal/metrics"
	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/internal/storage"
	"github.com/hyperjump/bookref/internal/vector"
	"github.com/hyperjump/bookref/pkg/utils"
)

// Indexer ingests a corpus directory: it extracts new and changed books into the
// corpus store, chunks them, and builds or extends the vector index.
type Indexer struct {
	store     storage.Storage
	extractor *extract.Extractor
	chunker   *Chunker
	index     *vector.FlatIndex
	keywords  keyword.Index
	tables    *config.Tables
	exts      []string
	logger    *zap.Logger

	// runMu is held for a whole Ingest run; a second run is refused, not queued.
	runMu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress and per-book failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(x *Indexer) { x.logger = l }
}

// WithKeywordIndex rebuilds kw from the published snapshot after every build or add.
func WithKeywordIndex(kw keyword.Index) IndexerOption {
	return func(x *Indexer) { x.keywords = kw }
}

// WithExtensions limits ingestion to files with these extensions.
func WithExtensions(exts []string) IndexerOption {
	return func(x *Indexer) { x.exts = exts }
}

// NewIndexer creates an indexer. tables may be nil, in which case books are named from
// their filenames only.
func NewIndexer(
	store storage.Storage,
	extractor *extract.Extractor,
	index *vector.FlatIndex,
	tables *config.Tables,
	chunking config.ChunkingConfig,
	opts ...IndexerOption,
) *Indexer {
	x := &Indexer{
		store:     store,
		extractor: extractor,
		chunker:   NewChunker(chunking.ChunkSize, chunking.ChunkOverlap, chunking.MinChunkSize),
		index:     index,
		tables:    tables,
	}
	for _, opt := range opts {
		opt(x)
	}
	x.logger = utils.NopIfNil(x.logger)
	return x
}

// IngestOptions controls one ingestion run.
type IngestOptions struct {
	// ForceRebuild re-extracts every book and builds a fresh index. The previous index
	// stays published and persisted until the new one is committed; indexes of other
	// embedder versions are removed afterwards.
	ForceRebuild bool
}

// bookState is a scanned book and what ingestion has to do with it.
type bookState struct {
	book        *models.Book
	fingerprint string
	unchanged   bool // the store holds this book with the same fingerprint
	stored      bool // reuse the stored pages instead of extracting
}

// Ingest scans dir and brings the index up to date with it.
//
// Without ForceRebuild the mode follows from the fingerprints recorded in the store:
// nothing changed and an index is loaded gives "unchanged"; only new books gives "add";
// any changed or removed book gives a full "build" that reuses the stored pages of
// unchanged books. Books that fail extraction or chunking are reported in Failures and
// do not stop the run. A run started while another is in progress, here or directly
// on the index, fails with models.ErrBuildInProgress.
func (x *Indexer) Ingest(ctx context.Context, dir string, opts IngestOptions) (*models.IngestReport, error) {
	if !x.runMu.TryLock() {
		return nil, models.ErrBuildInProgress
	}
	defer x.runMu.Unlock()

	start := time.Now()
	report := &models.IngestReport{Failures: []models.IngestFailureEntry{}}

	books, err := corpus.Scan(dir, x.exts, x.tables)
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	known, err := x.store.Fingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}

	// Books in the published index count too: a book rolled back from the store
	// after a failed run still has chunks there and must not be added twice.
	indexed := make(map[string]bool)
	for _, bc := range x.index.Stats().Books {
		indexed[bc.BookID] = true
	}

	states := make([]*bookState, len(books))
	present := make(map[string]bool, len(books))
	changed, added := 0, 0
	for i, b := range books {
		fp := fileid.Fingerprint(b.FileSize, b.FileModTime)
		prev, ok := known[b.ID]
		same := ok && prev == fp
		st := &bookState{book: b, fingerprint: fp, unchanged: same, stored: same && !opts.ForceRebuild}
		switch {
		case !ok && indexed[b.ID]:
			changed++
		case !ok:
			added++
		case prev != fp:
			changed++
		}
		states[i] = st
		present[b.ID] = true
	}
	var removed []string
	for id := range known {
		if !present[id] {
			removed = append(removed, id)
		}
	}
	for id := range indexed {
		if _, ok := known[id]; !ok && !present[id] {
			changed++
		}
	}

	mode := models.IngestModeBuild
	switch {
	case opts.ForceRebuild, x.index.Snapshot().Empty():
	case changed == 0 && len(removed) == 0 && added == 0:
		mode = models.IngestModeUnchanged
	case changed == 0 && len(removed) == 0:
		mode = models.IngestModeAdd
	}
	report.Mode = mode
	x.logger.Info("ingest started",
		zap.String("dir", dir),
		zap.String("mode", mode),
		zap.Int("books", len(books)),
		zap.Int("new", added),
		zap.Int("changed", changed),
		zap.Int("removed", len(removed)))

	if len(books) == 0 {
		report.EmptyCorpus = true
		x.logger.Warn("corpus is empty", zap.String("dir", dir))
	}

	if mode == models.IngestModeUnchanged {
		return x.finish(report, start), nil
	}

	var chunks []*models.Chunk
	var extracted []string
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			x.rollback(extracted)
			return nil, err
		}
		if mode == models.IngestModeAdd && st.stored {
			continue
		}
		if !st.unchanged {
			extracted = append(extracted, st.book.ID)
		}
		bookChunks, err := x.ingestBook(ctx, st)
		if err != nil {
			var failure *models.IngestionFailure
			if !errors.As(err, &failure) {
				x.rollback(extracted)
				return nil, err
			}
			x.recordFailure(report, failure)
			continue
		}
		chunks = append(chunks, bookChunks...)
		report.BooksIndexed++
	}
	report.ChunksIndexed = len(chunks)

	if mode == models.IngestModeAdd {
		err = x.index.Add(ctx, chunks)
	} else {
		err = x.index.Build(ctx, chunks)
	}
	if err != nil {
		x.rollback(extracted)
		return nil, err
	}
	if opts.ForceRebuild {
		if err := x.index.PruneVersions(); err != nil {
			x.logger.Warn("pruning indexes of other embedders failed", zap.Error(err))
		}
	}

	for _, id := range removed {
		if err := x.store.DeleteBook(ctx, id); err != nil && !errors.Is(err, models.ErrBookNotFound) {
			return nil, fmt.Errorf("delete removed book %s: %w", id, err)
		}
		x.logger.Info("book removed", zap.String("book", id))
	}
	x.rebuildKeywords(ctx)
	return x.finish(report, start), nil
}

// ingestBook returns the chunks of one book, extracting it first unless its pages
// are already stored for the current fingerprint.
func (x *Indexer) ingestBook(ctx context.Context, st *bookState) ([]*models.Chunk, error) {
	b := st.book
	var pages []models.Page
	if st.stored {
		stored, err := x.store.GetPages(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("load pages of %s: %w", b.ID, err)
		}
		pages = stored
	} else {
		extracted, err := x.extractor.ExtractPages(b.SourcePath)
		if err != nil {
			return nil, &models.IngestionFailure{BookID: b.ID, Reason: "extraction failed", Err: err}
		}
		if len(extracted) == 0 {
			return nil, &models.IngestionFailure{BookID: b.ID, Reason: "no pages extracted"}
		}
		b.PageCount = len(extracted)
		if err := x.store.ReplaceBook(ctx, b, extracted, st.fingerprint); err != nil {
			return nil, fmt.Errorf("store book %s: %w", b.ID, err)
		}
		pages = extracted
		x.logger.Debug("book extracted", zap.String("book", b.ID), zap.Int("pages", len(pages)))
	}
	chunks, err := x.chunker.Chunk(b, pages)
	if err != nil {
		return nil, err
	}
	x.logger.Debug("book chunked", zap.String("book", b.ID), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// rollback forgets new or changed books extracted by a run whose index was never
// published, so the next run sees them as new or changed again. Books re-extracted
// only because of ForceRebuild keep their rows: the published index still cites them.
func (x *Indexer) rollback(ids []string) {
	for _, id := range ids {
		if err := x.store.DeleteBook(context.Background(), id); err != nil && !errors.Is(err, models.ErrBookNotFound) {
			x.logger.Warn("rollback of extracted book failed", zap.String("book", id), zap.Error(err))
		}
	}
}

func (x *Indexer) recordFailure(report *models.IngestReport, f *models.IngestionFailure) {
	reason := f.Reason
	if f.Err != nil {
		reason = fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	report.Failures = append(report.Failures, models.IngestFailureEntry{Book: f.BookID, Reason: reason})
	metrics.IncIngestFailure(f.BookID)
	x.logger.Warn("book skipped", zap.String("book", f.BookID), zap.String("reason", reason))
}

func (x *Indexer) rebuildKeywords(ctx context.Context) {
	if x.keywords == nil {
		return
	}
	if err := x.keywords.Rebuild(ctx, x.index.Snapshot().Entries); err != nil {
		x.logger.Warn("keyword index rebuild failed", zap.Error(err))
	}
}

func (x *Indexer) finish(report *models.IngestReport, start time.Time) *models.IngestReport {
	report.Duration = time.Since(start).Milliseconds()
	st := x.index.Stats()
	metrics.IncIngestRun(report.Mode)
	metrics.SetIndexSize(len(st.Books), st.Chunks)
	x.logger.Info("ingest finished",
		zap.String("mode", report.Mode),
		zap.Int("books_indexed", report.BooksIndexed),
		zap.Int("chunks_indexed", report.ChunksIndexed),
		zap.Int("failures", len(report.Failures)),
		zap.Int64("duration_ms", report.Duration))
	return report
}

// SyncKeywords rebuilds the keyword index from the published snapshot. Call it after
// loading a persisted vector index so lookups cover the same chunks.
func (x *Indexer) SyncKeywords(ctx context.Context) error {
	if x.keywords == nil {
		return nil
	}
	return x.keywords.Rebuild(ctx, x.index.Snapshot().Entries)
}
