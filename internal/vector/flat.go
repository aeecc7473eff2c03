package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/embedding"
	"github.com/hyperjump/bookref/internal/models"
	"github.com/hyperjump/bookref/pkg/utils"
)

const (
	defaultMaxTopK   = 20
	defaultBatchSize = 32
)

// FlatIndex is an exact inner-product index over unit vectors. Searches read the
// current snapshot without locking; Build and Add serialize on a build lock and
// publish a new snapshot atomically, so a search sees either the old or the new
// generation in full.
type FlatIndex struct {
	embedder  embedding.Embedder
	maxTopK   int
	batchSize int
	dir       string
	logger    *zap.Logger

	snap    atomic.Pointer[Snapshot]
	buildMu sync.Mutex
	// stale names the persisted index Load found for another embedder version.
	// Searches are refused until a Build publishes a generation for this one.
	stale atomic.Pointer[string]
}

// Option configures a FlatIndex.
type Option func(*FlatIndex)

// WithMaxTopK caps the number of results a search may return.
func WithMaxTopK(k int) Option {
	return func(f *FlatIndex) {
		if k > 0 {
			f.maxTopK = k
		}
	}
}

// WithBatchSize sets how many chunks are embedded per embedder call.
func WithBatchSize(n int) Option {
	return func(f *FlatIndex) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithDir persists every published snapshot under dir. Without it the index is memory-only.
func WithDir(dir string) Option {
	return func(f *FlatIndex) { f.dir = dir }
}

// WithLogger sets a logger for build and load events.
func WithLogger(l *zap.Logger) Option {
	return func(f *FlatIndex) { f.logger = l }
}

// NewFlatIndex creates an empty index whose vectors come from embedder.
func NewFlatIndex(embedder embedding.Embedder, opts ...Option) *FlatIndex {
	f := &FlatIndex{
		embedder:  embedder,
		maxTopK:   defaultMaxTopK,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = utils.NopIfNil(f.logger)
	f.snap.Store(emptySnapshot(embedder.Version(), embedder.Dimensions()))
	return f
}

// Embedder returns the embedder that produced the indexed vectors.
func (f *FlatIndex) Embedder() embedding.Embedder {
	return f.embedder
}

// Snapshot returns the currently published snapshot.
func (f *FlatIndex) Snapshot() *Snapshot {
	return f.snap.Load()
}

// Stats summarizes the current snapshot.
func (f *FlatIndex) Stats() Stats {
	return f.snap.Load().Stats()
}

// Build embeds chunks and replaces the whole index with them. It fails with
// models.ErrBuildInProgress when another Build or Add is running. On any error
// the previously published snapshot and its artifacts are left untouched.
func (f *FlatIndex) Build(ctx context.Context, chunks []*models.Chunk) error {
	if !f.buildMu.TryLock() {
		return models.ErrBuildInProgress
	}
	defer f.buildMu.Unlock()

	start := time.Now()
	if err := checkUniqueKeys(nil, chunks); err != nil {
		return err
	}
	vectors, err := f.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = EntryFromChunk(c)
	}
	next := &Snapshot{
		Version:   f.embedder.Version(),
		Dimension: f.embedder.Dimensions(),
		BuildID:   uuid.New(),
		BuiltAt:   time.Now().UTC(),
		Entries:   entries,
		vectors:   vectors,
	}
	if err := f.publish(next, len(chunks)); err != nil {
		return err
	}
	f.logger.Info("index built",
		zap.Int("chunks", next.Len()),
		zap.String("version", next.Version),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Add appends chunks to the current index. The current snapshot must come from the
// same embedder version (models.ErrVersionMismatch otherwise), and chunk keys must
// not already be indexed.
func (f *FlatIndex) Add(ctx context.Context, chunks []*models.Chunk) error {
	if !f.buildMu.TryLock() {
		return models.ErrBuildInProgress
	}
	defer f.buildMu.Unlock()

	if err := f.CheckVersion(); err != nil {
		return err
	}
	cur := f.snap.Load()
	if len(chunks) == 0 {
		return nil
	}
	if err := checkUniqueKeys(cur.Entries, chunks); err != nil {
		return err
	}
	added, err := f.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, cur.Len()+len(chunks))
	entries = append(entries, cur.Entries...)
	for _, c := range chunks {
		entries = append(entries, EntryFromChunk(c))
	}
	vectors := make([]float32, 0, len(cur.vectors)+len(added))
	vectors = append(vectors, cur.vectors...)
	vectors = append(vectors, added...)

	next := &Snapshot{
		Version:   cur.Version,
		Dimension: cur.Dimension,
		BuildID:   uuid.New(),
		BuiltAt:   time.Now().UTC(),
		Entries:   entries,
		vectors:   vectors,
	}
	if err := f.publish(next, cur.Len()+len(chunks)); err != nil {
		return err
	}
	f.logger.Info("index extended", zap.Int("added", len(chunks)), zap.Int("chunks", next.Len()))
	return nil
}

// publish validates next, persists it when a directory is configured, and swaps it in.
func (f *FlatIndex) publish(next *Snapshot, wantRows int) error {
	if err := validate(next, wantRows, normTolerance); err != nil {
		return err
	}
	if f.dir != "" {
		if err := writeSnapshot(f.artifactDir(next.Version), next); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}
	f.snap.Store(next)
	f.stale.Store(nil)
	return nil
}

// CheckVersion returns models.ErrVersionMismatch when the published snapshot, or the
// persisted index found by Load, comes from a different embedder version.
func (f *FlatIndex) CheckVersion() error {
	if other := f.stale.Load(); other != nil {
		return fmt.Errorf("%w: persisted index is %s, embedder %q; rebuild required",
			models.ErrVersionMismatch, *other, f.embedder.Version())
	}
	if s := f.snap.Load(); s.Version != f.embedder.Version() {
		return fmt.Errorf("%w: index %q, embedder %q", models.ErrVersionMismatch, s.Version, f.embedder.Version())
	}
	return nil
}

// embedChunks returns the unit vectors of chunks as one row-major slice.
func (f *FlatIndex) embedChunks(ctx context.Context, chunks []*models.Chunk) ([]float32, error) {
	dim := f.embedder.Dimensions()
	out := make([]float32, 0, len(chunks)*dim)
	for lo := 0; lo < len(chunks); lo += f.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := lo + f.batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		texts := make([]string, hi-lo)
		for i, c := range chunks[lo:hi] {
			texts[i] = c.Text
		}
		vecs, err := f.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", lo, hi, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for i, v := range vecs {
			if len(v) != dim {
				return nil, fmt.Errorf("chunk %s: embedding dimension %d, want %d", chunks[lo+i].Key(), len(v), dim)
			}
			// Copy before normalizing; embedders may return cached slices.
			row := make([]float32, dim)
			copy(row, v)
			utils.NormalizeL2(row)
			out = append(out, row...)
		}
	}
	return out, nil
}

func checkUniqueKeys(existing []Entry, chunks []*models.Chunk) error {
	seen := make(map[string]struct{}, len(existing)+len(chunks))
	for i := range existing {
		seen[existing[i].Key] = struct{}{}
	}
	for _, c := range chunks {
		k := c.Key()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate chunk key %s", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// validate checks the row count, dimension, and norms of s.
func validate(s *Snapshot, wantRows int, tol float64) error {
	if s.Len() != wantRows {
		return fmt.Errorf("index has %d entries, want %d", s.Len(), wantRows)
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", s.Dimension)
	}
	if len(s.vectors) != s.Len()*s.Dimension {
		return fmt.Errorf("index has %d floats, want %d rows of %d", len(s.vectors), s.Len(), s.Dimension)
	}
	for i := 0; i < s.Len(); i++ {
		if !isUnit(s.Vector(i), tol) {
			return fmt.Errorf("vector %d (%s) is not unit length", i, s.Entries[i].Key)
		}
	}
	return nil
}

// Search returns the k best entries for the unit query vector, best first. k is
// clamped to [1, max top k]. A non-empty filter keeps only entries whose book id
// or book code equals it. An empty index or an unmatched filter yields no results
// and no error.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int, filter string) ([]*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.CheckVersion(); err != nil {
		return nil, err
	}
	s := f.snap.Load()
	if len(query) != s.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.Dimension)
	}
	if k < 1 {
		k = 1
	}
	if k > f.maxTopK {
		k = f.maxTopK
	}

	results := make([]*SearchResult, 0, s.Len())
	for i := range s.Entries {
		e := &s.Entries[i]
		if filter != "" && e.BookID != filter && !strings.EqualFold(e.BookCode, filter) {
			continue
		}
		results = append(results, &SearchResult{
			ChunkKey: e.Key,
			BookID:   e.BookID,
			Score:    InnerProduct(query, s.Vector(i)),
			Entry:    e,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkKey < results[j].ChunkKey
	})
	if len(results) > k {
		results = results[:k]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return results, nil
}

// Load reads the persisted index for the embedder's version and publishes it.
// It returns models.ErrIndexNotFound when nothing is persisted, models.ErrVersionMismatch
// when only an index from another embedder exists, and models.ErrCorruptIndex when the
// artifacts are inconsistent. The current snapshot is kept on error.
func (f *FlatIndex) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.dir == "" {
		return fmt.Errorf("%w: no index directory configured", models.ErrIndexNotFound)
	}
	version := f.embedder.Version()
	s, err := readSnapshot(f.artifactDir(version), version, f.embedder.Dimensions())
	if errors.Is(err, models.ErrIndexNotFound) {
		if other := otherVersions(f.dir, version); len(other) > 0 {
			found := strings.Join(other, ", ")
			f.stale.Store(&found)
			return fmt.Errorf("%w: found index for %s, embedder is %s", models.ErrVersionMismatch, found, version)
		}
	}
	if errors.Is(err, models.ErrVersionMismatch) {
		found := "another version"
		f.stale.Store(&found)
	}
	if err != nil {
		return err
	}
	f.snap.Store(s)
	f.stale.Store(nil)
	f.logger.Info("index loaded",
		zap.Int("chunks", s.Len()),
		zap.String("version", s.Version),
		zap.String("build_id", s.BuildID.String()))
	return nil
}

// PruneVersions deletes the persisted artifacts of every embedder version other than
// the current one. Call it after a successful rebuild.
func (f *FlatIndex) PruneVersions() error {
	if f.dir == "" {
		return nil
	}
	if !f.buildMu.TryLock() {
		return models.ErrBuildInProgress
	}
	defer f.buildMu.Unlock()
	for _, name := range otherVersions(f.dir, f.embedder.Version()) {
		if err := os.RemoveAll(filepath.Join(f.dir, name)); err != nil {
			return fmt.Errorf("prune index %s: %w", name, err)
		}
		f.logger.Info("pruned index of another embedder", zap.String("dir", name))
	}
	return nil
}
