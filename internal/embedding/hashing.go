package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/bookref/pkg/utils"
)

// bigramWeight scales word-pair features relative to single words.
const bigramWeight = 0.5

// HashEmbedder is a deterministic feature-hashing embedder. Content words and adjacent
// word pairs are hashed into signed buckets, weighted by sublinear term frequency,
// and the result is L2-normalized. It needs no model files, so it is the default.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder with the given dimension (384 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length feature vector of text. Text without any content word
// maps to a fixed fallback direction so the result is still unit length.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := ContentWords(text)
	counts := make(map[string]float64, 2*len(words))
	for i, w := range words {
		counts[w]++
		if i > 0 {
			counts[words[i-1]+" "+w] += bigramWeight
		}
	}

	vec := make([]float32, e.dimensions)
	if len(counts) == 0 {
		vec[0] = 1
		return vec, nil
	}
	for feature, tf := range counts {
		h := HashString(feature)
		idx := int(h % uint64(e.dimensions))
		w := 1 + math.Log(tf)
		if tf < 1 {
			w = tf
		}
		if h>>63 == 1 {
			w = -w
		}
		vec[idx] += float32(w)
	}
	utils.NormalizeL2(vec)
	if utils.L2Norm(vec) == 0 {
		// Every feature cancelled out in its bucket.
		vec[0] = 1
	}
	return vec, nil
}

// EmbedBatch embeds each text, stopping early when ctx is cancelled.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Version returns "hash-v1/<dims>".
func (e *HashEmbedder) Version() string {
	return fmt.Sprintf("hash-v1/%d", e.dimensions)
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
