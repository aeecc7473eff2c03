// Package embedding turns text into unit-length vectors for similarity search.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/config"
)

// Embedder produces vector embeddings for text.
// Version identifies the model and dimension; vectors from embedders with different
// versions are not comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Version() string
	Close() error
}

// New builds the embedder selected by cfg, wrapped in an LRU cache when cache_size > 0.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case config.ProviderHash, "":
		inner = NewHashEmbedder(cfg.Dimensions)
	case config.ProviderONNX:
		e, err := NewONNXEmbedder(ONNXOptions{
			ModelPath:  cfg.ModelPath,
			ModelName:  cfg.ModelName,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ONNX embedder: %w", err)
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if logger != nil {
		logger.Debug("embedder ready",
			zap.String("version", inner.Version()),
			zap.Int("dimensions", inner.Dimensions()),
			zap.Int("cache_size", cfg.CacheSize))
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}

// ONNXOptions configures an ONNXEmbedder.
type ONNXOptions struct {
	ModelPath  string
	ModelName  string
	Dimensions int
	MaxTokens  int
	// OutputName is the token-state output of the exported model.
	OutputName string
}

func (o *ONNXOptions) applyDefaults() {
	if o.Dimensions <= 0 {
		o.Dimensions = 384
	}
	if o.MaxTokens <= 2 {
		o.MaxTokens = 256
	}
	if o.ModelName == "" {
		o.ModelName = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if o.OutputName == "" {
		o.OutputName = "last_hidden_state"
	}
}

func onnxVersion(modelName string, dims int) string {
	return fmt.Sprintf("onnx/%s/%d", modelName, dims)
}
