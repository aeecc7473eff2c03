package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/pkg/utils"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedder_unitNormAndDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()
	for _, text := range []string{
		"limiarização de Otsu",
		"Convolutional neural networks learn filters",
		"",
		"o que é",
	} {
		a, err := e.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		if len(a) != 128 {
			t.Fatalf("dimension %d", len(a))
		}
		if n := utils.L2Norm(a); math.Abs(n-1) > 1e-5 {
			t.Errorf("%q: norm %f", text, n)
		}
		b, _ := e.Embed(ctx, text)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%q: embedding not deterministic at %d", text, i)
			}
		}
	}
}

func TestHashEmbedder_similarity(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "limiarização otsu")
	related, _ := e.Embed(ctx, "O método de Otsu escolhe o limiar da limiarização automaticamente")
	unrelated, _ := e.Embed(ctx, "Backpropagation computes gradients of neural network weights")
	if dot(q, related) <= dot(q, unrelated) {
		t.Errorf("related text should score higher: %f vs %f", dot(q, related), dot(q, unrelated))
	}
	if dot(q, related) < 0.3 {
		t.Errorf("shared terms should give a clear score, got %f", dot(q, related))
	}
}

func TestHashEmbedder_stopwordsOnly(t *testing.T) {
	e := NewHashEmbedder(16)
	a, _ := e.Embed(context.Background(), "o que é")
	if a[0] != 1 {
		t.Errorf("stopword-only text should use the fallback direction, got %v", a)
	}
}

func TestHashEmbedder_cancelled(t *testing.T) {
	e := NewHashEmbedder(16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.EmbedBatch(ctx, []string{"a", "b"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHashEmbedder_version(t *testing.T) {
	if v := NewHashEmbedder(384).Version(); v != "hash-v1/384" {
		t.Errorf("Version() = %q", v)
	}
	if NewHashEmbedder(0).Dimensions() != 384 {
		t.Error("default dimension should be 384")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default().Embedding
	e, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Version() != "hash-v1/384" {
		t.Errorf("cached embedder should report inner version, got %q", e.Version())
	}

	cfg.CacheSize = 0
	e2, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e2.(*HashEmbedder); !ok {
		t.Errorf("expected bare hash embedder, got %T", e2)
	}

	cfg.Provider = "word2vec"
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
