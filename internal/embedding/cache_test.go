package embedding

import (
	"context"
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")                 // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestEmbeddingCache_concurrentGet(t *testing.T) {
	c := NewEmbeddingCache(4)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					c.Get("a")
				} else {
					c.Get("b")
				}
			}
		}(i)
	}
	wg.Wait()
}

type countingEmbedder struct {
	*HashEmbedder
	mu    sync.Mutex
	calls int
	texts int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	c.texts += len(texts)
	c.mu.Unlock()
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_batchMissesOnly(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(32)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.EmbedBatch(ctx, []string{"sobel", "canny"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.EmbedBatch(ctx, []string{"canny", "hough", "sobel"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 || inner.texts != 3 {
		t.Errorf("inner saw %d calls / %d texts, want 2 / 3", inner.calls, inner.texts)
	}
	if &second[0][0] != &first[1][0] {
		t.Error("cached vector should be returned for a hit")
	}
	want, _ := inner.HashEmbedder.Embed(ctx, "hough")
	for i := range want {
		if second[1][i] != want[i] {
			t.Fatal("miss should be filled from the inner embedder")
		}
	}
	if c.Version() != inner.Version() || c.Dimensions() != 32 {
		t.Error("cached embedder should report inner identity")
	}
}
