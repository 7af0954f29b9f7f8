package ai

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many provider calls each text caused.
type countingEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{calls: make(map[string]int)}
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[text]++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }

func (e *countingEmbedder) callCount(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

func TestEmbeddingCache_HitAvoidsProvider(t *testing.T) {
	ctx := context.Background()
	provider := newCountingEmbedder()
	cache := NewEmbeddingCache(provider, 8)

	first, err := cache.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.callCount("hello"))
	assert.Equal(t, 1, cache.Len())
}

func TestEmbeddingCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	provider := newCountingEmbedder()
	cache := NewEmbeddingCache(provider, 2)

	_, err := cache.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = cache.Embed(ctx, "b")
	require.NoError(t, err)

	// Touch "a" so "b" becomes the eviction candidate.
	_, err = cache.Embed(ctx, "a")
	require.NoError(t, err)

	_, err = cache.Embed(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	// "a" survives, "b" was evicted and costs a second provider call.
	_, err = cache.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.callCount("a"))

	_, err = cache.Embed(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.callCount("b"))
}

func TestEmbeddingCache_EmbedBatch(t *testing.T) {
	ctx := context.Background()
	provider := newCountingEmbedder()
	cache := NewEmbeddingCache(provider, 8)

	vectors, err := cache.EmbedBatch(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, vector := range vectors {
		assert.NotEmpty(t, vector)
	}

	// Batch results land in the same cache single-text lookups use.
	assert.Equal(t, 3, cache.Len())
	_, err = cache.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.callCount("one"))
}

func TestEmbeddingCache_EmbedBatch_Error(t *testing.T) {
	provider := newCountingEmbedder()
	provider.err = errors.New("provider down")
	cache := NewEmbeddingCache(provider, 8)

	_, err := cache.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestEmbeddingCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	provider := newCountingEmbedder()
	provider.err = errors.New("provider down")
	cache := NewEmbeddingCache(provider, 8)

	_, err := cache.Embed(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	provider.err = nil
	_, err = cache.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestEmbeddingCache_DefaultCapacity(t *testing.T) {
	cache := NewEmbeddingCache(newCountingEmbedder(), 0)
	assert.Equal(t, 256, cache.capacity)
}

func TestEmbeddingCache_CapacityBound(t *testing.T) {
	ctx := context.Background()
	cache := NewEmbeddingCache(newCountingEmbedder(), 4)

	for i := 0; i < 20; i++ {
		_, err := cache.Embed(ctx, fmt.Sprintf("text-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 4, cache.Len())
}

func TestEmbeddingCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache := NewEmbeddingCache(newCountingEmbedder(), 16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := cache.Embed(ctx, fmt.Sprintf("text-%d", (n+j)%32))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Len(), 16)
}
