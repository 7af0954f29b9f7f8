package ai

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds parallel provider calls during batch embedding, so
// a burst of extracted facts does not overwhelm the provider.
const batchConcurrency = 3

// EmbeddingCache is a bounded LRU cache in front of an Embedder, avoiding
// redundant provider calls for repeated query text. Provider errors are not
// cached.
type EmbeddingCache struct {
	embedder Embedder
	capacity int

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	text   string
	vector []float32
}

// NewEmbeddingCache wraps an embedder with an LRU cache of the given
// capacity. Non-positive capacity falls back to 256 entries.
func NewEmbeddingCache(embedder Embedder, capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &EmbeddingCache{
		embedder: embedder,
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Embed returns the cached vector for text, calling the underlying provider
// only on a miss.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if element, ok := c.cache[text]; ok {
		c.order.MoveToFront(element)
		vector := element.Value.(*cacheEntry).vector
		c.mu.Unlock()
		return vector, nil
	}
	c.mu.Unlock()

	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[text]; !ok {
		c.cache[text] = c.order.PushFront(&cacheEntry{text: text, vector: vector})
		for len(c.cache) > c.capacity {
			c.evictOldest()
		}
	}
	return vector, nil
}

// EmbedBatch resolves each text through the cache with bounded concurrency.
// Repeated facts share cache entries with single-text queries; the first
// error cancels the remaining lookups.
func (c *EmbeddingCache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vector, err := c.Embed(gctx, text)
			if err != nil {
				return err
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the underlying embedder's vector dimension.
func (c *EmbeddingCache) Dimensions() int {
	return c.embedder.Dimensions()
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// evictOldest removes the least recently used entry. Must be called with the
// lock held.
func (c *EmbeddingCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*cacheEntry)
	c.order.Remove(oldest)
	delete(c.cache, entry.text)
}
