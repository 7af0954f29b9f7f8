package memory

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/store"
	"github.com/hearthmem/hearth/store/db/memdb"
)

// stubEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector otherwise.
type stubEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	err        error
	calls      int
	batchCalls int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (e *stubEmbedder) set(text string, vector []float32) {
	e.vectors[text] = vector
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if vector, ok := e.vectors[text]; ok {
		return vector, nil
	}
	return hashVector(text), nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batchCalls++
	e.mu.Unlock()
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

func (e *stubEmbedder) Dimensions() int { return 8 }

func hashVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vector := make([]float32, 8)
	for i := range vector {
		vector[i] = float32(sum[i])/255.0 - 0.5
	}
	return vector
}

// stubExtractor returns a canned fact list.
type stubExtractor struct {
	facts []string
	err   error
	calls int
}

func (e *stubExtractor) Extract(context.Context, string) ([]string, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.facts, nil
}

func newTestStore() *store.Store {
	p := &profile.Profile{
		Mode:         "dev",
		Driver:       "memory",
		DefaultOwner: "default",
		Heat:         profile.DefaultHeatConfig(),
	}
	return store.New(memdb.NewDB(p), p)
}

// seedRecord inserts a record directly at the store layer with explicit heat
// state, bypassing the ingestion pipeline.
func seedRecord(st *store.Store, ownerID, content string, heat *float64, pinned bool, embedding []float32) *store.MemoryRecord {
	record := &store.MemoryRecord{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Content:     content,
		ContentHash: store.HashContent(ownerID, content),
		Embedding:   embedding,
		Importance:  1.0,
		Pinned:      pinned,
		CreatedTs:   time.Now().Unix(),
	}
	if heat != nil {
		h := *heat
		record.Heat = &h
	}
	stored, err := st.CreateMemoryRecord(context.Background(), record)
	if err != nil {
		panic(err)
	}
	return stored
}

func heatPtr(v float64) *float64 { return &v }
