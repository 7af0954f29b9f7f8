package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/server/ai"
	errs "github.com/hearthmem/hearth/server/internal/errors"
	"github.com/hearthmem/hearth/store"
)

// Ingestor turns raw input into memory records: conversational content is
// routed through the fact extractor, documents are embedded verbatim.
type Ingestor struct {
	store     *store.Store
	embedder  ai.Embedder
	extractor ai.FactExtractor
	cfg       profile.HeatConfig
}

// NewIngestor creates an ingestion pipeline.
func NewIngestor(st *store.Store, embedder ai.Embedder, extractor ai.FactExtractor, cfg profile.HeatConfig) *Ingestor {
	return &Ingestor{
		store:     st,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
	}
}

// AddOptions carries ingestion metadata. OwnerID is required.
type AddOptions struct {
	OwnerID     string
	Source      string
	ContentType string
	Tags        []string
	// Pin stores the record pinned at max heat.
	Pin bool
}

// IngestResult reports one stored or deduplicated record.
type IngestResult struct {
	Record *store.MemoryRecord
	// Deduplicated is true when an identical record already existed and its
	// id was returned instead of creating a new row.
	Deduplicated bool
}

// Add extracts atomic facts from conversational content and stores each as a
// record. The fact text, not the raw input, is what gets embedded. Zero
// extracted facts is a valid empty result, not an error.
func (ing *Ingestor) Add(ctx context.Context, content string, opts AddOptions) ([]*IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.InvalidArgument("content must not be empty")
	}
	if opts.OwnerID == "" {
		return nil, errs.InvalidArgument("owner id must not be empty")
	}

	facts, err := ing.extractor.Extract(ctx, content)
	if err != nil {
		return nil, errs.ExtractionUnavailable("fact extraction failed", err)
	}
	if len(facts) == 0 {
		slog.Debug("no storable facts extracted", "owner_id", opts.OwnerID)
		return []*IngestResult{}, nil
	}

	// Embed every fact before inserting anything, so a provider failure
	// leaves no partial record behind.
	vectors, err := ing.embedder.EmbedBatch(ctx, facts)
	if err != nil {
		return nil, errs.EmbeddingUnavailable("fact embedding failed", err)
	}

	results := make([]*IngestResult, 0, len(facts))
	for i, fact := range facts {
		result, err := ing.insert(ctx, fact, vectors[i], opts)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// AddDocument bypasses fact extraction: the full content is embedded and
// stored verbatim as a single record. Used for large inputs where
// distillation would lose information.
func (ing *Ingestor) AddDocument(ctx context.Context, content string, opts AddOptions) (*IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.InvalidArgument("content must not be empty")
	}
	if opts.OwnerID == "" {
		return nil, errs.InvalidArgument("owner id must not be empty")
	}

	vector, err := ing.embedder.Embed(ctx, content)
	if err != nil {
		return nil, errs.EmbeddingUnavailable("document embedding failed", err)
	}
	return ing.insert(ctx, content, vector, opts)
}

// insert stores one record with initial heat state. The store's unique
// (owner_id, content_hash) constraint is the dedup guard; an identical
// insert returns the existing record.
func (ing *Ingestor) insert(ctx context.Context, content string, vector []float32, opts AddOptions) (*IngestResult, error) {
	heat := ing.cfg.InitialHeat
	if opts.Pin {
		heat = ing.cfg.MaxHeat
	}

	create := &store.MemoryRecord{
		ID:          uuid.NewString(),
		OwnerID:     opts.OwnerID,
		Content:     content,
		ContentHash: store.HashContent(opts.OwnerID, content),
		Embedding:   vector,
		Source:      opts.Source,
		ContentType: opts.ContentType,
		Tags:        opts.Tags,
		Heat:        &heat,
		Importance:  1.0,
		Pinned:      opts.Pin,
		CreatedTs:   time.Now().Unix(),
	}

	stored, err := ing.store.CreateMemoryRecord(ctx, create)
	if err != nil {
		return nil, errs.StoreUnavailable("record insert failed", err)
	}

	deduplicated := stored.ID != create.ID
	if deduplicated {
		slog.Debug("duplicate content skipped",
			"owner_id", opts.OwnerID,
			"existing_id", stored.ID)
	}
	return &IngestResult{Record: stored, Deduplicated: deduplicated}, nil
}
