package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hearthmem/hearth/server/ai"
	errs "github.com/hearthmem/hearth/server/internal/errors"
	"github.com/hearthmem/hearth/store"
)

// contextQueryLimit is the default result count for GetContextForQuery.
const contextQueryLimit = 5

// Searcher executes similarity search and re-ranks candidates by effective
// score: similarity x heat x importance.
type Searcher struct {
	store    *store.Store
	embedder ai.Embedder
	heat     *HeatService
	// oversample multiplies the requested limit for the raw candidate
	// fetch, so a hot record with moderate similarity is not cut off by the
	// store's similarity-only top-K.
	oversample int
}

// NewSearcher creates a retrieval service. oversample defaults to 3 when
// non-positive.
func NewSearcher(st *store.Store, embedder ai.Embedder, heat *HeatService, oversample int) *Searcher {
	if oversample <= 0 {
		oversample = 3
	}
	return &Searcher{
		store:      st,
		embedder:   embedder,
		heat:       heat,
		oversample: oversample,
	}
}

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	Record         *store.MemoryRecord
	Similarity     float64
	EffectiveScore float64
}

// Search embeds the query, fetches oversample x limit candidates scoped to
// the owner, re-ranks by effective score and returns the top limit results.
// Retrieval is not a passive read: every returned record receives an access
// boost before the results go back to the caller.
func (s *Searcher) Search(ctx context.Context, ownerID, query string, limit int) ([]*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.InvalidArgument("query must not be empty")
	}
	if limit <= 0 {
		return nil, errs.InvalidArgument("limit must be positive")
	}
	if ownerID == "" {
		return nil, errs.InvalidArgument("owner id must not be empty")
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.EmbeddingUnavailable("query embedding failed", err)
	}

	candidates, err := s.store.VectorSearch(ctx, &store.VectorSearchOptions{
		OwnerID: ownerID,
		Vector:  queryVector,
		Limit:   limit * s.oversample,
	})
	if err != nil {
		return nil, errs.StoreUnavailable("vector search failed", err)
	}

	nowTs := time.Now().Unix()
	results := make([]*SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		heat := store.EffectiveHeat(candidate.Record, nowTs)
		results = append(results, &SearchResult{
			Record:         candidate.Record,
			Similarity:     candidate.Score,
			EffectiveScore: candidate.Score * heat * candidate.Record.Importance,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].EffectiveScore > results[j].EffectiveScore
	})
	if len(results) > limit {
		results = results[:limit]
	}

	for _, result := range results {
		boosted, err := s.heat.BoostAccess(ctx, result.Record)
		if err != nil {
			// Retrieval already succeeded; a failed reinforcement is not
			// worth surfacing to the caller.
			slog.Warn("access boost failed", "record_id", result.Record.ID, "error", err)
			continue
		}
		result.Record = boosted
	}
	return results, nil
}

// GetContextForQuery runs a search with a moderate default limit and
// concatenates the returned contents into a single block, in rank order,
// suitable for prompt injection.
func (s *Searcher) GetContextForQuery(ctx context.Context, ownerID, query string) (string, error) {
	results, err := s.Search(ctx, ownerID, query, contextQueryLimit)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(results))
	for _, result := range results {
		parts = append(parts, result.Record.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
