package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MemoryRecord is the sole persisted entity: a distilled fact or verbatim
// document together with its embedding and heat state.
type MemoryRecord struct {
	ID          string
	OwnerID     string
	Content     string
	ContentHash string
	Embedding   []float32
	Source      string
	ContentType string
	Tags        []string

	// Heat is nil for legacy rows that predate heat tracking. Use
	// EffectiveHeat to read it; the computed fallback is never persisted
	// until a real heat mutation touches the row.
	Heat        *float64
	Importance  float64
	Pinned      bool
	AccessCount int32

	// LastAccessedTs is 0 when the record has never been retrieved.
	LastAccessedTs int64
	CreatedTs      int64
}

// FindMemoryRecord is the find condition for memory records.
type FindMemoryRecord struct {
	ID          *string
	OwnerID     *string
	ContentHash *string

	// Entity filters to records whose content or tags contain the given
	// string (case-insensitive containment, not semantic).
	Entity *string

	Pinned *bool

	// HeatBelow filters to records with effective heat strictly below the
	// given value.
	HeatBelow *float64

	OrderByHeat HeatOrder
	Limit       int
	Offset      int
}

// HeatOrder controls result ordering for heat-based listings.
type HeatOrder int

const (
	HeatOrderNone HeatOrder = iota
	// HeatOrderDesc orders hottest first, ties broken by most recent access.
	HeatOrderDesc
	// HeatOrderAsc orders coldest first.
	HeatOrderAsc
)

// UpdateMemoryRecord is the update condition for a memory record. Nil fields
// are left unchanged.
type UpdateMemoryRecord struct {
	ID             string
	Heat           *float64
	Importance     *float64
	Pinned         *bool
	AccessCount    *int32
	LastAccessedTs *int64
}

// VectorSearchOptions represents the options for vector similarity search.
type VectorSearchOptions struct {
	OwnerID string
	Vector  []float32
	// Limit is the number of raw candidates to return. Defaults to 10.
	Limit int
}

// RecordWithScore is a vector search result with its cosine similarity.
type RecordWithScore struct {
	Record *MemoryRecord
	// Score is 1 - cosine_distance, in [0, 1] for well-formed vectors.
	Score float64
}

// DecayOptions parameterises a batch decay sweep.
type DecayOptions struct {
	Rate    float64
	MinHeat float64
}

// HeatStatsOptions selects the population for aggregate heat counts.
type HeatStatsOptions struct {
	OwnerID       *string
	HotThreshold  float64
	ColdThreshold float64
}

// HeatStats holds aggregate counts over the heat distribution.
type HeatStats struct {
	Total  int64
	Hot    int64
	Cold   int64
	Pinned int64
}

// HashContent returns the deduplication fingerprint for content within an
// owner scope.
func HashContent(ownerID, content string) string {
	sum := sha256.Sum256([]byte(ownerID + "\n" + content))
	return hex.EncodeToString(sum[:])
}

// FallbackHeat returns the synthetic heat for a record missing an explicit
// value, as a monotone step function of age (newer means hotter).
func FallbackHeat(createdTs, nowTs int64) float64 {
	age := time.Duration(nowTs-createdTs) * time.Second
	switch {
	case age <= 6*time.Hour:
		return 1.0
	case age <= 24*time.Hour:
		return 0.85
	case age <= 48*time.Hour:
		return 0.7
	case age <= 7*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// EffectiveHeat returns the record's heat, substituting the age-based
// fallback when the row carries no explicit value.
func EffectiveHeat(record *MemoryRecord, nowTs int64) float64 {
	if record.Heat != nil {
		return *record.Heat
	}
	return FallbackHeat(record.CreatedTs, nowTs)
}
