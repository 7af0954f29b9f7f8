// Package memory implements the heat-decay memory engine: ingestion,
// heat bookkeeping and heat-weighted retrieval over the record store.
package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hearthmem/hearth/internal/profile"
	errs "github.com/hearthmem/hearth/server/internal/errors"
	"github.com/hearthmem/hearth/store"
)

// Stats bucket thresholds. Hot means at or above the configured initial
// heat; cold matches the oldest legacy fallback step.
const (
	defaultColdThreshold = 0.3
)

// HeatService owns the decay/boost/pin state machine over persisted heat.
// All state lives per-row in the store; the service itself is stateless.
type HeatService struct {
	store *store.Store
	cfg   profile.HeatConfig
}

// NewHeatService creates a heat service with the given constants.
func NewHeatService(st *store.Store, cfg profile.HeatConfig) *HeatService {
	return &HeatService{store: st, cfg: cfg}
}

// Config returns the heat constants in effect.
func (s *HeatService) Config() profile.HeatConfig {
	return s.cfg
}

// ApplyDecay multiplies every non-pinned record's heat by the decay rate,
// clamped at the floor. Returns the number of rows touched. The floor is
// absorbing: decaying a record already at min_heat leaves it unchanged.
func (s *HeatService) ApplyDecay(ctx context.Context) (int64, error) {
	touched, err := s.store.ApplyDecay(ctx, &store.DecayOptions{
		Rate:    s.cfg.DecayRate,
		MinHeat: s.cfg.MinHeat,
	})
	if err != nil {
		return 0, errs.StoreUnavailable("decay sweep failed", err)
	}
	return touched, nil
}

// BoostAccess raises a record's heat by the access boost (capped at
// max_heat), increments its access count and stamps last_accessed.
// A record with no explicit heat is boosted from its age-based fallback,
// which persists the heat for the first time.
func (s *HeatService) BoostAccess(ctx context.Context, record *store.MemoryRecord) (*store.MemoryRecord, error) {
	now := time.Now().Unix()
	heat := s.clamp(store.EffectiveHeat(record, now) + s.cfg.AccessBoost)
	accessCount := record.AccessCount + 1

	updated, err := s.store.UpdateMemoryRecord(ctx, &store.UpdateMemoryRecord{
		ID:             record.ID,
		Heat:           &heat,
		AccessCount:    &accessCount,
		LastAccessedTs: &now,
	})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, errs.RecordNotFound(record.ID)
		}
		return nil, errs.StoreUnavailable("access boost failed", err)
	}
	return updated, nil
}

// BoostMention raises the heat of every record of the owner whose content or
// tags contain the named entity (plain containment, not semantic). Returns
// the number of boosted records.
func (s *HeatService) BoostMention(ctx context.Context, ownerID, entity string) (int, error) {
	if entity == "" {
		return 0, errs.InvalidArgument("entity must not be empty")
	}

	matched, err := s.store.ListMemoryRecords(ctx, &store.FindMemoryRecord{
		OwnerID: &ownerID,
		Entity:  &entity,
	})
	if err != nil {
		return 0, errs.StoreUnavailable("entity lookup failed", err)
	}

	now := time.Now().Unix()
	boosted := 0
	for _, record := range matched {
		heat := s.clamp(store.EffectiveHeat(record, now) + s.cfg.MentionBoost)
		if _, err := s.store.UpdateMemoryRecord(ctx, &store.UpdateMemoryRecord{
			ID:   record.ID,
			Heat: &heat,
		}); err != nil {
			slog.Warn("mention boost skipped record", "record_id", record.ID, "error", err)
			continue
		}
		boosted++
	}
	return boosted, nil
}

// Pin exempts a record from decay and holds it at max_heat.
func (s *HeatService) Pin(ctx context.Context, id string) (*store.MemoryRecord, error) {
	pinned := true
	heat := s.cfg.MaxHeat
	updated, err := s.store.UpdateMemoryRecord(ctx, &store.UpdateMemoryRecord{
		ID:     id,
		Pinned: &pinned,
		Heat:   &heat,
	})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, errs.RecordNotFound(id)
		}
		return nil, errs.StoreUnavailable("pin failed", err)
	}
	return updated, nil
}

// Unpin releases a record back into normal decay. Heat is left at its
// current value and decays from there.
func (s *HeatService) Unpin(ctx context.Context, id string) (*store.MemoryRecord, error) {
	pinned := false
	updated, err := s.store.UpdateMemoryRecord(ctx, &store.UpdateMemoryRecord{
		ID:     id,
		Pinned: &pinned,
	})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, errs.RecordNotFound(id)
		}
		return nil, errs.StoreUnavailable("unpin failed", err)
	}
	return updated, nil
}

// GetHotMemories returns up to limit records ordered hottest first, ties
// broken by most recent access.
func (s *HeatService) GetHotMemories(ctx context.Context, ownerID string, limit int) ([]*store.MemoryRecord, error) {
	if limit <= 0 {
		return nil, errs.InvalidArgument("limit must be positive")
	}
	list, err := s.store.ListMemoryRecords(ctx, &store.FindMemoryRecord{
		OwnerID:     &ownerID,
		OrderByHeat: store.HeatOrderDesc,
		Limit:       limit,
	})
	if err != nil {
		return nil, errs.StoreUnavailable("hot query failed", err)
	}
	return list, nil
}

// GetColdMemories returns up to limit records with heat strictly below the
// threshold, coldest first.
func (s *HeatService) GetColdMemories(ctx context.Context, ownerID string, threshold float64, limit int) ([]*store.MemoryRecord, error) {
	if limit <= 0 {
		return nil, errs.InvalidArgument("limit must be positive")
	}
	if threshold <= 0 || threshold > s.cfg.MaxHeat {
		return nil, errs.InvalidArgument("threshold out of range")
	}
	list, err := s.store.ListMemoryRecords(ctx, &store.FindMemoryRecord{
		OwnerID:     &ownerID,
		HeatBelow:   &threshold,
		OrderByHeat: store.HeatOrderAsc,
		Limit:       limit,
	})
	if err != nil {
		return nil, errs.StoreUnavailable("cold query failed", err)
	}
	return list, nil
}

// GetHeatStats returns aggregate counts over the owner's heat distribution.
func (s *HeatService) GetHeatStats(ctx context.Context, ownerID string) (*store.HeatStats, error) {
	stats, err := s.store.GetHeatStats(ctx, &store.HeatStatsOptions{
		OwnerID:       &ownerID,
		HotThreshold:  s.cfg.InitialHeat,
		ColdThreshold: defaultColdThreshold,
	})
	if err != nil {
		return nil, errs.StoreUnavailable("heat stats failed", err)
	}
	return stats, nil
}

func (s *HeatService) clamp(heat float64) float64 {
	if heat > s.cfg.MaxHeat {
		return s.cfg.MaxHeat
	}
	if heat < s.cfg.MinHeat {
		return s.cfg.MinHeat
	}
	return heat
}
