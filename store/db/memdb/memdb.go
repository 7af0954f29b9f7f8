// Package memdb provides an in-memory store driver. It keeps unit tests and
// demos dependency-free; production deployments use PostgreSQL with pgvector.
package memdb

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/store"
)

type DB struct {
	mu      sync.RWMutex
	records map[string]*store.MemoryRecord // keyed by ID
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) *DB {
	return &DB{
		records: make(map[string]*store.MemoryRecord),
		profile: profile,
	}
}

func (*DB) GetDB() *sql.DB { return nil }

func (*DB) Close() error { return nil }

func (*DB) IsInitialized(context.Context) (bool, error) { return true, nil }

func (*DB) Migrate(context.Context) error { return nil }

func (d *DB) CreateMemoryRecord(_ context.Context, create *store.MemoryRecord) (*store.MemoryRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.records {
		if existing.OwnerID == create.OwnerID && existing.ContentHash == create.ContentHash {
			return clone(existing), nil
		}
	}
	d.records[create.ID] = clone(create)
	return create, nil
}

func (d *DB) ListMemoryRecords(_ context.Context, find *store.FindMemoryRecord) ([]*store.MemoryRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nowTs := time.Now().Unix()
	list := []*store.MemoryRecord{}
	for _, record := range d.records {
		if !matches(record, find, nowTs) {
			continue
		}
		list = append(list, clone(record))
	}

	switch find.OrderByHeat {
	case store.HeatOrderDesc:
		sort.Slice(list, func(i, j int) bool {
			hi, hj := store.EffectiveHeat(list[i], nowTs), store.EffectiveHeat(list[j], nowTs)
			if hi != hj {
				return hi > hj
			}
			return list[i].LastAccessedTs > list[j].LastAccessedTs
		})
	case store.HeatOrderAsc:
		sort.Slice(list, func(i, j int) bool {
			hi, hj := store.EffectiveHeat(list[i], nowTs), store.EffectiveHeat(list[j], nowTs)
			if hi != hj {
				return hi < hj
			}
			return list[i].LastAccessedTs < list[j].LastAccessedTs
		})
	default:
		sort.Slice(list, func(i, j int) bool {
			return list[i].CreatedTs > list[j].CreatedTs
		})
	}

	if find.Offset > 0 {
		if find.Offset >= len(list) {
			return []*store.MemoryRecord{}, nil
		}
		list = list[find.Offset:]
	}
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *DB) UpdateMemoryRecord(_ context.Context, update *store.UpdateMemoryRecord) (*store.MemoryRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	record, ok := d.records[update.ID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	if update.Heat != nil {
		heat := *update.Heat
		record.Heat = &heat
	}
	if update.Importance != nil {
		record.Importance = *update.Importance
	}
	if update.Pinned != nil {
		record.Pinned = *update.Pinned
	}
	if update.AccessCount != nil {
		record.AccessCount = *update.AccessCount
	}
	if update.LastAccessedTs != nil {
		record.LastAccessedTs = *update.LastAccessedTs
	}
	return clone(record), nil
}

func (d *DB) VectorSearch(_ context.Context, opts *store.VectorSearchOptions) ([]*store.RecordWithScore, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	results := []*store.RecordWithScore{}
	for _, record := range d.records {
		if record.OwnerID != opts.OwnerID || len(record.Embedding) == 0 {
			continue
		}
		results = append(results, &store.RecordWithScore{
			Record: clone(record),
			Score:  store.CosineSimilarity(opts.Vector, record.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d *DB) ApplyDecay(_ context.Context, opts *store.DecayOptions) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var touched int64
	for _, record := range d.records {
		if record.Pinned || record.Heat == nil {
			continue
		}
		decayed := *record.Heat * opts.Rate
		if decayed < opts.MinHeat {
			decayed = opts.MinHeat
		}
		record.Heat = &decayed
		touched++
	}
	return touched, nil
}

func (d *DB) GetHeatStats(_ context.Context, opts *store.HeatStatsOptions) (*store.HeatStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nowTs := time.Now().Unix()
	stats := &store.HeatStats{}
	for _, record := range d.records {
		if opts.OwnerID != nil && record.OwnerID != *opts.OwnerID {
			continue
		}
		stats.Total++
		heat := store.EffectiveHeat(record, nowTs)
		if heat >= opts.HotThreshold {
			stats.Hot++
		}
		if heat < opts.ColdThreshold {
			stats.Cold++
		}
		if record.Pinned {
			stats.Pinned++
		}
	}
	return stats, nil
}

func matches(record *store.MemoryRecord, find *store.FindMemoryRecord, nowTs int64) bool {
	if find.ID != nil && record.ID != *find.ID {
		return false
	}
	if find.OwnerID != nil && record.OwnerID != *find.OwnerID {
		return false
	}
	if find.ContentHash != nil && record.ContentHash != *find.ContentHash {
		return false
	}
	if find.Pinned != nil && record.Pinned != *find.Pinned {
		return false
	}
	if find.HeatBelow != nil && store.EffectiveHeat(record, nowTs) >= *find.HeatBelow {
		return false
	}
	if find.Entity != nil && !containsEntity(record, *find.Entity) {
		return false
	}
	return true
}

func containsEntity(record *store.MemoryRecord, entity string) bool {
	needle := strings.ToLower(entity)
	if strings.Contains(strings.ToLower(record.Content), needle) {
		return true
	}
	for _, tag := range record.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func clone(record *store.MemoryRecord) *store.MemoryRecord {
	copied := *record
	if record.Heat != nil {
		heat := *record.Heat
		copied.Heat = &heat
	}
	copied.Embedding = append([]float32(nil), record.Embedding...)
	copied.Tags = append([]string(nil), record.Tags...)
	return &copied
}
