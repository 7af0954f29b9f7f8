package store

import (
	"context"

	"github.com/hearthmem/hearth/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate ensures the schema exists.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateMemoryRecord(ctx context.Context, create *MemoryRecord) (*MemoryRecord, error) {
	return s.driver.CreateMemoryRecord(ctx, create)
}

func (s *Store) ListMemoryRecords(ctx context.Context, find *FindMemoryRecord) ([]*MemoryRecord, error) {
	return s.driver.ListMemoryRecords(ctx, find)
}

// GetMemoryRecord returns the first record matching the find condition, or
// nil when nothing matches.
func (s *Store) GetMemoryRecord(ctx context.Context, find *FindMemoryRecord) (*MemoryRecord, error) {
	find.Limit = 1
	list, err := s.driver.ListMemoryRecords(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateMemoryRecord(ctx context.Context, update *UpdateMemoryRecord) (*MemoryRecord, error) {
	return s.driver.UpdateMemoryRecord(ctx, update)
}

func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*RecordWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}

func (s *Store) ApplyDecay(ctx context.Context, opts *DecayOptions) (int64, error) {
	return s.driver.ApplyDecay(ctx, opts)
}

func (s *Store) GetHeatStats(ctx context.Context, opts *HeatStatsOptions) (*HeatStats, error) {
	return s.driver.GetHeatStats(ctx, opts)
}
