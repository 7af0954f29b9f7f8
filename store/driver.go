package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// CreateMemoryRecord inserts a record. When a record with the same
	// (owner_id, content_hash) already exists the existing row is returned
	// unchanged; callers detect deduplication by comparing IDs.
	CreateMemoryRecord(ctx context.Context, create *MemoryRecord) (*MemoryRecord, error)
	ListMemoryRecords(ctx context.Context, find *FindMemoryRecord) ([]*MemoryRecord, error)

	// UpdateMemoryRecord applies the non-nil fields and returns the updated
	// row, or a not-found error when the id is unknown.
	UpdateMemoryRecord(ctx context.Context, update *UpdateMemoryRecord) (*MemoryRecord, error)

	// VectorSearch performs similarity search scoped to one owner.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*RecordWithScore, error)

	// ApplyDecay multiplies the heat of every non-pinned record by the decay
	// rate, clamped at the floor. Rows with no explicit heat are left alone.
	// Returns the number of rows touched.
	ApplyDecay(ctx context.Context, opts *DecayOptions) (int64, error)

	GetHeatStats(ctx context.Context, opts *HeatStatsOptions) (*HeatStats, error)
}

// ErrRecordNotFound is returned by drivers when an update or lookup names an
// unknown record id.
var ErrRecordNotFound = errors.New("memory record not found")
