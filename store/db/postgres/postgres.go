package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Single logical store per deployment; a small pool is enough.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := pingWithRetry(db); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

// pingWithRetry retries transient connection failures with backoff before
// surfacing the error.
func pingWithRetry(db *sql.DB) error {
	var err error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_catalog = current_database() AND table_name = 'memory_record' AND table_type = 'BASE TABLE')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate creates the memory_record table and its indexes. The unique
// constraint on (owner_id, content_hash) is the enforcement mechanism for
// deduplication; the application-level check is an optimization only.
func (d *DB) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS memory_record (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding vector(%d),
			source TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			heat DOUBLE PRECISION,
			importance DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			pinned BOOLEAN NOT NULL DEFAULT FALSE,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_ts BIGINT NOT NULL DEFAULT 0,
			created_ts BIGINT NOT NULL,
			UNIQUE (owner_id, content_hash)
		);

		CREATE INDEX IF NOT EXISTS idx_memory_record_owner ON memory_record (owner_id);
		CREATE INDEX IF NOT EXISTS idx_memory_record_embedding ON memory_record
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`, d.profile.EmbeddingDim)

	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to migrate memory_record schema")
	}
	return nil
}

// placeholder returns a placeholder for PostgreSQL ($1, $2, ...).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n placeholders starting at $1.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}
