package db

import (
	"github.com/pkg/errors"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/store"
	"github.com/hearthmem/hearth/store/db/memdb"
	"github.com/hearthmem/hearth/store/db/postgres"
	"github.com/hearthmem/hearth/store/db/sqlite"
)

// PostgreSQL is the production driver: native vector search via pgvector and
// a unique (owner_id, content_hash) constraint enforced by the database.
// SQLite is supported for development; similarity is computed in-process.
// The memory driver backs tests and demos.

// NewDBDriver creates a new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "memory":
		driver = memdb.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres', 'sqlite' and 'memory' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
