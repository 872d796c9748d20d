package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// SystemRepository implements accountdb.SystemRepository for SQL backends.
type SystemRepository struct {
	db *sql.DB
}

// NewSystemRepository creates a new SQL system repository.
func NewSystemRepository(db *sql.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

func (r *SystemRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return accountdb.NewConnectionError("ping", "store is closed", nil).
			WithCode(accountdb.CodeStoreClosed)
	}

	if err := r.db.PingContext(ctx); err != nil {
		return accountdb.NewConnectionError("ping", "database ping failed", err)
	}

	return nil
}

// Now returns the store clock. Both supported drivers run embedded or
// co-located with the daemon, so the adapter clock and the database clock
// are the same host clock; reading it here keeps every timestamp stamped
// through one code path.
func (r *SystemRepository) Now(ctx context.Context) (time.Time, error) {
	if r.db == nil {
		return time.Time{}, accountdb.NewConnectionError("now", "store is closed", nil).
			WithCode(accountdb.CodeStoreClosed)
	}

	return storeNow(), nil
}
