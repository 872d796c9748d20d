package config

import (
	"fmt"

	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/kvstore"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/sqlstore"
)

// Database backends selectable via database.backend.
const (
	BackendSQL    = "sql"
	BackendKV     = "kv"
	BackendMemory = "memory"
)

// DatabaseConfig represents the [database] section.
// Backend picks the store implementation; only the matching sub-section
// is validated, the other may stay at its defaults.
type DatabaseConfig struct {
	Backend string          `toml:"backend" mapstructure:"backend"`
	SQL     sqlstore.Config `toml:"sql" mapstructure:"sql"`
	KV      kvstore.Config  `toml:"kv" mapstructure:"kv"`
}

// Validate performs validation on the database configuration.
func (d *DatabaseConfig) Validate() error {
	switch d.Backend {
	case BackendSQL:
		if err := d.SQL.Validate(); err != nil {
			return fmt.Errorf("sql: %w", err)
		}
	case BackendKV:
		if err := d.KV.Validate(); err != nil {
			return fmt.Errorf("kv: %w", err)
		}
	case BackendMemory:
		// Nothing to tune.
	default:
		return fmt.Errorf("%w: %s (valid options: sql, kv, memory)", accountdb.ErrInvalidBackend, d.Backend)
	}
	return nil
}
