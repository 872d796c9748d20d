package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// Store implements accountdb.Store on top of database/sql. Both the
// PostgreSQL and SQLite drivers run the same statements: parameters use the
// $N form in ascending order, which both drivers accept.
type Store struct {
	db     *sql.DB
	config *Config

	accountRepo     *AccountRepository
	depositRepo     *DepositRepository
	transactionRepo *TransactionRepository
	systemRepo      *SystemRepository
}

var _ accountdb.Store = (*Store)(nil)

// New creates a SQL store from a validated configuration.
func New(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, accountdb.NewConfigurationError("new_sql_store", "invalid configuration", err)
	}

	return &Store{config: config}, nil
}

func (s *Store) Open(ctx context.Context) error {
	connStr, err := s.config.BuildConnectionString()
	if err != nil {
		return accountdb.NewConfigurationError("open", "failed to build connection string", err)
	}

	sqlDB, err := sql.Open(s.config.Driver, connStr)
	if err != nil {
		return accountdb.NewConnectionError("open", "failed to open database connection", err)
	}

	sqlDB.SetMaxOpenConns(s.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(s.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(s.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(s.config.ConnMaxIdleTime)

	ctxTimeout, cancel := context.WithTimeout(ctx, s.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctxTimeout); err != nil {
		sqlDB.Close()
		return accountdb.NewConnectionError("open", "failed to ping database", err)
	}

	s.db = sqlDB

	if err := s.initSchema(ctx); err != nil {
		s.db.Close()
		s.db = nil
		return accountdb.NewSchemaError("open", "failed to initialize schema", err)
	}

	s.accountRepo = NewAccountRepository(s.db)
	s.depositRepo = NewDepositRepository(s.db)
	s.transactionRepo = NewTransactionRepository(s.db)
	s.systemRepo = NewSystemRepository(s.db)

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	s.accountRepo = nil
	s.depositRepo = nil
	s.transactionRepo = nil
	s.systemRepo = nil

	if err != nil {
		return accountdb.NewConnectionError("close", "failed to close database connection", err)
	}

	return nil
}

func (s *Store) Accounts() accountdb.AccountRepository {
	return s.accountRepo
}

func (s *Store) Deposits() accountdb.DepositRepository {
	return s.depositRepo
}

func (s *Store) Transactions() accountdb.TransactionRepository {
	return s.transactionRepo
}

func (s *Store) System() accountdb.SystemRepository {
	return s.systemRepo
}

// initSchema creates the tables and indexes. Timestamps are stored as BIGINT
// microseconds since the Unix epoch so that ordering and round-trips behave
// identically on both drivers.
func (s *Store) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) UNIQUE NOT NULL,
			password VARCHAR(128) NOT NULL,
			password_salt VARCHAR(128) NOT NULL,
			active BOOLEAN NOT NULL,
			created_date BIGINT NOT NULL,
			deposit_wallet_address VARCHAR(64) UNIQUE NOT NULL,
			deposit_wallet_passphrase TEXT NOT NULL,
			deposit_wallet_private_key TEXT NOT NULL,
			deposit_wallet_public_key TEXT NOT NULL
		)`,

		// One row per observed blockchain transaction; the primary key is
		// the blockchain transaction id, which makes ingestion replays
		// collide instead of double-crediting.
		`CREATE TABLE IF NOT EXISTS deposits (
			id VARCHAR(128) PRIMARY KEY,
			account_id VARCHAR(64) NOT NULL,
			transaction_id VARCHAR(64) NOT NULL,
			height BIGINT NOT NULL,
			created_date BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(64) PRIMARY KEY,
			account_id VARCHAR(64) NOT NULL,
			type VARCHAR(16) NOT NULL,
			amount VARCHAR(80) NOT NULL,
			created_date BIGINT NOT NULL,
			settled BOOLEAN NOT NULL,
			settled_date BIGINT,
			balance VARCHAR(80),
			canceled BOOLEAN NOT NULL,
			settlement_shard_key VARCHAR(16)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_shard_scan
			ON transactions(settlement_shard_key, created_date, id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_scan
			ON transactions(account_id, created_date, id)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_account
			ON deposits(account_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return accountdb.NewSchemaError("init_schema", "failed to execute schema query", err)
		}
	}

	return nil
}

// storeNow is the adapter clock: UTC truncated to microseconds, matching the
// precision of the stored BIGINT columns.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// timeToMicros converts a timestamp to its stored form.
func timeToMicros(t time.Time) int64 {
	return t.UnixMicro()
}

// microsToTime converts a stored timestamp back to UTC time.
func microsToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// isUniqueViolation recognizes unique constraint failures from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
