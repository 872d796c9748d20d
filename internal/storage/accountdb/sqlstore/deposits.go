package sqlstore

import (
	"context"
	"database/sql"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// DepositRepository implements accountdb.DepositRepository for SQL backends.
// The primary key on deposits.id carries the ingestion idempotency guarantee:
// replaying an observed blockchain transaction collides here instead of
// crediting twice.
type DepositRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewDepositRepository creates a new SQL deposit repository.
func NewDepositRepository(db *sql.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// NewDepositRepositoryWithTx creates a new SQL deposit repository within a transaction.
func NewDepositRepositoryWithTx(tx *sql.Tx) *DepositRepository {
	return &DepositRepository{tx: tx}
}

// getExecutor returns the appropriate executor (db or tx).
func (r *DepositRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *DepositRepository) Insert(ctx context.Context, deposit *ledger.Deposit) error {
	if deposit == nil || deposit.ID == "" {
		return accountdb.NewDataError("insert_deposit", "deposit id is required", nil)
	}

	if deposit.CreatedDate.IsZero() {
		deposit.CreatedDate = storeNow()
	}

	query := `INSERT INTO deposits (id, account_id, transaction_id, height, created_date)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		deposit.ID, deposit.AccountID, deposit.TransactionID,
		int64(deposit.Height), timeToMicros(deposit.CreatedDate))

	if err != nil {
		if isUniqueViolation(err) {
			return accountdb.NewUniqueViolationError("insert_deposit", "deposit id already exists: "+deposit.ID, err)
		}
		return accountdb.NewQueryError("insert_deposit", "failed to insert deposit", err)
	}

	return nil
}

func (r *DepositRepository) GetByID(ctx context.Context, id string) (*ledger.Deposit, error) {
	query := `SELECT id, account_id, transaction_id, height, created_date
			  FROM deposits WHERE id = $1`

	var deposit ledger.Deposit
	var height, createdMicros int64

	err := r.getExecutor().QueryRowContext(ctx, query, id).Scan(
		&deposit.ID, &deposit.AccountID, &deposit.TransactionID, &height, &createdMicros)

	if err == sql.ErrNoRows {
		return nil, accountdb.NewNotFoundError("get_deposit", "deposit", id)
	}
	if err != nil {
		return nil, accountdb.NewQueryError("get_deposit", "failed to query deposit", err)
	}

	deposit.Height = uint64(height)
	deposit.CreatedDate = microsToTime(createdMicros)
	return &deposit, nil
}
