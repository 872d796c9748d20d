package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// TransactionRepository implements accountdb.TransactionRepository for SQL
// backends. Inserts derive the settlement shard key from the account id so a
// row can never leak out of its shard's range scan; list queries order by
// (created_date, id) to keep settlement folds deterministic.
type TransactionRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewTransactionRepository creates a new SQL transaction repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// NewTransactionRepositoryWithTx creates a new SQL transaction repository within a transaction.
func NewTransactionRepositoryWithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{tx: tx}
}

// getExecutor returns the appropriate executor (db or tx).
func (r *TransactionRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const transactionColumns = `id, account_id, type, amount, created_date,
		settled, settled_date, balance, canceled, settlement_shard_key`

func (r *TransactionRepository) Insert(ctx context.Context, txn *ledger.Transaction) error {
	if txn == nil || txn.ID == "" {
		return accountdb.NewDataError("insert_transaction", "transaction id is required", nil)
	}

	if txn.CreatedDate.IsZero() {
		txn.CreatedDate = storeNow()
	}
	// The shard key is derived here so no caller can write a stale or
	// foreign key.
	txn.SettlementShardKey = sharding.Key(txn.AccountID)

	query := `INSERT INTO transactions (` + transactionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		txn.ID, txn.AccountID, string(txn.Type), txn.Amount,
		timeToMicros(txn.CreatedDate), txn.Settled, nullMicros(txn.SettledDate),
		nullString(txn.Balance), txn.Canceled, txn.SettlementShardKey)

	if err != nil {
		if isUniqueViolation(err) {
			return accountdb.NewUniqueViolationError("insert_transaction", "transaction id already exists: "+txn.ID, err)
		}
		return accountdb.NewQueryError("insert_transaction", "failed to insert transaction", err)
	}

	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	row := r.getExecutor().QueryRowContext(ctx, query, id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, accountdb.NewNotFoundError("get_transaction", "transaction", id)
	}
	if err != nil {
		return nil, accountdb.NewQueryError("get_transaction", "failed to query transaction", err)
	}

	return txn, nil
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
			  FROM transactions
			  WHERE account_id = $1
			  ORDER BY created_date ASC, id ASC`

	rows, err := r.getExecutor().QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, accountdb.NewQueryError("list_transactions_by_account", "failed to query transactions", err)
	}
	defer rows.Close()

	return collectTransactions(rows, "list_transactions_by_account")
}

func (r *TransactionRepository) ListByShardKeyRange(ctx context.Context, start, end string) ([]*ledger.Transaction, error) {
	// Half-open [start, end). Pruned rows have a NULL key and never match.
	query := `SELECT ` + transactionColumns + `
			  FROM transactions
			  WHERE settlement_shard_key >= $1 AND settlement_shard_key < $2
			  ORDER BY created_date ASC, id ASC`

	rows, err := r.getExecutor().QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, accountdb.NewQueryError("list_transactions_by_shard_range", "failed to scan shard range", err)
	}
	defer rows.Close()

	return collectTransactions(rows, "list_transactions_by_shard_range")
}

func (r *TransactionRepository) UpdateSettlement(ctx context.Context, id string, patch accountdb.SettlementPatch) error {
	query := `UPDATE transactions
			  SET balance = $1, canceled = $2, settled = $3, settled_date = $4
			  WHERE id = $5`

	result, err := r.getExecutor().ExecContext(ctx, query,
		patch.Balance, patch.Canceled, true, timeToMicros(storeNow()), id)
	if err != nil {
		return accountdb.NewQueryError("update_settlement", "failed to update transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return accountdb.NewQueryError("update_settlement", "failed to read rows affected", err)
	}
	if affected == 0 {
		return accountdb.NewNotFoundError("update_settlement", "transaction", id)
	}

	return nil
}

func (r *TransactionRepository) ClearShardKey(ctx context.Context, id string) error {
	result, err := r.getExecutor().ExecContext(ctx,
		"UPDATE transactions SET settlement_shard_key = NULL WHERE id = $1", id)
	if err != nil {
		return accountdb.NewQueryError("clear_shard_key", "failed to clear shard key", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return accountdb.NewQueryError("clear_shard_key", "failed to read rows affected", err)
	}
	if affected == 0 {
		return accountdb.NewNotFoundError("clear_shard_key", "transaction", id)
	}

	return nil
}

func (r *TransactionRepository) SettleOne(ctx context.Context, id string) error {
	result, err := r.getExecutor().ExecContext(ctx,
		"UPDATE transactions SET settled = $1, settled_date = $2 WHERE id = $3",
		true, timeToMicros(storeNow()), id)
	if err != nil {
		return accountdb.NewQueryError("settle_one", "failed to settle transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return accountdb.NewQueryError("settle_one", "failed to read rows affected", err)
	}
	if affected == 0 {
		return accountdb.NewNotFoundError("settle_one", "transaction", id)
	}

	return nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var txn ledger.Transaction
	var txnType string
	var createdMicros int64
	var settledMicros sql.NullInt64
	var balance, shardKey sql.NullString

	err := row.Scan(
		&txn.ID, &txn.AccountID, &txnType, &txn.Amount, &createdMicros,
		&txn.Settled, &settledMicros, &balance, &txn.Canceled, &shardKey)
	if err != nil {
		return nil, err
	}

	txn.Type = ledger.TransactionType(txnType)
	txn.CreatedDate = microsToTime(createdMicros)
	if settledMicros.Valid {
		txn.SettledDate = microsToTime(settledMicros.Int64)
	}
	if balance.Valid {
		txn.Balance = balance.String
	}
	if shardKey.Valid {
		txn.SettlementShardKey = shardKey.String
	}

	return &txn, nil
}

func collectTransactions(rows *sql.Rows, operation string) ([]*ledger.Transaction, error) {
	results := make([]*ledger.Transaction, 0)

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, accountdb.NewQueryError(operation, "failed to scan row", err)
		}
		results = append(results, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, accountdb.NewQueryError(operation, "error iterating rows", err)
	}

	return results, nil
}

func nullMicros(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return timeToMicros(t)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
