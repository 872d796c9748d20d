package sqlstore

import (
	"context"
	"database/sql"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// AccountRepository implements accountdb.AccountRepository for SQL backends.
type AccountRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewAccountRepository creates a new SQL account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// NewAccountRepositoryWithTx creates a new SQL account repository within a transaction.
func NewAccountRepositoryWithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{tx: tx}
}

// getExecutor returns the appropriate executor (db or tx).
func (r *AccountRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const accountColumns = `id, username, password, password_salt, active, created_date,
		deposit_wallet_address, deposit_wallet_passphrase, deposit_wallet_private_key, deposit_wallet_public_key`

func (r *AccountRepository) Insert(ctx context.Context, account *ledger.Account) error {
	if account == nil || account.ID == "" {
		return accountdb.NewDataError("insert_account", "account id is required", nil)
	}

	if account.CreatedDate.IsZero() {
		account.CreatedDate = storeNow()
	}

	query := `INSERT INTO accounts (` + accountColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		account.ID, account.Username, account.Password, account.PasswordSalt,
		account.Active, timeToMicros(account.CreatedDate),
		account.DepositWalletAddress, account.DepositWalletPassphrase,
		account.DepositWalletPrivateKey, account.DepositWalletPublicKey)

	if err != nil {
		if isUniqueViolation(err) {
			return accountdb.NewUniqueViolationError("insert_account", "account violates a unique index", err)
		}
		return accountdb.NewQueryError("insert_account", "failed to insert account", err)
	}

	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "get_account", query, id)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.scanAccount(ctx, "get_account_by_username", query, username)
}

func (r *AccountRepository) GetByDepositWalletAddress(ctx context.Context, address string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE deposit_wallet_address = $1`
	return r.scanAccount(ctx, "get_account_by_wallet", query, address)
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.getExecutor().ExecContext(ctx,
		"UPDATE accounts SET active = $1 WHERE id = $2", active, id)
	if err != nil {
		return accountdb.NewQueryError("set_account_active", "failed to update account", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return accountdb.NewQueryError("set_account_active", "failed to read rows affected", err)
	}
	if affected == 0 {
		return accountdb.NewNotFoundError("set_account_active", "account", id)
	}

	return nil
}

func (r *AccountRepository) scanAccount(ctx context.Context, operation, query string, arg interface{}) (*ledger.Account, error) {
	var account ledger.Account
	var createdMicros int64

	err := r.getExecutor().QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Username, &account.Password, &account.PasswordSalt,
		&account.Active, &createdMicros,
		&account.DepositWalletAddress, &account.DepositWalletPassphrase,
		&account.DepositWalletPrivateKey, &account.DepositWalletPublicKey)

	if err == sql.ErrNoRows {
		return nil, accountdb.NewNotFoundError(operation, "account", toString(arg))
	}
	if err != nil {
		return nil, accountdb.NewQueryError(operation, "failed to query account", err)
	}

	account.CreatedDate = microsToTime(createdMicros)
	return &account, nil
}

func toString(arg interface{}) string {
	if s, ok := arg.(string); ok {
		return s
	}
	return ""
}
