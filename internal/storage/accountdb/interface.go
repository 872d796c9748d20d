// Package accountdb defines the persistence contract of the account core:
// typed repositories over the accounts, deposits, and transactions tables,
// the structured store error model, and a lifecycle manager shared by all
// backends (SQL, embedded key-value, in-memory).
package accountdb

import (
	"context"
	"time"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
)

// SettlementPatch is the explicit field set written back by settlement for
// one transaction: the running balance after the fold step, and whether the
// row was canceled by the overdraft rule. The store additionally sets
// settled = true and stamps settledDate with the store clock.
type SettlementPatch struct {
	Balance  string
	Canceled bool
}

// AccountRepository provides access to account records. Insert enforces the
// uniqueness of Username and DepositWalletAddress and stamps CreatedDate
// with the store clock when unset.
type AccountRepository interface {
	Insert(ctx context.Context, account *ledger.Account) error

	GetByID(ctx context.Context, id string) (*ledger.Account, error)

	// GetByUsername performs the indexed lookup used by the signup
	// uniqueness probe and by login.
	GetByUsername(ctx context.Context, username string) (*ledger.Account, error)

	// GetByDepositWalletAddress performs the indexed lookup used by wallet
	// allocation and by deposit ingestion.
	GetByDepositWalletAddress(ctx context.Context, address string) (*ledger.Account, error)

	// SetActive flips the activation flag. Accounts are never deleted.
	SetActive(ctx context.Context, id string, active bool) error
}

// DepositRepository provides access to deposit records. Deposit.ID is the
// idempotency key: Insert must reject a duplicate id with a unique
// violation.
type DepositRepository interface {
	Insert(ctx context.Context, deposit *ledger.Deposit) error
	GetByID(ctx context.Context, id string) (*ledger.Deposit, error)
}

// TransactionRepository provides access to ledger transaction records.
//
// Every implementation upholds two contracts the settlement engine depends
// on:
//   - Insert stamps SettlementShardKey = sharding.Key(AccountID)
//     unconditionally, so no transaction can leak out of its shard range.
//   - List results are ordered by (CreatedDate ascending, ID ascending);
//     the id tiebreak keeps folds deterministic under equal timestamps.
type TransactionRepository interface {
	Insert(ctx context.Context, txn *ledger.Transaction) error

	GetByID(ctx context.Context, id string) (*ledger.Transaction, error)

	ListByAccount(ctx context.Context, accountID string) ([]*ledger.Transaction, error)

	// ListByShardKeyRange range-scans the settlementShardKey index over the
	// half-open interval [start, end). Rows whose key was cleared by the
	// prune phase are invisible to this scan.
	ListByShardKeyRange(ctx context.Context, start, end string) ([]*ledger.Transaction, error)

	// UpdateSettlement applies the settlement field set to one row: balance
	// and canceled from the patch, settled = true, settledDate = store now.
	UpdateSettlement(ctx context.Context, id string, patch SettlementPatch) error

	// ClearShardKey unsets the settlementShardKey field on one row. The row
	// itself is retained; this is a field-scoped delete, not a row delete.
	ClearShardKey(ctx context.Context, id string) error

	// SettleOne marks a single row settled without computing a balance. It
	// returns a not-found data error when no row was replaced.
	SettleOne(ctx context.Context, id string) error
}

// SystemRepository provides store-level operations that are not tied to a
// table.
type SystemRepository interface {
	Ping(ctx context.Context) error

	// Now returns the store clock used for CreatedDate and SettledDate
	// stamping. All repository writes use this same clock.
	Now(ctx context.Context) (time.Time, error)
}

// Store is the façade implemented by every backend.
type Store interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	Accounts() AccountRepository
	Deposits() DepositRepository
	Transactions() TransactionRepository
	System() SystemRepository
}
