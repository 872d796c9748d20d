// Package account exposes account-facing ledger operations: appending
// transactions through the canonical exec path and resolving account state
// for queries.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// Common errors
var (
	ErrNotFound               = errors.New("account not found")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
)

// Info is the queryable view of an account: the record plus its
// authoritative balance.
type Info struct {
	Account *ledger.Account `json:"account"`
	Balance string          `json:"balance"`
}

// Service implements account queries and the exec-transaction write path.
type Service struct {
	accounts     accountdb.AccountRepository
	transactions accountdb.TransactionRepository
}

// NewService creates an account service over the given store.
func NewService(store accountdb.Store) *Service {
	return &Service{
		accounts:     store.Accounts(),
		transactions: store.Transactions(),
	}
}

// Get returns the account record by id.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if accountdb.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account fetch failed: %w", err)
	}
	return account, nil
}

// GetInfo returns the account together with its balance: the balance of the
// newest settled, non-canceled transaction, or "0" when none has settled
// yet.
func (s *Service) GetInfo(ctx context.Context, id string) (*Info, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	txns, err := s.transactions.ListByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account transaction scan failed: %w", err)
	}

	balance := "0"
	for i := len(txns) - 1; i >= 0; i-- {
		if txns[i].Settled && !txns[i].Canceled {
			balance = txns[i].Balance
			break
		}
	}

	return &Info{Account: account, Balance: balance}, nil
}

// Transactions returns the account's ledger rows ordered by
// (createdDate, id) ascending.
func (s *Service) Transactions(ctx context.Context, accountID string) ([]*ledger.Transaction, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.transactions.ListByAccount(ctx, accountID)
}

// ExecTransaction appends a ledger transaction with a freshly minted id.
// This is the write path behind deposits and manual credit/debit/withdrawal
// appends.
func (s *Service) ExecTransaction(ctx context.Context, accountID string, typ ledger.TransactionType, amount string) (*ledger.Transaction, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ExecTransactionWithID(ctx, uuid.NewString(), accountID, typ, amount)
}

// ExecTransactionWithID appends a ledger transaction under a caller-chosen
// id. The deposit ingestor uses this to bind the row to the id recorded on
// the deposit. The amount is normalized to canonical decimal form; the row
// starts unsettled, and the store adapter stamps createdDate and the
// settlement shard key.
func (s *Service) ExecTransactionWithID(ctx context.Context, id, accountID string, typ ledger.TransactionType, amount string) (*ledger.Transaction, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransactionType, typ)
	}

	normalized, err := ledger.NormalizeAmount(amount)
	if err != nil {
		return nil, err
	}

	txn := &ledger.Transaction{
		ID:        id,
		AccountID: accountID,
		Type:      typ,
		Amount:    normalized,
		Settled:   false,
	}
	if err := s.transactions.Insert(ctx, txn); err != nil {
		return nil, fmt.Errorf("transaction insert failed: %w", err)
	}
	return txn, nil
}
