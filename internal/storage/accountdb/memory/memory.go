// Package memory provides an in-memory store used for development and tests.
// It keeps code paths easy to follow while the SQL and key-value backends
// carry production traffic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// txnKey tracks transaction ordering: sorted asc by (CreatedDate, ID).
type txnKey struct {
	CreatedDate time.Time
	ID          string
}

// Store is an in-memory implementation of accountdb.Store guarded by an
// RWMutex for concurrent reads and writes.
type Store struct {
	mu     sync.RWMutex
	closed bool

	accountsByID        map[string]ledger.Account
	accountIDByUsername map[string]string
	accountIDByWallet   map[string]string

	depositsByID map[string]ledger.Deposit

	transactionsByID map[string]ledger.Transaction
	// Global index of transactions kept sorted asc by (CreatedDate, ID).
	txnOrder []txnKey
}

var _ accountdb.Store = (*Store)(nil)

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accountsByID:        make(map[string]ledger.Account),
		accountIDByUsername: make(map[string]string),
		accountIDByWallet:   make(map[string]string),
		depositsByID:        make(map[string]ledger.Deposit),
		transactionsByID:    make(map[string]ledger.Transaction),
	}
}

func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Accounts() accountdb.AccountRepository         { return &accountRepo{s: s} }
func (s *Store) Deposits() accountdb.DepositRepository         { return &depositRepo{s: s} }
func (s *Store) Transactions() accountdb.TransactionRepository { return &transactionRepo{s: s} }
func (s *Store) System() accountdb.SystemRepository            { return &systemRepo{s: s} }

// Reset drops all records. Test helper.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountsByID = make(map[string]ledger.Account)
	s.accountIDByUsername = make(map[string]string)
	s.accountIDByWallet = make(map[string]string)
	s.depositsByID = make(map[string]ledger.Deposit)
	s.transactionsByID = make(map[string]ledger.Transaction)
	s.txnOrder = nil
}

// now returns the store clock reading: UTC truncated to microseconds so that
// timestamps round-trip identically through every backend.
func (s *Store) now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type accountRepo struct {
	s *Store
}

func (r *accountRepo) Insert(ctx context.Context, account *ledger.Account) error {
	if account == nil || account.ID == "" {
		return accountdb.NewDataError("insert_account", "account id is required", nil)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.accountsByID[account.ID]; exists {
		return accountdb.NewUniqueViolationError("insert_account", "account id already exists: "+account.ID, nil)
	}
	if _, exists := r.s.accountIDByUsername[account.Username]; exists {
		return accountdb.NewUniqueViolationError("insert_account", "username already exists: "+account.Username, nil)
	}
	if account.DepositWalletAddress != "" {
		if _, exists := r.s.accountIDByWallet[account.DepositWalletAddress]; exists {
			return accountdb.NewUniqueViolationError("insert_account",
				"deposit wallet address already exists: "+account.DepositWalletAddress, nil)
		}
	}

	if account.CreatedDate.IsZero() {
		account.CreatedDate = r.s.now()
	}

	r.s.accountsByID[account.ID] = *account
	r.s.accountIDByUsername[account.Username] = account.ID
	if account.DepositWalletAddress != "" {
		r.s.accountIDByWallet[account.DepositWalletAddress] = account.ID
	}
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	account, ok := r.s.accountsByID[id]
	if !ok {
		return nil, accountdb.NewNotFoundError("get_account", "account", id)
	}
	return &account, nil
}

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.accountIDByUsername[username]
	if !ok {
		return nil, accountdb.NewNotFoundError("get_account_by_username", "account", username)
	}
	account := r.s.accountsByID[id]
	return &account, nil
}

func (r *accountRepo) GetByDepositWalletAddress(ctx context.Context, address string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.accountIDByWallet[address]
	if !ok {
		return nil, accountdb.NewNotFoundError("get_account_by_wallet", "account", address)
	}
	account := r.s.accountsByID[id]
	return &account, nil
}

func (r *accountRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accountsByID[id]
	if !ok {
		return accountdb.NewNotFoundError("set_account_active", "account", id)
	}
	account.Active = active
	r.s.accountsByID[id] = account
	return nil
}

type depositRepo struct {
	s *Store
}

func (r *depositRepo) Insert(ctx context.Context, deposit *ledger.Deposit) error {
	if deposit == nil || deposit.ID == "" {
		return accountdb.NewDataError("insert_deposit", "deposit id is required", nil)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.depositsByID[deposit.ID]; exists {
		return accountdb.NewUniqueViolationError("insert_deposit", "deposit id already exists: "+deposit.ID, nil)
	}

	if deposit.CreatedDate.IsZero() {
		deposit.CreatedDate = r.s.now()
	}

	r.s.depositsByID[deposit.ID] = *deposit
	return nil
}

func (r *depositRepo) GetByID(ctx context.Context, id string) (*ledger.Deposit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	deposit, ok := r.s.depositsByID[id]
	if !ok {
		return nil, accountdb.NewNotFoundError("get_deposit", "deposit", id)
	}
	return &deposit, nil
}

type transactionRepo struct {
	s *Store
}

func (r *transactionRepo) Insert(ctx context.Context, txn *ledger.Transaction) error {
	if txn == nil || txn.ID == "" {
		return accountdb.NewDataError("insert_transaction", "transaction id is required", nil)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.transactionsByID[txn.ID]; exists {
		return accountdb.NewUniqueViolationError("insert_transaction", "transaction id already exists: "+txn.ID, nil)
	}

	if txn.CreatedDate.IsZero() {
		txn.CreatedDate = r.s.now()
	}
	// The shard key is derived here so no caller can write a stale or
	// foreign key.
	txn.SettlementShardKey = sharding.Key(txn.AccountID)

	r.s.transactionsByID[txn.ID] = *txn
	r.s.insertTxnIndexLocked(txnKey{CreatedDate: txn.CreatedDate, ID: txn.ID})
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	txn, ok := r.s.transactionsByID[id]
	if !ok {
		return nil, accountdb.NewNotFoundError("get_transaction", "transaction", id)
	}
	return &txn, nil
}

func (r *transactionRepo) ListByAccount(ctx context.Context, accountID string) ([]*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*ledger.Transaction, 0)
	for _, k := range r.s.txnOrder {
		txn := r.s.transactionsByID[k.ID]
		if txn.AccountID == accountID {
			t := txn
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r *transactionRepo) ListByShardKeyRange(ctx context.Context, start, end string) ([]*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*ledger.Transaction, 0)
	for _, k := range r.s.txnOrder {
		txn := r.s.transactionsByID[k.ID]
		if txn.SettlementShardKey == "" {
			continue
		}
		if txn.SettlementShardKey >= start && txn.SettlementShardKey < end {
			t := txn
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r *transactionRepo) UpdateSettlement(ctx context.Context, id string, patch accountdb.SettlementPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	txn, ok := r.s.transactionsByID[id]
	if !ok {
		return accountdb.NewNotFoundError("update_settlement", "transaction", id)
	}

	txn.Balance = patch.Balance
	txn.Canceled = patch.Canceled
	txn.Settled = true
	txn.SettledDate = r.s.now()
	r.s.transactionsByID[id] = txn
	return nil
}

func (r *transactionRepo) ClearShardKey(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	txn, ok := r.s.transactionsByID[id]
	if !ok {
		return accountdb.NewNotFoundError("clear_shard_key", "transaction", id)
	}

	txn.SettlementShardKey = ""
	r.s.transactionsByID[id] = txn
	return nil
}

func (r *transactionRepo) SettleOne(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	txn, ok := r.s.transactionsByID[id]
	if !ok {
		return accountdb.NewNotFoundError("settle_one", "transaction", id)
	}

	txn.Settled = true
	txn.SettledDate = r.s.now()
	r.s.transactionsByID[id] = txn
	return nil
}

// insertTxnIndexLocked inserts k into the sorted index, keeping order asc by
// (CreatedDate, ID). Caller must hold s.mu for writing.
func (s *Store) insertTxnIndexLocked(k txnKey) {
	i := sort.Search(len(s.txnOrder), func(i int) bool {
		if s.txnOrder[i].CreatedDate.After(k.CreatedDate) {
			return true
		}
		if s.txnOrder[i].CreatedDate.Equal(k.CreatedDate) {
			return s.txnOrder[i].ID > k.ID
		}
		return false
	})

	if i == len(s.txnOrder) {
		s.txnOrder = append(s.txnOrder, k)
		return
	}
	s.txnOrder = append(s.txnOrder, txnKey{})
	copy(s.txnOrder[i+1:], s.txnOrder[i:])
	s.txnOrder[i] = k
}

type systemRepo struct {
	s *Store
}

func (r *systemRepo) Ping(ctx context.Context) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return accountdb.NewConnectionError("ping", "store is closed", nil).WithCode(accountdb.CodeStoreClosed)
	}
	return nil
}

func (r *systemRepo) Now(ctx context.Context) (time.Time, error) {
	return r.s.now(), nil
}
