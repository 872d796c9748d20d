package kvstore

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// Key layout. Row keys hold the encoded record; index keys hold the row id.
// The timestamp component is UnixMicro as fixed-width big-endian hex, so
// lexicographic key order equals (createdDate, id) order within a prefix.
//
//	a/<accountID>                          account row
//	d/<depositID>                          deposit row
//	t/<transactionID>                      transaction row
//	ix/au/<username>                       account id by username
//	ix/aw/<walletAddress>                  account id by wallet address
//	ix/ta/<accountID>/<created>/<txID>     transaction ids per account
//	ix/ts/<shardKey>/<created>/<txID>      transaction ids per shard key
const (
	prefixAccount       = "a/"
	prefixDeposit       = "d/"
	prefixTransaction   = "t/"
	prefixIdxUsername   = "ix/au/"
	prefixIdxWallet     = "ix/aw/"
	prefixIdxAccountTxn = "ix/ta/"
	prefixIdxShardTxn   = "ix/ts/"
)

// Store is an accountdb.Store on an embedded key-value engine. A store-level
// mutex serializes writers: uniqueness probes and their index writes must not
// interleave, and the embedded engines live inside a single daemon process.
type Store struct {
	config *Config
	codec  *rowCodec

	mu     sync.RWMutex
	engine Engine
}

var _ accountdb.Store = (*Store)(nil)

// New creates a key-value store from a validated configuration.
func New(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, accountdb.NewConfigurationError("new_kv_store", "invalid configuration", err)
	}

	rc, err := newRowCodec(config.Compression)
	if err != nil {
		return nil, accountdb.NewConfigurationError("new_kv_store", "invalid compressor", err)
	}

	return &Store{config: config, codec: rc}, nil
}

func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return nil
	}

	var engine Engine
	var err error
	switch s.config.Engine {
	case "pebble":
		engine, err = openPebble(s.config.Path, s.config.CacheSize)
	case "goleveldb":
		engine, err = openGoLevelDB(s.config.Path)
	default:
		return accountdb.NewConfigurationError("open", "unknown engine "+s.config.Engine, nil)
	}
	if err != nil {
		return accountdb.NewConnectionError("open", "failed to open kv engine", err)
	}

	s.engine = engine
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}

	err := s.engine.Close()
	s.engine = nil
	if err != nil {
		return accountdb.NewConnectionError("close", "failed to close kv engine", err)
	}
	return nil
}

func (s *Store) Accounts() accountdb.AccountRepository         { return &accountRepo{s: s} }
func (s *Store) Deposits() accountdb.DepositRepository         { return &depositRepo{s: s} }
func (s *Store) Transactions() accountdb.TransactionRepository { return &transactionRepo{s: s} }
func (s *Store) System() accountdb.SystemRepository            { return &systemRepo{s: s} }

// now is the store clock: UTC truncated to microseconds, the resolution the
// index key timestamp carries.
func (s *Store) now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// engineOrClosed returns the engine under the read lock.
func (s *Store) engineOrClosed(operation string) (Engine, error) {
	if s.engine == nil {
		return nil, accountdb.NewConnectionError(operation, "store is closed", nil).
			WithCode(accountdb.CodeStoreClosed)
	}
	return s.engine, nil
}

func encodeMicros(t time.Time) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixMicro()))
	return hex.EncodeToString(buf[:])
}

func accountKey(id string) []byte     { return []byte(prefixAccount + id) }
func depositKey(id string) []byte     { return []byte(prefixDeposit + id) }
func transactionKey(id string) []byte { return []byte(prefixTransaction + id) }
func usernameKey(u string) []byte     { return []byte(prefixIdxUsername + u) }
func walletKey(addr string) []byte    { return []byte(prefixIdxWallet + addr) }

func accountTxnKey(accountID string, created time.Time, id string) []byte {
	return []byte(prefixIdxAccountTxn + accountID + "/" + encodeMicros(created) + "/" + id)
}

func shardTxnKey(shardKey string, created time.Time, id string) []byte {
	return []byte(prefixIdxShardTxn + shardKey + "/" + encodeMicros(created) + "/" + id)
}

// prefixSuccessor returns the smallest key greater than every key having the
// given prefix, for use as an exclusive iterator bound.
func prefixSuccessor(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // Unbounded: prefix is all 0xff.
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

	engine, err := r.s.engineOrClosed("insert_account")
	if err != nil {
		return err
	}

	if err := ensureAbsent(engine, accountKey(account.ID), "insert_account",
		"account id already exists: "+account.ID); err != nil {
		return err
	}
	if err := ensureAbsent(engine, usernameKey(account.Username), "insert_account",
		"username already exists: "+account.Username); err != nil {
		return err
	}
	if account.DepositWalletAddress != "" {
		if err := ensureAbsent(engine, walletKey(account.DepositWalletAddress), "insert_account",
			"deposit wallet address already exists: "+account.DepositWalletAddress); err != nil {
			return err
		}
	}

	if account.CreatedDate.IsZero() {
		account.CreatedDate = r.s.now()
	}

	value, err := r.s.codec.encode(account)
	if err != nil {
		return accountdb.NewDataError("insert_account", "failed to encode account", err)
	}

	ops := []BatchOperation{
		{Type: BatchPut, Key: accountKey(account.ID), Value: value},
		{Type: BatchPut, Key: usernameKey(account.Username), Value: []byte(account.ID)},
	}
	if account.DepositWalletAddress != "" {
		ops = append(ops, BatchOperation{
			Type: BatchPut, Key: walletKey(account.DepositWalletAddress), Value: []byte(account.ID),
		})
	}

	if err := engine.Batch(ops); err != nil {
		return accountdb.NewQueryError("insert_account", "failed to write account", err)
	}
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.getByKeyLocked(accountKey(id), "get_account", id)
}

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.getByIndexLocked(usernameKey(username), "get_account_by_username", username)
}

func (r *accountRepo) GetByDepositWalletAddress(ctx context.Context, address string) (*ledger.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.getByIndexLocked(walletKey(address), "get_account_by_wallet", address)
}

func (r *accountRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	engine, err := r.s.engineOrClosed("set_account_active")
	if err != nil {
		return err
	}

	account, err := r.getByKeyLocked(accountKey(id), "set_account_active", id)
	if err != nil {
		return err
	}

	account.Active = active
	value, err := r.s.codec.encode(account)
	if err != nil {
		return accountdb.NewDataError("set_account_active", "failed to encode account", err)
	}

	if err := engine.Set(accountKey(id), value); err != nil {
		return accountdb.NewQueryError("set_account_active", "failed to write account", err)
	}
	return nil
}

func (r *accountRepo) getByKeyLocked(key []byte, operation, id string) (*ledger.Account, error) {
	engine, err := r.s.engineOrClosed(operation)
	if err != nil {
		return nil, err
	}

	value, err := engine.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, accountdb.NewNotFoundError(operation, "account", id)
		}
		return nil, accountdb.NewQueryError(operation, "failed to read account", err)
	}

	var account ledger.Account
	if err := r.s.codec.decode(value, &account); err != nil {
		return nil, accountdb.NewDataError(operation, "failed to decode account", err)
	}
	return &account, nil
}

func (r *accountRepo) getByIndexLocked(indexKey []byte, operation, lookup string) (*ledger.Account, error) {
	engine, err := r.s.engineOrClosed(operation)
	if err != nil {
		return nil, err
	}

	id, err := engine.Get(indexKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, accountdb.NewNotFoundError(operation, "account", lookup)
		}
		return nil, accountdb.NewQueryError(operation, "failed to read account index", err)
	}

	return r.getByKeyLocked(accountKey(string(id)), operation, string(id))
}

// ensureAbsent turns an existing key into a unique violation.
func ensureAbsent(engine Engine, key []byte, operation, detail string) error {
	_, err := engine.Get(key)
	if err == nil {
		return accountdb.NewUniqueViolationError(operation, detail, nil)
	}
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return accountdb.NewQueryError(operation, "failed to probe index", err)
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

	engine, err := r.s.engineOrClosed("insert_deposit")
	if err != nil {
		return err
	}

	if err := ensureAbsent(engine, depositKey(deposit.ID), "insert_deposit",
		"deposit id already exists: "+deposit.ID); err != nil {
		return err
	}

	if deposit.CreatedDate.IsZero() {
		deposit.CreatedDate = r.s.now()
	}

	value, err := r.s.codec.encode(deposit)
	if err != nil {
		return accountdb.NewDataError("insert_deposit", "failed to encode deposit", err)
	}

	if err := engine.Set(depositKey(deposit.ID), value); err != nil {
		return accountdb.NewQueryError("insert_deposit", "failed to write deposit", err)
	}
	return nil
}

func (r *depositRepo) GetByID(ctx context.Context, id string) (*ledger.Deposit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	engine, err := r.s.engineOrClosed("get_deposit")
	if err != nil {
		return nil, err
	}

	value, err := engine.Get(depositKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, accountdb.NewNotFoundError("get_deposit", "deposit", id)
		}
		return nil, accountdb.NewQueryError("get_deposit", "failed to read deposit", err)
	}

	var deposit ledger.Deposit
	if err := r.s.codec.decode(value, &deposit); err != nil {
		return nil, accountdb.NewDataError("get_deposit", "failed to decode deposit", err)
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

	engine, err := r.s.engineOrClosed("insert_transaction")
	if err != nil {
		return err
	}

	if err := ensureAbsent(engine, transactionKey(txn.ID), "insert_transaction",
		"transaction id already exists: "+txn.ID); err != nil {
		return err
	}

	if txn.CreatedDate.IsZero() {
		txn.CreatedDate = r.s.now()
	}
	// The shard key is derived here so no caller can write a stale or
	// foreign key.
	txn.SettlementShardKey = sharding.Key(txn.AccountID)

	value, err := r.s.codec.encode(txn)
	if err != nil {
		return accountdb.NewDataError("insert_transaction", "failed to encode transaction", err)
	}

	ops := []BatchOperation{
		{Type: BatchPut, Key: transactionKey(txn.ID), Value: value},
		{Type: BatchPut, Key: accountTxnKey(txn.AccountID, txn.CreatedDate, txn.ID), Value: []byte(txn.ID)},
		{Type: BatchPut, Key: shardTxnKey(txn.SettlementShardKey, txn.CreatedDate, txn.ID), Value: []byte(txn.ID)},
	}
	if err := engine.Batch(ops); err != nil {
		return accountdb.NewQueryError("insert_transaction", "failed to write transaction", err)
	}
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.getLocked(id, "get_transaction")
}

func (r *transactionRepo) getLocked(id, operation string) (*ledger.Transaction, error) {
	engine, err := r.s.engineOrClosed(operation)
	if err != nil {
		return nil, err
	}

	value, err := engine.Get(transactionKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, accountdb.NewNotFoundError(operation, "transaction", id)
		}
		return nil, accountdb.NewQueryError(operation, "failed to read transaction", err)
	}

	var txn ledger.Transaction
	if err := r.s.codec.decode(value, &txn); err != nil {
		return nil, accountdb.NewDataError(operation, "failed to decode transaction", err)
	}
	return &txn, nil
}

func (r *transactionRepo) ListByAccount(ctx context.Context, accountID string) ([]*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	prefix := []byte(prefixIdxAccountTxn + accountID + "/")
	return r.collectLocked(prefix, prefixSuccessor(prefix), "list_transactions_by_account")
}

func (r *transactionRepo) ListByShardKeyRange(ctx context.Context, start, end string) ([]*ledger.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// The end bound needs no successor: "ix/ts/"+end is itself exclusive
	// because every index key extends its shard key with "/...".
	lower := []byte(prefixIdxShardTxn + start)
	upper := []byte(prefixIdxShardTxn + end)
	return r.collectLocked(lower, upper, "list_transactions_by_shard_range")
}

// collectLocked walks an index range, loads each referenced row, and returns
// them ordered by (createdDate, id) regardless of index prefix grouping.
func (r *transactionRepo) collectLocked(start, end []byte, operation string) ([]*ledger.Transaction, error) {
	engine, err := r.s.engineOrClosed(operation)
	if err != nil {
		return nil, err
	}

	iter, err := engine.NewIterator(start, end)
	if err != nil {
		return nil, accountdb.NewQueryError(operation, "failed to open iterator", err)
	}
	defer iter.Close()

	ids := make([]string, 0)
	for iter.Next() {
		ids = append(ids, string(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return nil, accountdb.NewQueryError(operation, "failed to iterate index", err)
	}

	out := make([]*ledger.Transaction, 0, len(ids))
	for _, id := range ids {
		txn, err := r.getLocked(id, operation)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedDate.Before(out[j].CreatedDate)
	})
	return out, nil
}

func (r *transactionRepo) UpdateSettlement(ctx context.Context, id string, patch accountdb.SettlementPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	engine, err := r.s.engineOrClosed("update_settlement")
	if err != nil {
		return err
	}

	txn, err := r.getLocked(id, "update_settlement")
	if err != nil {
		return err
	}

	txn.Balance = patch.Balance
	txn.Canceled = patch.Canceled
	txn.Settled = true
	txn.SettledDate = r.s.now()

	value, err := r.s.codec.encode(txn)
	if err != nil {
		return accountdb.NewDataError("update_settlement", "failed to encode transaction", err)
	}
	if err := engine.Set(transactionKey(id), value); err != nil {
		return accountdb.NewQueryError("update_settlement", "failed to write transaction", err)
	}
	return nil
}

func (r *transactionRepo) ClearShardKey(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	engine, err := r.s.engineOrClosed("clear_shard_key")
	if err != nil {
		return err
	}

	txn, err := r.getLocked(id, "clear_shard_key")
	if err != nil {
		return err
	}
	if txn.SettlementShardKey == "" {
		return nil
	}

	indexKey := shardTxnKey(txn.SettlementShardKey, txn.CreatedDate, txn.ID)
	txn.SettlementShardKey = ""

	value, err := r.s.codec.encode(txn)
	if err != nil {
		return accountdb.NewDataError("clear_shard_key", "failed to encode transaction", err)
	}

	ops := []BatchOperation{
		{Type: BatchPut, Key: transactionKey(id), Value: value},
		{Type: BatchDelete, Key: indexKey},
	}
	if err := engine.Batch(ops); err != nil {
		return accountdb.NewQueryError("clear_shard_key", "failed to clear shard key", err)
	}
	return nil
}

func (r *transactionRepo) SettleOne(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	engine, err := r.s.engineOrClosed("settle_one")
	if err != nil {
		return err
	}

	txn, err := r.getLocked(id, "settle_one")
	if err != nil {
		return err
	}

	txn.Settled = true
	txn.SettledDate = r.s.now()

	value, err := r.s.codec.encode(txn)
	if err != nil {
		return accountdb.NewDataError("settle_one", "failed to encode transaction", err)
	}
	if err := engine.Set(transactionKey(id), value); err != nil {
		return accountdb.NewQueryError("settle_one", "failed to write transaction", err)
	}
	return nil
}

type systemRepo struct {
	s *Store
}

func (r *systemRepo) Ping(ctx context.Context) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, err := r.s.engineOrClosed("ping")
	return err
}

func (r *systemRepo) Now(ctx context.Context) (time.Time, error) {
	return r.s.now(), nil
}
