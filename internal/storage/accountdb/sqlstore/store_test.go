package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// openSQLite opens a store against a throwaway SQLite file. The SQL paths are
// shared between drivers, so this exercises the same statements postgres runs.
func openSQLite(t *testing.T) *Store {
	t.Helper()

	config := SQLiteConfig(filepath.Join(t.TempDir(), "custody.db"))
	store, err := New(config)
	require.NoError(t, err)

	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func TestConfigValidate(t *testing.T) {
	testcases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default postgres", mutate: func(c *Config) {}},
		{name: "postgresql alias", mutate: func(c *Config) { c.Driver = "postgresql" }},
		{name: "sqlite3 alias", mutate: func(c *Config) { c.Driver = "sqlite3"; c.Database = "x.db" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Driver = "oracle" }, wantErr: true},
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Port = -1 }, wantErr: true},
		{name: "missing database", mutate: func(c *Config) { c.Database = "" }, wantErr: true},
		{name: "bad ssl mode", mutate: func(c *Config) { c.SSLMode = "yolo" }, wantErr: true},
		{name: "idle exceeds open", mutate: func(c *Config) { c.MaxIdleConns = 100 }, wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			config := NewConfig()
			tc.mutate(config)
			err := config.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigStringRedactsPassword(t *testing.T) {
	config := NewConfig().WithCredentials("svc", "hunter2")
	assert.NotContains(t, config.String(), "hunter2")
}

func TestAccountRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	account := &ledger.Account{
		ID:                      "acct-1",
		Username:                "alice",
		Password:                "hash",
		PasswordSalt:            "salt",
		Active:                  true,
		DepositWalletAddress:    "addr-1",
		DepositWalletPassphrase: "phrase",
		DepositWalletPrivateKey: "priv",
		DepositWalletPublicKey:  "pub",
	}
	require.NoError(t, s.Accounts().Insert(ctx, account))
	assert.False(t, account.CreatedDate.IsZero(), "insert should stamp createdDate")

	got, err := s.Accounts().GetByID(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, account.Username, got.Username)
	assert.Equal(t, account.CreatedDate, got.CreatedDate, "timestamps must round-trip exactly")

	byName, err := s.Accounts().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", byName.ID)

	byWallet, err := s.Accounts().GetByDepositWalletAddress(ctx, "addr-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", byWallet.ID)

	_, err = s.Accounts().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, accountdb.ErrAccountNotFound)
}

func TestAccountUniqueIndexes(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "addr-1",
	}))

	err := s.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-2", Username: "alice", DepositWalletAddress: "addr-2",
	})
	assert.True(t, accountdb.IsUniqueViolation(err), "duplicate username: %v", err)

	err = s.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-3", Username: "bob", DepositWalletAddress: "addr-1",
	})
	assert.True(t, accountdb.IsUniqueViolation(err), "duplicate wallet address: %v", err)
}

func TestAccountSetActive(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "addr-1", Active: true,
	}))
	require.NoError(t, s.Accounts().SetActive(ctx, "acct-1", false))

	got, err := s.Accounts().GetByID(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = s.Accounts().SetActive(ctx, "missing", true)
	assert.True(t, accountdb.IsNotFound(err))
}

func TestDepositIdempotencyKey(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	deposit := &ledger.Deposit{ID: "blk-1", AccountID: "acct-1", TransactionID: "tx-1", Height: 42}
	require.NoError(t, s.Deposits().Insert(ctx, deposit))

	err := s.Deposits().Insert(ctx, &ledger.Deposit{ID: "blk-1", AccountID: "acct-1", TransactionID: "tx-2"})
	assert.True(t, accountdb.IsUniqueViolation(err))

	got, err := s.Deposits().GetByID(ctx, "blk-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.TransactionID)
	assert.Equal(t, uint64(42), got.Height)

	_, err = s.Deposits().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, accountdb.ErrDepositNotFound)
}

func TestTransactionRoundTripNullableFields(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	txn := &ledger.Transaction{
		ID:        "tx-1",
		AccountID: "acct-1",
		Type:      ledger.TypeDeposit,
		Amount:    "500",
	}
	require.NoError(t, s.Transactions().Insert(ctx, txn))
	assert.Equal(t, sharding.Key("acct-1"), txn.SettlementShardKey)

	got, err := s.Transactions().GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.False(t, got.Settled)
	assert.True(t, got.SettledDate.IsZero(), "unsettled row has no settledDate")
	assert.Empty(t, got.Balance, "unsettled row has no balance")
	assert.Equal(t, sharding.Key("acct-1"), got.SettlementShardKey)

	require.NoError(t, s.Transactions().UpdateSettlement(ctx, "tx-1", accountdb.SettlementPatch{Balance: "500"}))

	got, err = s.Transactions().GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Settled)
	assert.False(t, got.SettledDate.IsZero())
	assert.Equal(t, "500", got.Balance)
	assert.False(t, got.Canceled)
}

func TestTransactionOrderingWithTiebreak(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	insert := func(id string, at time.Time) {
		require.NoError(t, s.Transactions().Insert(ctx, &ledger.Transaction{
			ID: id, AccountID: "acct-1", Type: ledger.TypeCredit, Amount: "1", CreatedDate: at,
		}))
	}

	insert("tx-c", base.Add(2*time.Minute))
	insert("tx-b2", base.Add(time.Minute))
	insert("tx-b1", base.Add(time.Minute))
	insert("tx-a", base)

	list, err := s.Transactions().ListByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "tx-a", list[0].ID)
	assert.Equal(t, "tx-b1", list[1].ID)
	assert.Equal(t, "tx-b2", list[2].ID)
	assert.Equal(t, "tx-c", list[3].ID)
}

func TestShardRangeScanPartition(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		accountID := string(rune('a'+i)) + "-acct"
		require.NoError(t, s.Transactions().Insert(ctx, &ledger.Transaction{
			ID: "tx-" + accountID, AccountID: accountID, Type: ledger.TypeDeposit, Amount: "1",
		}))
	}

	seen := make(map[string]int)
	total := 0
	for i := 0; i < 3; i++ {
		start, end, err := sharding.Range(i, 3)
		require.NoError(t, err)
		list, err := s.Transactions().ListByShardKeyRange(ctx, start, end)
		require.NoError(t, err)
		for _, txn := range list {
			seen[txn.ID]++
		}
		total += len(list)
	}

	assert.Equal(t, 10, total)
	for id, count := range seen {
		assert.Equal(t, 1, count, "transaction %s must belong to exactly one shard", id)
	}
}

func TestClearShardKeyHidesRowFromScan(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Transactions().Insert(ctx, &ledger.Transaction{
		ID: "tx-1", AccountID: "acct-1", Type: ledger.TypeDeposit, Amount: "1",
	}))
	require.NoError(t, s.Transactions().Insert(ctx, &ledger.Transaction{
		ID: "tx-2", AccountID: "acct-1", Type: ledger.TypeCredit, Amount: "2",
	}))

	require.NoError(t, s.Transactions().ClearShardKey(ctx, "tx-1"))

	start, end, err := sharding.Range(0, 1)
	require.NoError(t, err)
	list, err := s.Transactions().ListByShardKeyRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tx-2", list[0].ID)

	// The row itself is still there with the key unset.
	got, err := s.Transactions().GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, got.SettlementShardKey)

	err = s.Transactions().ClearShardKey(ctx, "missing")
	assert.ErrorIs(t, err, accountdb.ErrTransactionNotFound)
}

func TestSettleOne(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Transactions().Insert(ctx, &ledger.Transaction{
		ID: "tx-1", AccountID: "acct-1", Type: ledger.TypeCredit, Amount: "10",
	}))

	require.NoError(t, s.Transactions().SettleOne(ctx, "tx-1"))
	got, err := s.Transactions().GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Settled)
	assert.Empty(t, got.Balance)

	err = s.Transactions().SettleOne(ctx, "missing")
	assert.ErrorIs(t, err, accountdb.ErrTransactionNotFound)
}

func TestSystemPingAndNow(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.System().Ping(ctx))

	now, err := s.System().Now(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, now.Location())
}

func TestSchemaInitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	config := SQLiteConfig(filepath.Join(dir, "custody.db"))

	store, err := New(config)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Accounts().Insert(context.Background(), &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "addr-1",
	}))
	require.NoError(t, store.Close(context.Background()))

	// Reopening against the same file replays CREATE TABLE IF NOT EXISTS and
	// keeps existing data.
	store, err = New(config)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	defer store.Close(context.Background())

	got, err := store.Accounts().GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}
