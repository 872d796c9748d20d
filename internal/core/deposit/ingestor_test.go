package deposit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goCustodyd/internal/core/account"
	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/events"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/memory"
)

func newTestIngestor(t *testing.T, options ...Option) (*Ingestor, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Accounts().Insert(context.Background(), &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "wallet-1",
	}))

	ing, err := NewIngestor(store, account.NewService(store), options...)
	require.NoError(t, err)
	return ing, store
}

func TestIngestHappyPath(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	dep, txn, err := ing.Ingest(ctx, ledger.BlockchainTransaction{
		ID: "btx-1", SenderID: "wallet-1", Height: 42, Amount: "500",
	})
	require.NoError(t, err)
	require.NotNil(t, dep)
	require.NotNil(t, txn)

	assert.Equal(t, "btx-1", dep.ID, "deposit id is the blockchain transaction id")
	assert.Equal(t, "acct-1", dep.AccountID)
	assert.Equal(t, uint64(42), dep.Height)
	assert.Equal(t, dep.TransactionID, txn.ID)

	assert.Equal(t, ledger.TypeDeposit, txn.Type)
	assert.Equal(t, "500", txn.Amount)
	assert.False(t, txn.Settled)
	assert.Equal(t, sharding.Key("acct-1"), txn.SettlementShardKey)

	stored, err := store.Deposits().GetByID(ctx, "btx-1")
	require.NoError(t, err)
	assert.False(t, stored.CreatedDate.IsZero())
}

func TestIngestUnknownSenderIsBenign(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	dep, txn, err := ing.Ingest(ctx, ledger.BlockchainTransaction{
		ID: "btx-1", SenderID: "somebody-else", Amount: "500",
	})
	require.NoError(t, err)
	assert.Nil(t, dep)
	assert.Nil(t, txn)

	_, err = store.Deposits().GetByID(ctx, "btx-1")
	assert.True(t, accountdb.IsNotFound(err), "nothing is persisted")
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	b := ledger.BlockchainTransaction{ID: "btx-1", SenderID: "wallet-1", Height: 7, Amount: "500"}

	first, firstTxn, err := ing.Ingest(ctx, b)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		dep, txn, err := ing.Ingest(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, first.ID, dep.ID)
		assert.Equal(t, first.TransactionID, dep.TransactionID)
		assert.Equal(t, firstTxn.ID, txn.ID)
		assert.Equal(t, firstTxn.Amount, txn.Amount)
	}

	txns, err := store.Transactions().ListByAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, txns, 1, "replays must not create extra ledger rows")
}

func TestIngestRepairsDanglingDeposit(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	// A previous run crashed after the deposit insert: the deposit exists,
	// its transaction does not.
	require.NoError(t, store.Deposits().Insert(ctx, &ledger.Deposit{
		ID: "btx-1", AccountID: "acct-1", TransactionID: "T2", Height: 7,
	}))

	dep, txn, err := ing.Ingest(ctx, ledger.BlockchainTransaction{
		ID: "btx-1", SenderID: "wallet-1", Height: 7, Amount: "500",
	})
	require.NoError(t, err)

	assert.Equal(t, "btx-1", dep.ID)
	assert.Equal(t, "T2", txn.ID, "repair adopts the transaction id recorded on the deposit")
	assert.Equal(t, "500", txn.Amount)
	assert.False(t, txn.Settled)

	stored, err := store.Transactions().GetByID(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", stored.AccountID)
}

func TestIngestFatalWhenInsertAndReadBackFail(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Accounts().Insert(context.Background(), &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "wallet-1",
	}))

	ing, err := NewIngestor(store, account.NewService(store))
	require.NoError(t, err)
	ing.deposits = brokenDeposits{}

	_, _, err = ing.Ingest(context.Background(), ledger.BlockchainTransaction{
		ID: "btx-1", SenderID: "wallet-1", Amount: "500",
	})
	assert.ErrorIs(t, err, ErrIngestFatal)
}

func TestIngestRecoversFromTransactionInsertFailure(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Accounts().Insert(context.Background(), &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "wallet-1",
	}))

	exec := &flakyExecutor{inner: account.NewService(store), failures: 1}
	ing, err := NewIngestor(store, exec)
	require.NoError(t, err)

	ctx := context.Background()
	b := ledger.BlockchainTransaction{ID: "btx-1", SenderID: "wallet-1", Amount: "500"}

	// First delivery: deposit lands, transaction insert fails.
	_, _, err = ing.Ingest(ctx, b)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIngestFatal)

	recorded, err := store.Deposits().GetByID(ctx, "btx-1")
	require.NoError(t, err)

	// Replay repairs the dangling deposit under the recorded id.
	dep, txn, err := ing.Ingest(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, recorded.TransactionID, txn.ID)
	assert.Equal(t, "btx-1", dep.ID)
}

func TestIngestCachesSenderLookups(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Accounts().Insert(context.Background(), &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "wallet-1",
	}))

	counter := &countingAccounts{AccountRepository: store.Accounts()}
	ing, err := NewIngestor(store, account.NewService(store))
	require.NoError(t, err)
	ing.accounts = counter

	ctx := context.Background()
	for i, id := range []string{"btx-1", "btx-2", "btx-3"} {
		_, _, err := ing.Ingest(ctx, ledger.BlockchainTransaction{
			ID: id, SenderID: "wallet-1", Height: uint64(i), Amount: "10",
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, counter.walletLookups, "later ingests hit the cache")

	// Unknown senders are looked up every time: a miss is not cached.
	for i := 0; i < 2; i++ {
		_, _, err := ing.Ingest(ctx, ledger.BlockchainTransaction{
			ID: "other", SenderID: "unknown", Amount: "10",
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, counter.walletLookups)
}

func TestIngestPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe()
	defer cancel()

	ing, _ := newTestIngestor(t, WithPublisher(bus))

	_, _, err := ing.Ingest(context.Background(), ledger.BlockchainTransaction{
		ID: "btx-1", SenderID: "wallet-1", Amount: "500",
	})
	require.NoError(t, err)

	select {
	case got := <-ch:
		require.Equal(t, events.TypeDepositIngested, got.Type)
		payload, ok := got.Data.(*events.DepositIngested)
		require.True(t, ok)
		assert.Equal(t, "btx-1", payload.Deposit.ID)
		assert.False(t, payload.Replayed)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

// brokenDeposits refuses inserts and cannot read anything back: the
// double-failure that makes an ingest fatal.
type brokenDeposits struct{}

func (brokenDeposits) Insert(ctx context.Context, deposit *ledger.Deposit) error {
	return accountdb.NewQueryError("insert_deposit", "disk on fire", nil)
}

func (brokenDeposits) GetByID(ctx context.Context, id string) (*ledger.Deposit, error) {
	return nil, accountdb.NewQueryError("get_deposit", "disk on fire", nil)
}

// flakyExecutor fails the first n appends, then delegates.
type flakyExecutor struct {
	inner    TransactionExecutor
	failures int
}

func (f *flakyExecutor) ExecTransactionWithID(ctx context.Context, id, accountID string, typ ledger.TransactionType, amount string) (*ledger.Transaction, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("simulated insert failure")
	}
	return f.inner.ExecTransactionWithID(ctx, id, accountID, typ, amount)
}

type countingAccounts struct {
	accountdb.AccountRepository
	walletLookups int
}

func (c *countingAccounts) GetByDepositWalletAddress(ctx context.Context, address string) (*ledger.Account, error) {
	c.walletLookups++
	return c.AccountRepository.GetByDepositWalletAddress(ctx, address)
}
