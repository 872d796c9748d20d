package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Accounts().Insert(context.Background(), &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "addr-1",
	}))
	return NewService(store), store
}

func TestExecTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	txn, err := svc.ExecTransaction(ctx, "acct-1", ledger.TypeCredit, "0500")
	require.NoError(t, err)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, "acct-1", txn.AccountID)
	assert.Equal(t, "500", txn.Amount, "amount is normalized")
	assert.False(t, txn.Settled)
	assert.False(t, txn.CreatedDate.IsZero())
	assert.Equal(t, sharding.Key("acct-1"), txn.SettlementShardKey)
}

func TestExecTransactionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ExecTransaction(ctx, "acct-1", ledger.TransactionType("transfer"), "500")
	assert.ErrorIs(t, err, ErrInvalidTransactionType)

	_, err = svc.ExecTransaction(ctx, "acct-1", ledger.TypeDebit, "-5")
	assert.ErrorIs(t, err, ledger.ErrNegativeAmount)

	_, err = svc.ExecTransaction(ctx, "acct-1", ledger.TypeDebit, "5.5")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = svc.ExecTransaction(ctx, "missing", ledger.TypeCredit, "500")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecTransactionWithIDKeepsID(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	txn, err := svc.ExecTransactionWithID(ctx, "tx-fixed", "acct-1", ledger.TypeDeposit, "100")
	require.NoError(t, err)
	assert.Equal(t, "tx-fixed", txn.ID)

	stored, err := store.Transactions().GetByID(ctx, "tx-fixed")
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeDeposit, stored.Type)

	// Reusing the id collides.
	_, err = svc.ExecTransactionWithID(ctx, "tx-fixed", "acct-1", ledger.TypeDeposit, "100")
	assert.True(t, accountdb.IsUniqueViolation(err))
}

func TestGetInfoBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// No settled rows yet.
	info, err := svc.GetInfo(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "0", info.Balance)
	assert.Equal(t, "alice", info.Account.Username)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []*ledger.Transaction{
		{ID: "t1", AccountID: "acct-1", Type: ledger.TypeDeposit, Amount: "500", CreatedDate: base},
		{ID: "t2", AccountID: "acct-1", Type: ledger.TypeWithdrawal, Amount: "900", CreatedDate: base.Add(time.Minute)},
		{ID: "t3", AccountID: "acct-1", Type: ledger.TypeCredit, Amount: "100", CreatedDate: base.Add(2 * time.Minute)},
	}
	for _, row := range rows {
		require.NoError(t, store.Transactions().Insert(ctx, row))
	}
	require.NoError(t, store.Transactions().UpdateSettlement(ctx, "t1",
		accountdb.SettlementPatch{Balance: "500"}))
	require.NoError(t, store.Transactions().UpdateSettlement(ctx, "t2",
		accountdb.SettlementPatch{Balance: "500", Canceled: true}))

	// t2 is newer but canceled; the balance comes from t1.
	info, err = svc.GetInfo(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "500", info.Balance)

	require.NoError(t, store.Transactions().UpdateSettlement(ctx, "t3",
		accountdb.SettlementPatch{Balance: "600"}))

	info, err = svc.GetInfo(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "600", info.Balance)
}

func TestTransactionsListsInOrder(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, row := range []*ledger.Transaction{
		{ID: "t2", AccountID: "acct-1", Type: ledger.TypeCredit, Amount: "2", CreatedDate: base.Add(time.Minute)},
		{ID: "t1", AccountID: "acct-1", Type: ledger.TypeCredit, Amount: "1", CreatedDate: base},
	} {
		require.NoError(t, store.Transactions().Insert(ctx, row))
	}

	txns, err := svc.Transactions(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "t1", txns[0].ID)
	assert.Equal(t, "t2", txns[1].ID)

	_, err = svc.Transactions(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
