package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/memory"
)

func TestLocalGeneratorShape(t *testing.T) {
	g := NewLocalGenerator()
	w, err := g.Generate(context.Background())
	require.NoError(t, err)

	// 20-byte hash160 address, hex-encoded.
	assert.Len(t, w.Address, 40)
	_, err = hex.DecodeString(w.Address)
	require.NoError(t, err)

	// Compressed secp256k1 public key: 33 bytes, 0x02/0x03 prefix.
	pub, err := hex.DecodeString(w.PublicKey)
	require.NoError(t, err)
	require.Len(t, pub, 33)
	assert.Contains(t, []byte{0x02, 0x03}, pub[0])

	priv, err := hex.DecodeString(w.PrivateKey)
	require.NoError(t, err)
	assert.Len(t, priv, 32)

	assert.Len(t, w.Passphrase, 32)
}

func TestLocalGeneratorUnique(t *testing.T) {
	g := NewLocalGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		w, err := g.Generate(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[w.Address], "address %s generated twice", w.Address)
		seen[w.Address] = true
	}
}

// sequenceGenerator returns wallets with scripted addresses.
type sequenceGenerator struct {
	addresses []string
	next      int
	err       error
}

func (g *sequenceGenerator) Generate(ctx context.Context) (*Wallet, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.next >= len(g.addresses) {
		g.next = len(g.addresses) - 1
	}
	w := &Wallet{Address: g.addresses[g.next], Passphrase: "p", PrivateKey: "k", PublicKey: "u"}
	g.next++
	return w, nil
}

func TestAllocatorSkipsTakenAddresses(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Open(ctx))

	require.NoError(t, store.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "taken-1",
	}))
	require.NoError(t, store.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-2", Username: "bob", DepositWalletAddress: "taken-2",
	}))

	g := &sequenceGenerator{addresses: []string{"taken-1", "taken-2", "fresh"}}
	allocator := NewAllocator(g, store.Accounts())

	w, err := allocator.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", w.Address)
}

func TestAllocatorGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Open(ctx))

	addresses := make([]string, MaxCreateAttempts)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("taken-%d", i)
		require.NoError(t, store.Accounts().Insert(ctx, &ledger.Account{
			ID:                   fmt.Sprintf("acct-%d", i),
			Username:             fmt.Sprintf("user-%d", i),
			DepositWalletAddress: addresses[i],
		}))
	}

	allocator := NewAllocator(&sequenceGenerator{addresses: addresses}, store.Accounts())

	_, err := allocator.Allocate(ctx)
	assert.ErrorIs(t, err, ErrNoUnusedAddress)
}

func TestAllocatorSurfacesProbeFailure(t *testing.T) {
	allocator := NewAllocator(&sequenceGenerator{addresses: []string{"addr"}}, failingAccounts{})

	_, err := allocator.Allocate(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoUnusedAddress, "store failures are not collisions")
}

// failingAccounts simulates a store outage during the probe.
type failingAccounts struct{}

func (failingAccounts) Insert(ctx context.Context, account *ledger.Account) error {
	return accountdb.NewConnectionError("insert_account", "down", nil)
}

func (failingAccounts) GetByID(ctx context.Context, id string) (*ledger.Account, error) {
	return nil, accountdb.NewConnectionError("get_account", "down", nil)
}

func (failingAccounts) GetByUsername(ctx context.Context, username string) (*ledger.Account, error) {
	return nil, accountdb.NewConnectionError("get_account_by_username", "down", nil)
}

func (failingAccounts) GetByDepositWalletAddress(ctx context.Context, address string) (*ledger.Account, error) {
	return nil, accountdb.NewConnectionError("get_account_by_wallet", "down", nil)
}

func (failingAccounts) SetActive(ctx context.Context, id string, active bool) error {
	return accountdb.NewConnectionError("set_account_active", "down", nil)
}
