package credential

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/crypto"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/memory"
	"github.com/LeJamon/goCustodyd/internal/wallet"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))

	allocator := wallet.NewAllocator(wallet.NewLocalGenerator(), store.Accounts())
	return NewService(store, allocator), store
}

func TestSanitizeSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		creds   *ledger.Account
		wantErr error
	}{
		{"nil credentials", nil, ErrNoCredentialsProvided},
		{"missing username", &ledger.Account{Password: "hunter22"}, ErrNoCredentialsProvided},
		{"missing password", &ledger.Account{Username: "alice"}, ErrNoCredentialsProvided},
		{"username too short", &ledger.Account{Username: "ab", Password: "hunter22"}, ErrInvalidUsername},
		{"username too long", &ledger.Account{Username: strings.Repeat("a", 31), Password: "hunter22"}, ErrInvalidUsername},
		{"username whitespace only trims short", &ledger.Account{Username: "  a  ", Password: "hunter22"}, ErrInvalidUsername},
		{"password too short", &ledger.Account{Username: "alice", Password: "short1"}, ErrInvalidPassword},
		{"password too long", &ledger.Account{Username: "alice", Password: strings.Repeat("p", 51)}, ErrInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SanitizeSignup(ctx, tt.creds)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSanitizeSignupAugmentsWithoutInsert(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	creds := &ledger.Account{Username: "  alice  ", Password: "hunter22"}
	require.NoError(t, svc.SanitizeSignup(ctx, creds))

	assert.Equal(t, "alice", creds.Username, "username is trimmed")
	assert.NotEmpty(t, creds.ID)
	assert.True(t, creds.Active)
	assert.False(t, creds.CreatedDate.IsZero())

	require.Len(t, creds.PasswordSalt, 2*SaltSize)
	_, err := hex.DecodeString(creds.PasswordSalt)
	require.NoError(t, err)
	assert.Equal(t, crypto.SaltedHash("hunter22", creds.PasswordSalt), creds.Password)
	assert.NotContains(t, creds.Password, "hunter22")

	assert.Len(t, creds.DepositWalletAddress, 40)
	assert.NotEmpty(t, creds.DepositWalletPassphrase)
	assert.NotEmpty(t, creds.DepositWalletPrivateKey)
	assert.NotEmpty(t, creds.DepositWalletPublicKey)

	// Sanitize is read-only against the store.
	_, err = store.Accounts().GetByUsername(ctx, "alice")
	assert.True(t, accountdb.IsNotFound(err))
}

func TestSanitizeSignupSaltsAreUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := &ledger.Account{Username: "alice", Password: "hunter22"}
	b := &ledger.Account{Username: "bob", Password: "hunter22"}
	require.NoError(t, svc.SanitizeSignup(ctx, a))
	require.NoError(t, svc.SanitizeSignup(ctx, b))

	assert.NotEqual(t, a.PasswordSalt, b.PasswordSalt)
	assert.NotEqual(t, a.Password, b.Password, "same plaintext, different salts, different hashes")
}

func TestSanitizeSignupUsernameTaken(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "addr-1",
	}))

	err := svc.SanitizeSignup(ctx, &ledger.Account{Username: "alice", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSanitizeSignupStoreFailure(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))

	svc := &Service{
		accounts: failingAccounts{},
		system:   store.System(),
		wallets:  wallet.NewAllocator(wallet.NewLocalGenerator(), store.Accounts()),
	}

	err := svc.SanitizeSignup(context.Background(), &ledger.Account{Username: "alice", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrAccountLookup)
}

func TestSanitizeSignupAllocatorFailure(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Open(context.Background()))

	svc := &Service{
		accounts: store.Accounts(),
		system:   store.System(),
		wallets:  failingAllocator{},
	}

	err := svc.SanitizeSignup(context.Background(), &ledger.Account{Username: "alice", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrAccountCreate)
}

func TestSignupInsertsAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	creds := &ledger.Account{Username: "alice", Password: "hunter22"}
	require.NoError(t, svc.Signup(ctx, creds))

	stored, err := store.Accounts().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, creds.ID, stored.ID)
	assert.Equal(t, creds.Password, stored.Password)
	assert.True(t, stored.Active)

	// Second signup with the same username loses at the probe.
	err = svc.Signup(ctx, &ledger.Account{Username: "alice", Password: "hunter23"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSignupLostRaceSurfacesUsernameTaken(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Open(ctx))

	require.NoError(t, store.Accounts().Insert(ctx, &ledger.Account{
		ID: "acct-1", Username: "alice", DepositWalletAddress: "addr-1",
	}))

	// The probe reports the username free, so the insert is what collides:
	// the window a concurrent signup exploits.
	svc := &Service{
		accounts: blindProbeAccounts{store.Accounts()},
		system:   store.System(),
		wallets:  wallet.NewAllocator(wallet.NewLocalGenerator(), store.Accounts()),
	}

	err := svc.Signup(ctx, &ledger.Account{Username: "alice", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestVerifyLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds := &ledger.Account{Username: "alice", Password: "hunter22"}
	require.NoError(t, svc.Signup(ctx, creds))

	account, err := svc.VerifyLogin(ctx, "alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, creds.ID, account.ID)

	// Surrounding whitespace is tolerated on the username.
	_, err = svc.VerifyLogin(ctx, "  alice  ", "hunter22")
	assert.NoError(t, err)
}

func TestVerifyLoginDoesNotLeakExistence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, &ledger.Account{Username: "alice", Password: "hunter22"}))

	_, unknownErr := svc.VerifyLogin(ctx, "mallory", "hunter22")
	_, wrongPassErr := svc.VerifyLogin(ctx, "alice", "letmein77")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongPassErr.Error(),
		"unknown username and wrong password must be indistinguishable")
}

func TestVerifyLoginInactiveAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	creds := &ledger.Account{Username: "alice", Password: "hunter22"}
	require.NoError(t, svc.Signup(ctx, creds))
	require.NoError(t, store.Accounts().SetActive(ctx, creds.ID, false))

	_, err := svc.VerifyLogin(ctx, "alice", "hunter22")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestVerifyLoginEmptyUsername(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.VerifyLogin(context.Background(), "   ", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// blindProbeAccounts delegates everything but pretends every username is
// free, forcing signups into the insert-time unique violation path.
type blindProbeAccounts struct {
	accountdb.AccountRepository
}

func (r blindProbeAccounts) GetByUsername(ctx context.Context, username string) (*ledger.Account, error) {
	return nil, accountdb.NewNotFoundError("get_account_by_username", "account", username)
}

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

type failingAllocator struct{}

func (failingAllocator) Allocate(ctx context.Context) (*wallet.Wallet, error) {
	return nil, errors.New("generator unavailable")
}
