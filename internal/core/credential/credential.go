// Package credential implements account signup and login: input validation,
// salted password hashing, username uniqueness, and deposit wallet
// allocation.
package credential

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/crypto"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/wallet"
)

// Validation bounds for signup input.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 7
	MaxPasswordLength = 50

	// SaltSize is the number of random bytes in a password salt. The salt is
	// stored hex-encoded, so the persisted form is twice this many characters.
	SaltSize = 32

	// MaxWalletCreateAttempts bounds deposit wallet allocation retries.
	MaxWalletCreateAttempts = wallet.MaxCreateAttempts
)

// Common errors
var (
	ErrNoCredentialsProvided = errors.New("no credentials provided")
	ErrInvalidUsername       = errors.New("username must be between 3 and 30 characters")
	ErrInvalidPassword       = errors.New("password must be between 7 and 50 characters")
	ErrAccountLookup         = errors.New("account lookup failed")
	ErrUsernameTaken         = errors.New("username is already taken")
	ErrAccountCreate         = errors.New("account creation failed")

	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords. Login must not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountInactive    = errors.New("account is inactive")
)

// WalletAllocator yields deposit wallets whose addresses no existing account
// uses.
type WalletAllocator interface {
	Allocate(ctx context.Context) (*wallet.Wallet, error)
}

// Service implements the credential lifecycle against an account store.
type Service struct {
	accounts accountdb.AccountRepository
	system   accountdb.SystemRepository
	wallets  WalletAllocator
}

// NewService creates a credential service over the given store and wallet
// allocator.
func NewService(store accountdb.Store, wallets WalletAllocator) *Service {
	return &Service{
		accounts: store.Accounts(),
		system:   store.System(),
		wallets:  wallets,
	}
}

// SanitizeSignup validates and augments signup credentials in place: it
// trims and bounds-checks the username, replaces the plaintext password with
// its salted hash, stamps id/active/createdDate, probes username
// availability, and allocates a deposit wallet.
//
// It never writes to the store. The caller performs the insert and must
// treat a unique violation there as a concurrently taken username.
func (s *Service) SanitizeSignup(ctx context.Context, creds *ledger.Account) error {
	if creds == nil || creds.Username == "" || creds.Password == "" {
		return ErrNoCredentialsProvided
	}

	creds.Username = strings.TrimSpace(creds.Username)
	if len(creds.Username) < MinUsernameLength || len(creds.Username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if len(creds.Password) < MinPasswordLength || len(creds.Password) > MaxPasswordLength {
		return ErrInvalidPassword
	}

	salt, err := crypto.RandomHex(SaltSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountCreate, err)
	}
	creds.PasswordSalt = salt
	creds.Password = crypto.SaltedHash(creds.Password, salt)

	if creds.ID == "" {
		creds.ID = uuid.NewString()
	}
	creds.Active = true

	now, err := s.system.Now(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountLookup, err)
	}
	creds.CreatedDate = now

	_, err = s.accounts.GetByUsername(ctx, creds.Username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case !accountdb.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrAccountLookup, err)
	}

	w, err := s.wallets.Allocate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountCreate, err)
	}
	creds.DepositWalletAddress = w.Address
	creds.DepositWalletPassphrase = w.Passphrase
	creds.DepositWalletPrivateKey = w.PrivateKey
	creds.DepositWalletPublicKey = w.PublicKey

	return nil
}

// Signup sanitizes the credentials and inserts the account. A unique-index
// violation at insert time means another signup won the username race and is
// reported as ErrUsernameTaken.
func (s *Service) Signup(ctx context.Context, creds *ledger.Account) error {
	if err := s.SanitizeSignup(ctx, creds); err != nil {
		return err
	}

	if err := s.accounts.Insert(ctx, creds); err != nil {
		if accountdb.IsUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("%w: %v", ErrAccountCreate, err)
	}
	return nil
}

// VerifyLogin resolves username/password to the account record. Unknown
// usernames and wrong passwords both return ErrInvalidCredentials; inactive
// accounts return ErrAccountInactive.
func (s *Service) VerifyLogin(ctx context.Context, username, password string) (*ledger.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if accountdb.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrAccountLookup, err)
	}

	if !account.Active {
		return nil, ErrAccountInactive
	}

	hashed := crypto.SaltedHash(password, account.PasswordSalt)
	if subtle.ConstantTimeCompare([]byte(hashed), []byte(account.Password)) != 1 {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}
