package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// MaxCreateAttempts bounds the address collision retry loop.
const MaxCreateAttempts = 10

// ErrNoUnusedAddress is returned when the generator failed to produce an
// address that is not already bound to an account within MaxCreateAttempts.
var ErrNoUnusedAddress = errors.New("no unused wallet address found")

// Allocator wraps a Generator with a store-backed uniqueness probe. Deposit
// wallet addresses identify the crediting account, so handing the same
// address to two accounts would misroute funds.
type Allocator struct {
	generator Generator
	accounts  accountdb.AccountRepository
	attempts  int
}

// NewAllocator creates an allocator probing the given account repository.
func NewAllocator(generator Generator, accounts accountdb.AccountRepository) *Allocator {
	return &Allocator{
		generator: generator,
		accounts:  accounts,
		attempts:  MaxCreateAttempts,
	}
}

// Allocate returns a wallet whose address no existing account uses. The
// address is not reserved: the caller's subsequent insert still races other
// writers and must treat a unique violation as a loss.
func (a *Allocator) Allocate(ctx context.Context) (*Wallet, error) {
	var lastErr error

	for attempt := 0; attempt < a.attempts; attempt++ {
		w, err := a.generator.Generate(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		_, err = a.accounts.GetByDepositWalletAddress(ctx, w.Address)
		if accountdb.IsNotFound(err) {
			return w, nil
		}
		if err != nil {
			return nil, fmt.Errorf("wallet address probe failed: %w", err)
		}
		// Address is taken; try again.
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrNoUnusedAddress, a.attempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrNoUnusedAddress, a.attempts)
}
