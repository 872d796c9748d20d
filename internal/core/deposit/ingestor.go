// Package deposit turns observed blockchain transactions into ledger entries
// exactly once, no matter how often the observer replays them.
package deposit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/events"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// ErrIngestFatal marks an unrecoverable ingest inconsistency: the deposit
// insert was refused and the read-back found no existing row to explain it.
var ErrIngestFatal = errors.New("deposit ingest failed fatally")

// DefaultCacheSize is the default capacity of the sender-address cache.
const DefaultCacheSize = 1024

// TransactionExecutor appends a ledger transaction under a caller-chosen id.
// Satisfied by account.Service.
type TransactionExecutor interface {
	ExecTransactionWithID(ctx context.Context, id, accountID string, typ ledger.TransactionType, amount string) (*ledger.Transaction, error)
}

// Logger is the logging interface used by the ingestor.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...interface{}) {}
func (nopLogger) Info(msg string, fields ...interface{})  {}
func (nopLogger) Warn(msg string, fields ...interface{})  {}
func (nopLogger) Error(msg string, fields ...interface{}) {}

// Ingestor materializes (Deposit, Transaction) pairs for blockchain
// transactions whose sender is a known deposit wallet address. Deposit.ID
// equals the blockchain transaction id, making the deposit insert the
// idempotency gate.
type Ingestor struct {
	accounts     accountdb.AccountRepository
	deposits     accountdb.DepositRepository
	transactions accountdb.TransactionRepository
	exec         TransactionExecutor

	// cache maps sender address to the owning account. Misses are never
	// cached: an unknown address may be allocated to a signup later.
	cache     *lru.Cache[string, ledger.Account]
	cacheSize int

	logger    Logger
	publisher events.Publisher
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(ing *Ingestor) {
		ing.logger = logger
	}
}

// WithPublisher sets the event publisher notified on ingests.
func WithPublisher(publisher events.Publisher) Option {
	return func(ing *Ingestor) {
		ing.publisher = publisher
	}
}

// WithCacheSize sets the sender-address cache capacity.
func WithCacheSize(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.cacheSize = n
		}
	}
}

// NewIngestor creates a deposit ingestor over the given store and
// transaction executor.
func NewIngestor(store accountdb.Store, exec TransactionExecutor, options ...Option) (*Ingestor, error) {
	ing := &Ingestor{
		accounts:     store.Accounts(),
		deposits:     store.Deposits(),
		transactions: store.Transactions(),
		exec:         exec,
		cacheSize:    DefaultCacheSize,
		logger:       nopLogger{},
		publisher:    events.NoOpPublisher{},
	}
	for _, option := range options {
		option(ing)
	}

	cache, err := lru.New[string, ledger.Account](ing.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ingestor cache: %w", err)
	}
	ing.cache = cache

	return ing, nil
}

// Ingest processes one observed blockchain transaction. Returns (nil, nil)
// when the sender is not a known deposit wallet address. Replays of an
// already ingested deposit return the stored pair unchanged; a deposit whose
// transaction never made it to disk (crash between the two inserts) gets the
// transaction re-created under the id recorded on the deposit.
func (ing *Ingestor) Ingest(ctx context.Context, b ledger.BlockchainTransaction) (*ledger.Deposit, *ledger.Transaction, error) {
	if b.ID == "" {
		return nil, nil, errors.New("blockchain transaction id is required")
	}

	account, err := ing.resolveAccount(ctx, b.SenderID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		// Not addressed to any of our wallets.
		return nil, nil, nil
	}

	dep := &ledger.Deposit{
		ID:            b.ID,
		AccountID:     account.ID,
		TransactionID: uuid.NewString(),
		Height:        b.Height,
	}

	insertErr := ing.deposits.Insert(ctx, dep)
	if insertErr == nil {
		txn, err := ing.exec.ExecTransactionWithID(ctx, dep.TransactionID, account.ID, ledger.TypeDeposit, b.Amount)
		if err != nil {
			// The deposit row is on disk without its transaction. The next
			// replay of this blockchain transaction repairs it.
			ing.logger.Warn("deposit recorded but transaction insert failed",
				"deposit", dep.ID, "error", err)
			return nil, nil, fmt.Errorf("deposit %s: transaction insert failed: %w", b.ID, err)
		}

		ing.logger.Info("deposit ingested",
			"deposit", dep.ID, "account", account.ID, "amount", txn.Amount, "height", b.Height)
		ing.publisher.Publish(events.Event{
			Type: events.TypeDepositIngested,
			Data: &events.DepositIngested{Deposit: dep, Transaction: txn},
		})
		return dep, txn, nil
	}

	// Insert refused: presume this deposit was recorded before and read it
	// back. If the read also fails, neither explanation holds.
	existing, readErr := ing.deposits.GetByID(ctx, b.ID)
	if readErr != nil {
		return nil, nil, fmt.Errorf("%w: insert refused (%v), read-back failed (%v)",
			ErrIngestFatal, insertErr, readErr)
	}

	txn, txErr := ing.transactions.GetByID(ctx, existing.TransactionID)
	if txErr == nil {
		ing.logger.Debug("deposit replay ignored", "deposit", existing.ID)
		ing.publisher.Publish(events.Event{
			Type: events.TypeDepositIngested,
			Data: &events.DepositIngested{Deposit: existing, Transaction: txn, Replayed: true},
		})
		return existing, txn, nil
	}
	if !accountdb.IsNotFound(txErr) {
		return nil, nil, fmt.Errorf("deposit %s: transaction lookup failed: %w", b.ID, txErr)
	}

	// Dangling deposit: adopt the transaction id recorded on it and create
	// the missing row.
	txn, err = ing.exec.ExecTransactionWithID(ctx, existing.TransactionID, existing.AccountID, ledger.TypeDeposit, b.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("deposit %s: repair insert failed: %w", b.ID, err)
	}

	ing.logger.Warn("repaired dangling deposit",
		"deposit", existing.ID, "transaction", txn.ID)
	ing.publisher.Publish(events.Event{
		Type: events.TypeDepositIngested,
		Data: &events.DepositIngested{Deposit: existing, Transaction: txn},
	})
	return existing, txn, nil
}

// resolveAccount maps a sender address to its account, consulting the cache
// first. An unknown address returns (nil, nil).
func (ing *Ingestor) resolveAccount(ctx context.Context, senderID string) (*ledger.Account, error) {
	if senderID == "" {
		return nil, nil
	}

	if cached, ok := ing.cache.Get(senderID); ok {
		return &cached, nil
	}

	account, err := ing.accounts.GetByDepositWalletAddress(ctx, senderID)
	if err != nil {
		if accountdb.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("deposit account lookup failed: %w", err)
	}

	ing.cache.Add(senderID, *account)
	return account, nil
}
