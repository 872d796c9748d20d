// Package settlement folds unsettled ledger transactions into account
// balances, shard by shard. Each engine owns one (shardIndex, shardCount)
// assignment; disjoint shard ranges let multiple workers run without
// coordination.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/core/sharding"
	"github.com/LeJamon/goCustodyd/internal/events"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

// ErrSettleFailed is returned by SettleOne when no row was updated.
var ErrSettleFailed = errors.New("settle failed")

// DefaultAccountConcurrency bounds how many accounts fold at once in one
// tick.
const DefaultAccountConcurrency = 8

// Logger is the logging interface used by the engine and runner.
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

// Engine settles the transactions of one shard range.
type Engine struct {
	transactions accountdb.TransactionRepository
	system       accountdb.SystemRepository

	shardIndex  int
	shardCount  int
	concurrency int

	logger    Logger
	publisher events.Publisher
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPublisher sets the event publisher notified per settled row and per
// tick.
func WithPublisher(publisher events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithAccountConcurrency bounds the per-tick account fan-out.
func WithAccountConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates a settlement engine for shard shardIndex of shardCount.
// A negative shardIndex disables the engine: Tick becomes a no-op.
func NewEngine(store accountdb.Store, shardIndex, shardCount int, options ...Option) *Engine {
	engine := &Engine{
		transactions: store.Transactions(),
		system:       store.System(),
		shardIndex:   shardIndex,
		shardCount:   shardCount,
		concurrency:  DefaultAccountConcurrency,
		logger:       nopLogger{},
		publisher:    events.NoOpPublisher{},
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// Enabled reports whether this engine owns a shard.
func (e *Engine) Enabled() bool {
	return e.shardIndex >= 0 && e.shardCount >= 1 && e.shardIndex < e.shardCount
}

// TickResult summarizes one settlement pass.
type TickResult struct {
	Accounts int
	Settled  int
	Canceled int
	Pruned   int
	Elapsed  time.Duration
}

// accountBatch is one account's work for a tick: the settled row seeding the
// balance (nil when the account never settled) and the pending rows in
// (createdDate, id) ascending order.
type accountBatch struct {
	accountID string
	seed      *ledger.Transaction
	pending   []*ledger.Transaction
}

// accountResult reports what a fold actually wrote.
type accountResult struct {
	settled  []*ledger.Transaction
	canceled int
}

// Tick runs one gather/fold/prune pass over the engine's shard range. A
// store failure during the gather aborts the tick; per-row update failures
// during the fold stop only that account and are retried naturally next tick
// because failed rows stay settled=false.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	if !e.Enabled() {
		return &TickResult{}, nil
	}

	started := time.Now()

	// Phase 1: gather.
	start, end, err := sharding.Range(e.shardIndex, e.shardCount)
	if err != nil {
		return nil, fmt.Errorf("settlement shard range: %w", err)
	}
	rows, err := e.transactions.ListByShardKeyRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("settlement gather failed for shard %d/%d: %w",
			e.shardIndex, e.shardCount, err)
	}

	batches := buildBatches(rows)
	if len(batches) == 0 {
		e.logger.Debug("settlement tick found no work",
			"shard_index", e.shardIndex, "shard_count", e.shardCount)
		return &TickResult{Elapsed: time.Since(started)}, nil
	}

	now, err := e.system.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement clock read failed: %w", err)
	}

	// Phase 2: fold accounts concurrently. Only context cancellation stops
	// the group; per-account failures are logged inside the fold.
	results := make([]*accountResult, len(batches))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = e.foldAccount(groupCtx, batch, now)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Phase 3: prune shard keys down to the newest settled row per account.
	result := &TickResult{Accounts: len(batches)}
	for i, batch := range batches {
		res := results[i]
		if res == nil {
			continue
		}
		result.Settled += len(res.settled)
		result.Canceled += res.canceled
		result.Pruned += e.pruneAccount(ctx, batch, res)
	}
	result.Elapsed = time.Since(started)

	e.logger.Info("settlement tick completed",
		"shard_index", e.shardIndex,
		"accounts", result.Accounts,
		"settled", result.Settled,
		"canceled", result.Canceled,
		"pruned", result.Pruned,
		"elapsed", result.Elapsed)
	e.publisher.Publish(events.Event{
		Type: events.TypeSettlementTickCompleted,
		Data: &events.SettlementTickCompleted{
			ShardIndex: e.shardIndex,
			ShardCount: e.shardCount,
			Accounts:   result.Accounts,
			Settled:    result.Settled,
			Canceled:   result.Canceled,
			Elapsed:    result.Elapsed,
		},
	})

	return result, nil
}

// buildBatches groups the gathered rows by account, preserving scan order.
// Rows arrive (createdDate, id) ascending, so the last settled row seen for
// an account is its newest.
func buildBatches(rows []*ledger.Transaction) []*accountBatch {
	byAccount := make(map[string]*accountBatch)
	var order []string

	for _, row := range rows {
		batch, ok := byAccount[row.AccountID]
		if !ok {
			batch = &accountBatch{accountID: row.AccountID}
			byAccount[row.AccountID] = batch
			order = append(order, row.AccountID)
		}
		if row.Settled {
			batch.seed = row
		} else {
			batch.pending = append(batch.pending, row)
		}
	}

	batches := make([]*accountBatch, 0, len(order))
	for _, id := range order {
		batches = append(batches, byAccount[id])
	}
	return batches
}

// foldAccount applies the account's pending rows in order. Deposits and
// credits add; debits and withdrawals subtract unless the balance would go
// negative, in which case the row is settled canceled and the balance stands.
// An update failure stops the fold for this account: settling later rows
// against a balance missing this one would corrupt the chain.
func (e *Engine) foldAccount(ctx context.Context, batch *accountBatch, now time.Time) *accountResult {
	balance := big.NewInt(0)
	if batch.seed != nil {
		seeded, err := ledger.ParseAmount(batch.seed.Balance)
		if err != nil {
			e.logger.Error("settled row carries unparseable balance; skipping account",
				"account", batch.accountID, "transaction", batch.seed.ID, "balance", batch.seed.Balance)
			return &accountResult{}
		}
		balance = seeded
	}

	res := &accountResult{}
	for _, row := range batch.pending {
		amount, err := ledger.ParseAmount(row.Amount)
		if err != nil {
			e.logger.Error("unsettled row carries unparseable amount; stopping account fold",
				"account", batch.accountID, "transaction", row.ID, "amount", row.Amount)
			return res
		}

		next := new(big.Int)
		canceled := false
		switch row.Type.Sign() {
		case 1:
			next.Add(balance, amount)
		case -1:
			next.Sub(balance, amount)
			if next.Sign() < 0 {
				canceled = true
				next.Set(balance)
			}
		default:
			e.logger.Error("unknown transaction type; stopping account fold",
				"account", batch.accountID, "transaction", row.ID, "type", row.Type)
			return res
		}

		patch := accountdb.SettlementPatch{
			Balance:  ledger.FormatAmount(next),
			Canceled: canceled,
		}
		if err := e.transactions.UpdateSettlement(ctx, row.ID, patch); err != nil {
			e.logger.Error("settlement update failed; account left partially settled",
				"account", batch.accountID, "transaction", row.ID, "error", err)
			return res
		}

		balance = next
		row.Settled = true
		row.SettledDate = now
		row.Balance = patch.Balance
		row.Canceled = canceled

		if canceled {
			res.canceled++
			e.logger.Warn("transaction canceled by overdraft protection",
				"account", batch.accountID, "transaction", row.ID,
				"amount", row.Amount, "balance", row.Balance)
		}
		res.settled = append(res.settled, row)

		e.publisher.Publish(events.Event{
			Type: events.TypeTransactionSettled,
			Data: &events.TransactionSettled{Transaction: row},
		})
	}
	return res
}

// pruneAccount clears the shard key on every settled row except the newest,
// keeping the next gather at one settled row per account. Failures are
// logged and skipped: a stale key only costs a re-read next tick.
func (e *Engine) pruneAccount(ctx context.Context, batch *accountBatch, res *accountResult) int {
	settled := make([]*ledger.Transaction, 0, len(res.settled)+1)
	if batch.seed != nil {
		settled = append(settled, batch.seed)
	}
	settled = append(settled, res.settled...)
	if len(settled) <= 1 {
		return 0
	}

	sort.Slice(settled, func(i, j int) bool {
		if settled[i].CreatedDate.Equal(settled[j].CreatedDate) {
			return settled[i].ID < settled[j].ID
		}
		return settled[i].CreatedDate.Before(settled[j].CreatedDate)
	})

	cleared := 0
	for _, row := range settled[:len(settled)-1] {
		if err := e.transactions.ClearShardKey(ctx, row.ID); err != nil {
			e.logger.Warn("shard key prune failed",
				"account", batch.accountID, "transaction", row.ID, "error", err)
			continue
		}
		cleared++
	}
	return cleared
}

// SettleOne marks a single transaction settled without computing a balance.
// Administrative use only: the caller owns the resulting ledger consistency.
func (e *Engine) SettleOne(ctx context.Context, txID string) error {
	if err := e.transactions.SettleOne(ctx, txID); err != nil {
		if accountdb.IsNotFound(err) {
			return fmt.Errorf("%w: no transaction %s", ErrSettleFailed, txID)
		}
		return fmt.Errorf("settle %s: %w", txID, err)
	}
	e.logger.Info("transaction settled directly", "transaction", txID)
	return nil
}
