// Package events provides the in-process feed connecting the deposit
// ingestor and settlement engine to outbound subscribers such as the
// WebSocket endpoint.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
)

// Type tags an event envelope.
type Type string

const (
	TypeDepositIngested         Type = "deposit_ingested"
	TypeTransactionSettled      Type = "transaction_settled"
	TypeSettlementTickCompleted Type = "settlement_tick_completed"
)

// Event is the envelope delivered to subscribers. Data holds one of the
// payload types below, matching Type.
type Event struct {
	Type Type        `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

// DepositIngested is emitted when a blockchain transaction materializes as a
// (deposit, transaction) pair. Replayed marks re-deliveries of an already
// ingested deposit.
type DepositIngested struct {
	Deposit     *ledger.Deposit     `json:"deposit"`
	Transaction *ledger.Transaction `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

// TransactionSettled is emitted for every row settlement writes, including
// canceled overdrafts.
type TransactionSettled struct {
	Transaction *ledger.Transaction `json:"transaction"`
}

// SettlementTickCompleted summarizes one settlement tick.
type SettlementTickCompleted struct {
	ShardIndex int           `json:"shardIndex"`
	ShardCount int           `json:"shardCount"`
	Accounts   int           `json:"accounts"`
	Settled    int           `json:"settled"`
	Canceled   int           `json:"canceled"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Publisher is the producing side of the bus. Components hold this interface
// so tests can run without a bus.
type Publisher interface {
	Publish(event Event)
}

// NoOpPublisher discards events.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(Event) {}

// Logger is the logging interface used by the bus.
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

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Bus fans events out to subscribers over buffered channels. Publish never
// blocks: a subscriber whose buffer is full misses the event. The feed is
// best-effort by contract; the store remains the source of truth.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	nextID uint64
	subs   map[uint64]chan Event

	buffer  int
	logger  Logger
	dropped atomic.Uint64
}

var _ Publisher = (*Bus)(nil)

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBufferSize sets the per-subscriber channel capacity.
func WithBufferSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an event bus.
func NewBus(options ...BusOption) *Bus {
	bus := &Bus{
		subs:   make(map[uint64]chan Event),
		buffer: DefaultBufferSize,
		logger: nopLogger{},
	}
	for _, option := range options {
		option(bus)
	}
	return bus
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function. The channel is closed by cancel or by Close. Subscribing to a
// closed bus returns an already-closed channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
}

// Publish delivers event to every subscriber with buffer room. A zero Time
// is stamped with the current time.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped for slow subscriber",
				"subscriber", id, "type", event.Type)
		}
	}
}

// Close closes every subscriber channel. Publish and Subscribe after Close
// are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.logger.Info("event bus closed")
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the number of deliveries skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
