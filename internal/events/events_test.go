package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(Event{Type: TypeDepositIngested})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, TypeDepositIngested, got.Type)
			assert.False(t, got.Time.IsZero(), "zero event time is stamped")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(WithBufferSize(2))
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Nobody reads ch; the third publish must drop, not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			bus.Publish(Event{Type: TypeTransactionSettled})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, uint64(3), bus.Dropped())
	assert.Len(t, ch, 2)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Cancel is idempotent.
	cancel()
}

func TestBusClose(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// All post-close operations are safe no-ops.
	bus.Publish(Event{Type: TypeSettlementTickCompleted})
	bus.Close()
	cancel()

	late, lateCancel := bus.Subscribe()
	defer lateCancel()
	_, open = <-late
	assert.False(t, open, "subscribing to a closed bus yields a closed channel")
}

func TestBusEventTimePreserved(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(Event{Type: TypeDepositIngested, Time: stamp})

	got := <-ch
	assert.Equal(t, stamp, got.Time)
}
