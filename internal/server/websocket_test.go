package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goCustodyd/internal/core/ledger"
	"github.com/LeJamon/goCustodyd/internal/events"
)

func dialFeed(t *testing.T, bus *events.Bus) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewEventFeed(bus, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// The subscription is registered after the upgrade completes; wait for
	// it so published events cannot race past the new consumer.
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 },
		time.Second, 5*time.Millisecond)

	return conn
}

func TestEventFeedStreamsEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	conn := dialFeed(t, bus)

	bus.Publish(events.Event{
		Type: events.TypeTransactionSettled,
		Time: time.Now(),
		Data: &events.TransactionSettled{
			Transaction: &ledger.Transaction{ID: "t1", AccountID: "a1", Amount: "5", Settled: true},
		},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame struct {
		Type string `json:"type"`
		Data struct {
			Transaction *ledger.Transaction `json:"transaction"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, string(events.TypeTransactionSettled), frame.Type)
	require.NotNil(t, frame.Data.Transaction)
	assert.Equal(t, "t1", frame.Data.Transaction.ID)
}

func TestEventFeedMultipleSubscribers(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	srv := httptest.NewServer(NewEventFeed(bus, nil))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conns := make([]*websocket.Conn, 0, 2)
	for i := 0; i < 2; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		if resp != nil {
			resp.Body.Close()
		}
		t.Cleanup(func() { conn.Close() })
		conns = append(conns, conn)
	}
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 2 },
		time.Second, 5*time.Millisecond)

	bus.Publish(events.Event{Type: events.TypeDepositIngested, Time: time.Now()})

	for _, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Type string `json:"type"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, string(events.TypeDepositIngested), frame.Type)
	}
}

func TestEventFeedClosesOnBusShutdown(t *testing.T) {
	bus := events.NewBus()
	conn := dialFeed(t, bus)

	bus.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway),
		"expected going-away close, got %v", err)
}

func TestEventFeedUnsubscribesOnClientClose(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	conn := dialFeed(t, bus)
	conn.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestEventFrameShape(t *testing.T) {
	// Events cross the feed as plain JSON objects keyed type/time/data.
	data, err := json.Marshal(events.Event{
		Type: events.TypeSettlementTickCompleted,
		Time: time.Unix(1700000000, 0).UTC(),
		Data: &events.SettlementTickCompleted{ShardIndex: 0, ShardCount: 1, Accounts: 3, Settled: 2},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"settlement_tick_completed"`)
	assert.Contains(t, string(data), `"accounts":3`)
}
