package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeJamon/goCustodyd/internal/events"
)

const (
	// wsWriteWait bounds a single frame write.
	wsWriteWait = 10 * time.Second

	// wsPongWait is how long a connection may stay silent before it is
	// considered dead. Pings go out at a fraction of this.
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsMaxMessageSize caps inbound frames. Clients only listen; anything
	// beyond a control frame is unexpected.
	wsMaxMessageSize = 512
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// EventFeed upgrades HTTP requests to websocket connections and streams bus
// events to them as JSON frames. Each connection gets its own subscription;
// slow consumers drop events at the bus rather than stalling publishers.
type EventFeed struct {
	bus    *events.Bus
	logger Logger
}

// NewEventFeed creates a feed over the given bus.
func NewEventFeed(bus *events.Bus, logger Logger) *EventFeed {
	if logger == nil {
		logger = nopLogger{}
	}
	return &EventFeed{bus: bus, logger: logger}
}

// ServeHTTP upgrades the connection and runs the read and write pumps until
// either side goes away.
func (f *EventFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub, cancel := f.bus.Subscribe()

	f.logger.Debug("websocket client connected", "remote", conn.RemoteAddr().String())

	go f.writePump(conn, sub, cancel)
	go f.readPump(conn, cancel)
}

// writePump forwards bus events to the connection and keeps it alive with
// periodic pings. It owns all writes on the connection.
func (f *EventFeed) writePump(conn *websocket.Conn, sub <-chan events.Event, cancel func()) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Bus closed; tell the client we are done.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				f.logger.Debug("websocket write failed", "remote", conn.RemoteAddr().String(), "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so pongs and close frames are processed.
// The feed is one-way; payloads are discarded.
func (f *EventFeed) readPump(conn *websocket.Conn, cancel func()) {
	defer func() {
		cancel()
		conn.Close()
	}()

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Debug("websocket client gone", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
	}
}
