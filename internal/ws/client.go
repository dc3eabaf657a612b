package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/xa888s/overthrow/engine"
)

const (
	// sendBuffer bounds per-client outbound queueing. A client that
	// cannot drain this fast is dropped rather than stalling the table.
	sendBuffer = 64

	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// client is one websocket connection. seat is zero until the lobby
// places the player at a table.
type client struct {
	id   uuid.UUID
	name string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte

	seat  engine.PlayerID
	table uuid.UUID
}

// trySend queues a frame without blocking. It reports false when the
// client's buffer is full or the client has been closed.
func (c *client) trySend(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound queue so the write pump exits. Session
// timers may still race a broadcast in; after this they get false from
// trySend instead of a send on a closed channel.
func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send queue onto the wire and keeps the
// connection alive with pings. It exits when the send channel closes or
// a write fails.
func (c *client) writePump(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(wctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
