package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

const sendQueueSize = 32

// Client wraps a websocket connection with a buffered send queue. All
// outbound traffic for a connection flows through the queue and is written
// by a single pump goroutine, which keeps per-connection delivery ordered.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient creates a client for an accepted websocket connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send marshals v and enqueues it for delivery to this client only.
func (c *Client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal client message: %w", err)
	}
	c.enqueue(data)
	return nil
}

// enqueue offers data to the send queue without blocking. Messages to a
// closing client or past a full queue are dropped; the connection's own
// close notification cleans it up.
func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
	default:
		select {
		case c.send <- data:
		case <-c.done:
		default:
			slog.Debug("Live client send queue full, dropping message")
		}
	}
}

// WritePump drains the send queue onto the websocket until the context is
// canceled or the client shuts down. Run in its own goroutine per connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("Live client write failed", "error", err)
				c.shutdown()
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// shutdown marks the client closed so pending and future enqueues are dropped.
func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
	})
}
