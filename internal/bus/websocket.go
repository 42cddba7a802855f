package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	readBufferSize  = 64 * 1024
	writeBufferSize = 64 * 1024
)

// wsConn serialises writes to a WebSocket connection; gorilla/websocket
// allows at most one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

func (c *wsConn) close() error {
	c.mu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.conn.Close()
}

// readLoop feeds inbound frames to e until the connection fails, then
// closes e.
func (c *wsConn) readLoop(e *Endpoint) {
	defer func() { _ = e.Close() }()
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Warn("WebSocket connection lost", "endpoint", e.name, "error", err)
			} else {
				e.logger.Debug("WebSocket connection closed", "endpoint", e.name)
			}
			return
		}
		if err := e.receive(f); err != nil {
			return
		}
	}
}

func newWSEndpoint(name string, conn *websocket.Conn, opts ...Option) (*Endpoint, *wsConn) {
	c := &wsConn{conn: conn}
	e := newEndpoint(name, opts...)
	e.write = c.write
	e.onClose = c.close
	return e, c
}

// Dial connects a host endpoint to a background listening at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Endpoint, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to background at %s: %w", url, err)
	}

	e, c := newWSEndpoint("host", conn, opts...)
	go c.readLoop(e)
	return e, nil
}

// NewWebSocketHandler returns an http.Handler that upgrades each request to
// a WebSocket and hands the resulting background-side endpoint to accept.
// The handler returns when the connection closes.
func NewWebSocketHandler(accept func(*Endpoint), opts ...Option) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade bus connection", "error", err)
			return
		}

		e, c := newWSEndpoint("background", conn, opts...)
		accept(e)
		c.readLoop(e)
	})
}
