package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrHandleClosed is returned by Write after the handle has been closed.
var ErrHandleClosed = errors.New("connection closed")

// wsHandle adapts one gorilla connection to the session.Handle contract.
//
// writeMu is the per-connection lock the broadcaster's concurrency contract
// relies on: broadcast and targeted sends race across router invocations,
// and every outbound frame for this connection passes through here.
type wsHandle struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

func newHandle(conn *websocket.Conn, writeTimeout time.Duration) *wsHandle {
	return &wsHandle{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Write sends one text frame. Concurrent callers are serialized; a write to
// a closed or broken connection returns an error and marks the handle
// closed.
func (h *wsHandle) Write(data []byte) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.markClosed()
		return err
	}
	return nil
}

// IsOpen reports whether the connection can still be written to.
func (h *wsHandle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (h *wsHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.writeMu.Lock()
	h.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	h.writeMu.Unlock()

	return h.conn.Close()
}

// ping sends a keepalive control frame outside the data write path.
func (h *wsHandle) ping() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.mu.Unlock()

	deadline := time.Now().Add(h.writeTimeout)
	return h.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline)
}

func (h *wsHandle) markClosed() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}
