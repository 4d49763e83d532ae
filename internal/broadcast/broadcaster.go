// Package broadcast delivers serialized messages to one, many, or all
// registered connections.
//
// Concurrency contract: writes to the same connection are serialized by the
// handle's own write lock; writes to different connections proceed
// concurrently. The fan-out loop never holds a shared lock across a write —
// it works from a registry snapshot.
package broadcast

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ergoutree/webchat/internal/message"
	"github.com/ergoutree/webchat/internal/session"
)

// Broadcaster fans messages out over the session registry.
type Broadcaster struct {
	registry *session.Registry
	logger   *slog.Logger
}

// New creates a Broadcaster over the given registry.
func New(registry *session.Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		logger:   logger.With("component", "broadcaster"),
	}
}

// SendToUser serializes the message and attempts a single write to the named
// user's connection. Returns whether the write succeeded; an offline user or
// a broken connection is a false, never a panic.
func (b *Broadcaster) SendToUser(username string, msg message.Message) bool {
	h, ok := b.registry.Lookup(username)
	if !ok {
		return false
	}

	data, err := message.Encode(msg)
	if err != nil {
		b.logger.Error("encode message", "id", msg.ID, "error", err)
		return false
	}

	return b.deliver(username, h, data)
}

// BroadcastToAll serializes once and writes to every registered connection.
// Per-connection failures are independent; one broken recipient never aborts
// delivery to the rest.
func (b *Broadcaster) BroadcastToAll(msg message.Message) {
	b.fanOut(msg, "")
}

// BroadcastToAllExcept broadcasts while skipping one username. Returns
// whether at least one delivery succeeded.
func (b *Broadcaster) BroadcastToAllExcept(msg message.Message, excluded string) bool {
	return b.fanOut(msg, excluded) > 0
}

// SendToMany delivers to each named user and returns the number of
// successful deliveries.
func (b *Broadcaster) SendToMany(usernames []string, msg message.Message) int {
	data, err := message.Encode(msg)
	if err != nil {
		b.logger.Error("encode message", "id", msg.ID, "error", err)
		return 0
	}

	var delivered atomic.Int64
	var g errgroup.Group
	for _, username := range usernames {
		h, ok := b.registry.Lookup(username)
		if !ok {
			continue
		}
		username := username
		g.Go(func() error {
			if b.deliver(username, h, data) {
				delivered.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	return int(delivered.Load())
}

// fanOut writes the serialized message to every snapshot entry except the
// excluded username, one goroutine per connection.
func (b *Broadcaster) fanOut(msg message.Message, excluded string) int {
	data, err := message.Encode(msg)
	if err != nil {
		b.logger.Error("encode message", "id", msg.ID, "error", err)
		return 0
	}

	entries := b.registry.Snapshot()

	var delivered atomic.Int64
	var g errgroup.Group
	for _, e := range entries {
		if excluded != "" && e.Username == excluded {
			continue
		}
		e := e
		g.Go(func() error {
			if b.deliver(e.Username, e.Handle, data) {
				delivered.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	return int(delivered.Load())
}

// deliver performs one write and reports success. Failures are logged at
// debug level; dead connections are reaped by the transport's read loop,
// not here.
func (b *Broadcaster) deliver(username string, h session.Handle, data []byte) bool {
	if !h.IsOpen() {
		return false
	}
	if err := h.Write(data); err != nil {
		b.logger.Debug("write failed", "user", username, "error", err)
		return false
	}
	return true
}
