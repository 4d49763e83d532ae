// Package history implements the bounded in-memory buffer of recently
// processed messages. It is a convenience cache for replaying context to
// newly joined users, distinct from persisted storage, and resets on
// process restart.
package history

import (
	"sync"

	"github.com/ergoutree/webchat/internal/message"
)

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 100

// Buffer is a fixed-capacity FIFO ring of messages in strict arrival order.
// Appending beyond capacity evicts from the head. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	buf      []message.Message
	head     int // oldest entry
	count    int
	capacity int
}

// New creates a buffer holding at most capacity messages.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		buf:      make([]message.Message, capacity),
		capacity: capacity,
	}
}

// Append adds a message at the tail, evicting the oldest entry when full.
func (b *Buffer) Append(msg message.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tail := (b.head + b.count) % b.capacity
	b.buf[tail] = msg

	if b.count < b.capacity {
		b.count++
		return
	}
	// Full: the slot we just wrote was the head. Advance it.
	b.head = (b.head + 1) % b.capacity
}

// Recent returns up to limit of the most recent messages, oldest first.
func (b *Buffer) Recent(limit int) []message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || b.count == 0 {
		return nil
	}

	n := b.count
	if limit < n {
		n = limit
	}

	// Start n entries back from the tail.
	start := (b.head + b.count - n) % b.capacity
	out := make([]message.Message, n)
	for i := 0; i < n; i++ {
		out[i] = b.buf[(start+i)%b.capacity]
	}
	return out
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}
