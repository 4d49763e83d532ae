package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ergoutree/webchat/internal/message"
	"github.com/ergoutree/webchat/internal/session"
)

// fakeHandle records every payload written to it. Like the real transport
// handle it serializes Write with its own lock; inFlight trips if two
// writes ever run inside the critical section at once.
type fakeHandle struct {
	mu       sync.Mutex
	writes   [][]byte
	open     atomic.Bool
	failNext atomic.Bool
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func newFakeHandle() *fakeHandle {
	f := &fakeHandle{}
	f.open.Store(true)
	return f
}

func (f *fakeHandle) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	if f.failNext.Load() {
		return errors.New("broken pipe")
	}
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeHandle) IsOpen() bool { return f.open.Load() }

func (f *fakeHandle) Close() error {
	f.open.Store(false)
	return nil
}

func (f *fakeHandle) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textMsg(content string) message.Message {
	return message.Message{
		ID:        "m1",
		Type:      message.TypeText,
		Sender:    "alice",
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestSendToUser(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	h := newFakeHandle()
	reg.Register("bob", h)

	if !b.SendToUser("bob", textMsg("hi")) {
		t.Fatal("SendToUser to online user = false")
	}
	if h.writeCount() != 1 {
		t.Errorf("handle received %d writes, want 1", h.writeCount())
	}

	if b.SendToUser("nobody", textMsg("hi")) {
		t.Error("SendToUser to unknown user = true")
	}
}

func TestSendToUserClosedConnection(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	h := newFakeHandle()
	reg.Register("bob", h)
	h.Close()

	if b.SendToUser("bob", textMsg("hi")) {
		t.Error("SendToUser over closed handle = true")
	}
	if h.writeCount() != 0 {
		t.Error("write attempted on closed handle")
	}
}

func TestSendToUserWriteFailure(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	h := newFakeHandle()
	h.failNext.Store(true)
	reg.Register("bob", h)

	if b.SendToUser("bob", textMsg("hi")) {
		t.Error("SendToUser = true despite write error")
	}
}

func TestBroadcastToAll(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	handles := make([]*fakeHandle, 5)
	for i := range handles {
		handles[i] = newFakeHandle()
		reg.Register(fmt.Sprintf("user%d", i), handles[i])
	}

	b.BroadcastToAll(textMsg("hello all"))

	for i, h := range handles {
		if h.writeCount() != 1 {
			t.Errorf("user%d received %d writes, want exactly 1", i, h.writeCount())
		}
	}
}

// One broken recipient must not abort delivery to anyone else.
func TestBroadcastToAllPartialFailure(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	good := newFakeHandle()
	bad := newFakeHandle()
	bad.failNext.Store(true)
	closed := newFakeHandle()
	closed.Close()

	reg.Register("good", good)
	reg.Register("bad", bad)
	reg.Register("closed", closed)

	b.BroadcastToAll(textMsg("hello"))

	if good.writeCount() != 1 {
		t.Errorf("healthy recipient got %d writes, want 1", good.writeCount())
	}
	if closed.writeCount() != 0 {
		t.Error("closed recipient was written to")
	}
}

func TestBroadcastToAllExcept(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	alice := newFakeHandle()
	bob := newFakeHandle()
	reg.Register("alice", alice)
	reg.Register("bob", bob)

	if !b.BroadcastToAllExcept(textMsg("typing"), "alice") {
		t.Fatal("BroadcastToAllExcept = false with another recipient online")
	}
	if alice.writeCount() != 0 {
		t.Error("excluded user received the broadcast")
	}
	if bob.writeCount() != 1 {
		t.Errorf("bob received %d writes, want 1", bob.writeCount())
	}

	// Only the excluded user online: nothing delivered.
	reg.Unregister("bob")
	if b.BroadcastToAllExcept(textMsg("typing"), "alice") {
		t.Error("BroadcastToAllExcept = true with no eligible recipients")
	}
}

func TestSendToMany(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	alice := newFakeHandle()
	bob := newFakeHandle()
	reg.Register("alice", alice)
	reg.Register("bob", bob)

	n := b.SendToMany([]string{"alice", "bob", "offline"}, textMsg("hi"))
	if n != 2 {
		t.Errorf("SendToMany delivered %d, want 2", n)
	}
	if alice.writeCount() != 1 || bob.writeCount() != 1 {
		t.Error("named recipients did not each receive one write")
	}
}

// Broadcast to 100 connections while several other broadcasts run
// concurrently: every message reaches every connection exactly once, and
// the per-handle lock keeps writes to a single connection serialized even
// though the broadcaster fans out from many goroutines.
func TestConcurrentBroadcastDelivery(t *testing.T) {
	reg := session.NewRegistry()
	b := New(reg, testLogger())

	const connections = 100
	const broadcasts = 8

	handles := make([]*fakeHandle, connections)
	for i := range handles {
		handles[i] = newFakeHandle()
		reg.Register(fmt.Sprintf("user%03d", i), handles[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.BroadcastToAll(textMsg(fmt.Sprintf("round %d", i)))
		}(i)
	}
	wg.Wait()

	for i, h := range handles {
		if got := h.writeCount(); got != broadcasts {
			t.Errorf("user%03d received %d writes, want %d", i, got, broadcasts)
		}
		if h.overlap.Load() {
			t.Errorf("user%03d observed overlapping writes", i)
		}
	}
}
