package session

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

// fakeHandle is a minimal Handle for registry tests. The registry never
// calls any of these methods itself; they exist to satisfy the interface.
type fakeHandle struct {
	id     int
	closed bool
}

func (f *fakeHandle) Write(data []byte) error { return nil }
func (f *fakeHandle) IsOpen() bool            { return !f.closed }
func (f *fakeHandle) Close() error            { f.closed = true; return nil }

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{id: 1}

	r.Register("alice", h)

	got, ok := r.Lookup("alice")
	if !ok {
		t.Fatal("Lookup(alice) after Register = not found")
	}
	if got != h {
		t.Errorf("Lookup(alice) = %v, want %v", got, h)
	}
	if !r.IsOnline("alice") {
		t.Error("IsOnline(alice) = false after Register")
	}
	if r.IsOnline("bob") {
		t.Error("IsOnline(bob) = true, never registered")
	}
	if n := r.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{id: 1}
	r.Register("alice", h)

	got, ok := r.Unregister("alice")
	if !ok || got != h {
		t.Fatalf("Unregister(alice) = %v, %v; want %v, true", got, ok, h)
	}
	if r.IsOnline("alice") {
		t.Error("alice still online after Unregister")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after Unregister, want 0", r.Count())
	}

	if _, ok := r.Unregister("alice"); ok {
		t.Error("second Unregister(alice) reported success")
	}
}

func TestUnregisterHandle(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{id: 1}
	r.Register("alice", h)

	username, ok := r.UnregisterHandle(h)
	if !ok || username != "alice" {
		t.Fatalf("UnregisterHandle = %q, %v; want alice, true", username, ok)
	}
	if r.IsOnline("alice") {
		t.Error("alice still online after UnregisterHandle")
	}

	if _, ok := r.UnregisterHandle(h); ok {
		t.Error("UnregisterHandle on removed handle reported success")
	}
	if _, ok := r.UnregisterHandle(&fakeHandle{id: 99}); ok {
		t.Error("UnregisterHandle on unknown handle reported success")
	}
}

// A second Register for the same username supersedes the first: the old
// handle must be unreachable through both maps so a stale connection can
// never receive messages addressed to the user.
func TestRegisterSupersedesPriorHandle(t *testing.T) {
	r := NewRegistry()
	old := &fakeHandle{id: 1}
	repl := &fakeHandle{id: 2}

	r.Register("alice", old)
	r.Register("alice", repl)

	got, ok := r.Lookup("alice")
	if !ok || got != repl {
		t.Fatalf("Lookup(alice) = %v, want replacement handle", got)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d after re-register, want 1", r.Count())
	}
	if _, ok := r.UnregisterHandle(old); ok {
		t.Error("stale handle still resolvable after re-register")
	}
}

// Re-registering an existing handle under a new username must drop the old
// username mapping as well, never leaving a dangling byUser entry.
func TestRegisterMovesHandleBetweenUsernames(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{id: 1}

	r.Register("alice", h)
	r.Register("bob", h)

	if r.IsOnline("alice") {
		t.Error("alice still online after her handle was rebound to bob")
	}
	if got, ok := r.Lookup("bob"); !ok || got != h {
		t.Errorf("Lookup(bob) = %v, %v; want handle, true", got, ok)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestSnapshotAndUsernames(t *testing.T) {
	r := NewRegistry()
	handles := map[string]*fakeHandle{
		"alice": {id: 1},
		"bob":   {id: 2},
		"carol": {id: 3},
	}
	for name, h := range handles {
		r.Register(name, h)
	}

	entries := r.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("Snapshot returned %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if handles[e.Username] != e.Handle {
			t.Errorf("snapshot entry %q carries wrong handle", e.Username)
		}
	}

	names := r.Usernames()
	sort.Strings(names)
	want := []string{"alice", "bob", "carol"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("Usernames() = %v, want %v", names, want)
		}
	}

	// The snapshot is a copy: later mutations must not affect it.
	r.Unregister("bob")
	if len(entries) != 3 {
		t.Error("snapshot changed after Unregister")
	}
}

// Hammer the registry from many goroutines; run with -race. No assertions
// on ordering, only that the maps stay internally consistent.
func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user%d", i%8)
			for j := 0; j < 200; j++ {
				h := &fakeHandle{id: i*1000 + j}
				r.Register(name, h)
				r.Lookup(name)
				r.IsOnline(name)
				r.Snapshot()
				r.Usernames()
				if j%3 == 0 {
					r.Unregister(name)
				} else {
					r.UnregisterHandle(h)
				}
			}
		}(i)
	}
	wg.Wait()

	// Every goroutine removed what it added; both maps must drain together.
	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d after all sessions closed, want 0", got)
	}
	if entries := r.Snapshot(); len(entries) != 0 {
		t.Errorf("Snapshot() has %d leftover entries", len(entries))
	}
}
