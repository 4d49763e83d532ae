package session

import "sync"

// Handle is the transport layer's view of one live client connection. The
// core never inspects it beyond these three capabilities and must not retain
// it after the registry entry is gone.
//
// Write must be internally serialized: broadcast and targeted sends race
// concurrently, and implementations carry their own per-connection lock.
type Handle interface {
	// Write sends one serialized message. A write to a closed or broken
	// connection returns an error, never panics.
	Write(data []byte) error

	// IsOpen reports whether the connection can still be written to.
	IsOpen() bool

	// Close tears the connection down.
	Close() error
}

// Entry is one (username, handle) pairing from a registry snapshot.
type Entry struct {
	Username string
	Handle   Handle
}

// Registry is the concurrent username <-> handle directory. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]Handle
	byHandle map[Handle]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]Handle),
		byHandle: make(map[Handle]string),
	}
}

// Register maps username to handle, replacing any prior mapping for either
// side. Last writer wins; there is no error condition.
func (r *Registry) Register(username string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[username]; ok {
		delete(r.byHandle, prev)
	}
	if prevUser, ok := r.byHandle[h]; ok {
		delete(r.byUser, prevUser)
	}

	r.byUser[username] = h
	r.byHandle[h] = username
}

// Unregister removes the mapping for username and returns the prior handle.
func (r *Registry) Unregister(username string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byUser[username]
	if !ok {
		return nil, false
	}
	delete(r.byUser, username)
	delete(r.byHandle, h)
	return h, true
}

// UnregisterHandle removes the mapping for a handle and returns the username
// it was bound to. Used when the transport only knows the handle, e.g. a
// close before the username was resolved.
func (r *Registry) UnregisterHandle(h Handle) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byHandle[h]
	if !ok {
		return "", false
	}
	delete(r.byHandle, h)
	delete(r.byUser, username)
	return username, true
}

// Lookup returns the handle registered for username.
func (r *Registry) Lookup(username string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[username]
	return h, ok
}

// IsOnline reports whether username has a registered handle.
func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[username]
	return ok
}

// Snapshot returns a point-in-time view of all pairings, safe to iterate
// while registrations continue concurrently.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.byUser))
	for username, h := range r.byUser {
		entries = append(entries, Entry{Username: username, Handle: h})
	}
	return entries
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Usernames returns the usernames of all live sessions.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byUser))
	for username := range r.byUser {
		names = append(names, username)
	}
	return names
}
