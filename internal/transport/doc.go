// Package transport owns the WebSocket boundary: it upgrades HTTP requests
// on the configured chat path, wraps each connection in a handle whose
// writes are serialized by a per-connection lock, and feeds lifecycle and
// message events into the router.
//
// The core never sees gorilla/websocket types; it works against the
// session.Handle contract only.
package transport
