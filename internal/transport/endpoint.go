package transport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ergoutree/webchat/internal/config"
	"github.com/ergoutree/webchat/internal/message"
	"github.com/ergoutree/webchat/internal/router"
)

// Endpoint serves the chat WebSocket path. One goroutine per connection
// reads inbound frames and drives the router; a second sends keepalive
// pings.
type Endpoint struct {
	cfg      config.HTTPConfig
	router   *router.Router
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates the WebSocket endpoint.
func New(cfg config.HTTPConfig, rt *router.Router, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Endpoint{
		cfg:    cfg,
		router: rt,
		logger: logger.With("component", "transport"),
	}
	e.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     e.checkOrigin,
	}
	return e
}

// Handler returns the HTTP handler for the configured WebSocket path. The
// username is the final path segment: <ws_path><username>.
func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(e.cfg.WSPath, e.handleWS)
	return mux
}

func (e *Endpoint) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}

	username := strings.TrimPrefix(r.URL.Path, e.cfg.WSPath)
	if !message.ValidUsername(username) {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn.SetReadLimit(e.cfg.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(e.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(e.cfg.PongTimeout))
	})

	h := newHandle(conn, e.cfg.WriteTimeout)

	e.logger.Info("connection established", "user", username, "remote", r.RemoteAddr)
	e.router.OnOpen(username, h)

	done := make(chan struct{})
	go e.pingLoop(h, done)

	e.readLoop(h, conn, username)
	close(done)
}

// readLoop pumps inbound frames into the router until the connection dies.
// A clean client close becomes OnClose; anything else becomes OnError,
// which notifies and force-closes the connection.
func (e *Endpoint) readLoop(h *wsHandle, conn *websocket.Conn, username string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) || !h.IsOpen() {
				h.Close()
				e.router.OnClose(h)
			} else {
				e.logger.Warn("read failed", "user", username, "error", err)
				e.router.OnError(h, err)
			}
			return
		}

		e.router.OnMessage(h, data)
	}
}

// pingLoop keeps the connection alive; the pong handler extends the read
// deadline, so a peer that stops answering fails the read loop.
func (e *Endpoint) pingLoop(h *wsHandle, done <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.ping(); err != nil {
				return
			}
		}
	}
}

// checkOrigin enforces the configured allow-list. An empty list allows
// everything (development default); "*" does the same explicitly.
func (e *Endpoint) checkOrigin(r *http.Request) bool {
	if len(e.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := strings.ToLower(r.Header.Get("Origin"))
	if origin == "" {
		return false
	}

	for _, allowed := range e.cfg.AllowedOrigins {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
