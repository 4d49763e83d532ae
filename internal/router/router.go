package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ergoutree/webchat/internal/broadcast"
	"github.com/ergoutree/webchat/internal/history"
	"github.com/ergoutree/webchat/internal/message"
	"github.com/ergoutree/webchat/internal/session"
	"github.com/ergoutree/webchat/internal/store"
)

// Router consumes validated messages and applies the per-type delivery
// policy. It is shared mutable-state-free itself; all state lives in the
// registry, history buffer, and store, each internally synchronized. Safe
// for concurrent calls from every connection goroutine.
type Router struct {
	cfg      Config
	registry *session.Registry
	caster   *broadcast.Broadcaster
	history  *history.Buffer
	store    store.MessageStore
	logger   *slog.Logger
}

// New creates a Router. store may be nil, in which case nothing is
// persisted.
func New(
	cfg Config,
	registry *session.Registry,
	caster *broadcast.Broadcaster,
	hist *history.Buffer,
	st store.MessageStore,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		registry: registry,
		caster:   caster,
		history:  hist,
		store:    st,
		logger:   logger.With("component", "router"),
	}
}

// OnOpen registers the session and routes a synthesized USER_JOIN. A second
// open for the same username replaces the previous mapping.
func (r *Router) OnOpen(username string, h session.Handle) {
	r.registry.Register(username, h)
	r.logger.Info("session opened", "user", username, "online", r.registry.Count())
	r.Process(message.NewUserJoin(username))
}

// OnMessage decodes, validates, sanitizes, and routes one inbound payload.
// Malformed input is dropped and logged; the return value reports whether
// the message was processed.
func (r *Router) OnMessage(h session.Handle, raw []byte) bool {
	msg, err := message.Decode(raw)
	if err != nil {
		r.logger.Warn("undecodable payload dropped", "error", err)
		return false
	}

	msg, err = message.ValidateAndSanitize(msg)
	if err != nil {
		r.logger.Warn("message failed validation",
			"sender", msg.Sender,
			"type", msg.Type,
		)
		return false
	}

	return r.Process(msg)
}

// OnClose unregisters whatever session the handle belonged to and routes a
// synthesized USER_LEAVE.
func (r *Router) OnClose(h session.Handle) {
	username, ok := r.registry.UnregisterHandle(h)
	if !ok {
		return
	}
	r.logger.Info("session closed", "user", username, "online", r.registry.Count())
	r.Process(message.NewUserLeave(username))
}

// OnError notifies the failing connection with a system error message,
// force-closes it, then unregisters and routes the leave. This is the only
// path that proactively terminates a connection.
func (r *Router) OnError(h session.Handle, cause error) {
	if data, err := message.Encode(message.NewSystem("发生错误: " + cause.Error())); err == nil {
		if werr := h.Write(data); werr != nil {
			r.logger.Debug("error notice write failed", "error", werr)
		}
	}
	if err := h.Close(); err != nil {
		r.logger.Debug("force close failed", "error", err)
	}

	username, ok := r.registry.UnregisterHandle(h)
	if !ok {
		return
	}
	r.logger.Warn("session errored", "user", username, "cause", cause)
	r.Process(message.NewUserLeave(username))
}

// Process applies the dispatch policy for one validated message.
func (r *Router) Process(msg message.Message) bool {
	switch msg.Type {
	case message.TypeText, message.TypeImage, message.TypeFile:
		return r.relayChat(msg)
	case message.TypeSystemNotice:
		return r.relayNotice(msg)
	case message.TypeUserJoin:
		return r.handleJoin(msg)
	case message.TypeUserLeave:
		return r.handleLeave(msg)
	case message.TypeTyping:
		return r.handleTyping(msg)
	case message.TypeReadReceipt:
		return r.handleReceipt(msg)
	default:
		r.logger.Warn("unsupported message type", "type", msg.Type)
		return false
	}
}

// BroadcastSystemNotice builds a SYSTEM_NOTICE and routes it; used for
// server-initiated announcements.
func (r *Router) BroadcastSystemNotice(content string) {
	r.Process(message.NewSystem(content))
}

// relayChat handles TEXT, IMAGE, and FILE, which share one delivery path.
// Attachment metadata is passed through unseen.
func (r *Router) relayChat(msg message.Message) bool {
	if !msg.Broadcast() {
		recipient := msg.Recipient
		if !r.registry.IsOnline(recipient) {
			reply := message.NewSystem("用户 " + recipient + " 不在线，无法发送私信")
			return r.caster.SendToUser(msg.Sender, reply)
		}

		toRecipient := r.caster.SendToUser(recipient, msg)
		// Echo back to the sender as delivery confirmation.
		toSender := r.caster.SendToUser(msg.Sender, msg)

		r.history.Append(msg)
		r.persist(msg)
		return toRecipient && toSender
	}

	r.caster.BroadcastToAll(msg)
	r.history.Append(msg)
	r.persist(msg)
	return true
}

func (r *Router) relayNotice(msg message.Message) bool {
	r.caster.BroadcastToAll(msg)
	r.history.Append(msg)
	r.persist(msg)
	return true
}

// handleJoin broadcasts the join, then greets the joiner with the online
// user list and a replay of recent history, oldest first. The join notice
// itself is part of the replayed history.
func (r *Router) handleJoin(msg message.Message) bool {
	r.caster.BroadcastToAll(msg)
	r.history.Append(msg)

	joined, _ := msg.Metadata["joinedUser"].(string)
	if joined == "" {
		return true
	}

	r.caster.SendToUser(joined, r.userListNotice())

	for _, past := range r.history.Recent(r.cfg.ReplayCount) {
		r.caster.SendToUser(joined, past)
	}
	return true
}

func (r *Router) handleLeave(msg message.Message) bool {
	r.caster.BroadcastToAll(msg)
	r.history.Append(msg)
	return true
}

// handleTyping delivers presence without ever touching history or the store.
// A targeted indicator to an offline user is dropped silently.
func (r *Router) handleTyping(msg message.Message) bool {
	if !msg.Broadcast() {
		if !r.registry.IsOnline(msg.Recipient) {
			return false
		}
		return r.caster.SendToUser(msg.Recipient, msg)
	}
	return r.caster.BroadcastToAllExcept(msg, msg.Sender)
}

// handleReceipt forwards a read receipt to its recipient. The content field
// carries the id of the acknowledged message; on successful delivery that
// message is marked read in the store.
func (r *Router) handleReceipt(msg message.Message) bool {
	if msg.Broadcast() {
		return false
	}
	if !r.registry.IsOnline(msg.Recipient) {
		return false
	}

	sent := r.caster.SendToUser(msg.Recipient, msg)
	if sent && msg.Content != "" && r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StoreTimeout)
		defer cancel()
		if err := r.store.MarkRead(ctx, msg.Content, msg.Sender); err != nil {
			r.logger.Warn("mark read failed",
				"message_id", msg.Content,
				"reader", msg.Sender,
				"error", err,
			)
		}
	}
	return sent
}

// userListNotice builds the "current online users" system message sent to a
// joining user. Metadata carries the count and the raw list.
func (r *Router) userListNotice() message.Message {
	usernames := r.registry.Usernames()

	notice := message.NewSystem("当前在线用户: " + strings.Join(usernames, ", "))
	notice.SetMetadata("userCount", len(usernames))
	notice.SetMetadata("userList", usernames)
	return notice
}

// persist saves persistable message types, best effort. Failure is logged
// and never rolls back the already-completed in-memory delivery; the call
// happens after every append and send, with no shared lock held.
func (r *Router) persist(msg message.Message) {
	if r.store == nil {
		return
	}
	switch msg.Type {
	case message.TypeText, message.TypeImage, message.TypeFile, message.TypeSystemNotice:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StoreTimeout)
	defer cancel()

	saved := store.SavedMessage{
		ID:              msg.ID,
		ConversationKey: store.ConversationKey(msg.Sender, msg.Recipient),
		Sender:          msg.Sender,
		Recipient:       msg.Recipient,
		Type:            string(msg.Type),
		Content:         msg.Content,
		Metadata:        msg.Metadata,
		SentAt:          msg.Timestamp,
	}
	if _, err := r.store.SaveMessage(ctx, saved); err != nil {
		r.logger.Warn("persist failed", "id", msg.ID, "type", msg.Type, "error", err)
	}
}
