// Package store defines the persistence collaborator used by the message
// router, and its PostgreSQL implementation.
//
// Persistence is best-effort by design: the router delivers in memory first
// and treats a store failure as a logged event, never a rollback.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ergoutree/webchat/internal/message"
)

// ErrUnknownMessage is returned by MarkRead when the referenced message was
// never persisted.
var ErrUnknownMessage = errors.New("message does not exist")

// GroupConversationKey is the fixed key for broadcast traffic.
const GroupConversationKey = "group"

// SavedMessage is the flat persistence view of a message.
type SavedMessage struct {
	ID              string
	ConversationKey string
	Sender          string
	Recipient       string
	Type            string
	Content         string
	Metadata        map[string]any
	SentAt          time.Time
}

// MessageStore persists chat messages and read receipts.
type MessageStore interface {
	// SaveMessage stores one message and returns its stored id.
	SaveMessage(ctx context.Context, msg SavedMessage) (string, error)

	// MarkRead records that username has read the message.
	MarkRead(ctx context.Context, messageID, username string) error

	// RecentMessages returns up to limit messages of a conversation,
	// oldest first.
	RecentMessages(ctx context.Context, conversationKey string, limit int) ([]SavedMessage, error)
}

// UserDirectory resolves usernames to stored identities. The core itself
// only checks username format; existence checks happen here.
type UserDirectory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// ConversationKey derives the persistence grouping identifier for a
// (sender, recipient) pair. Direct conversations use the sorted participant
// pair so both directions land in the same conversation; broadcast traffic
// uses the fixed group key.
func ConversationKey(sender, recipient string) string {
	if recipient == "" || recipient == message.GroupRecipient {
		return GroupConversationKey
	}
	a, b := sender, recipient
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}
