package message

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrDecode  = errors.New("undecodable message payload")
	ErrInvalid = errors.New("message failed validation")
)

// Type enumerates the supported message kinds.
type Type string

const (
	TypeText         Type = "TEXT"
	TypeImage        Type = "IMAGE"
	TypeFile         Type = "FILE"
	TypeSystemNotice Type = "SYSTEM_NOTICE"
	TypeUserJoin     Type = "USER_JOIN"
	TypeUserLeave    Type = "USER_LEAVE"
	TypeTyping       Type = "TYPING"
	TypeReadReceipt  Type = "READ_RECEIPT"
)

const (
	// SystemSender is the reserved sender for server-generated messages.
	SystemSender = "SYSTEM"

	// GroupRecipient is the reserved recipient marking a broadcast. An empty
	// recipient means the same thing.
	GroupRecipient = "GROUP"
)

// Message is one chat message. Instances are created by the factory
// constructors or by decoding an inbound payload; after the router is done
// with a message it is never mutated again.
type Message struct {
	ID        string
	Type      Type
	Sender    string
	Recipient string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
	Read      bool
	Delivered bool
}

// IsSystem reports whether the message is server-generated
// (SYSTEM_NOTICE, USER_JOIN, or USER_LEAVE).
func (m Message) IsSystem() bool {
	switch m.Type {
	case TypeSystemNotice, TypeUserJoin, TypeUserLeave:
		return true
	}
	return false
}

// Broadcast reports whether the message is addressed to everyone.
func (m Message) Broadcast() bool {
	return m.Recipient == "" || m.Recipient == GroupRecipient
}

// SetMetadata adds one metadata entry, allocating the map on first use.
func (m *Message) SetMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// wireMessage is the flat JSON object exchanged with clients.
type wireMessage struct {
	MessageID string         `json:"messageId"`
	Type      string         `json:"type"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient,omitempty"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	Delivered bool           `json:"delivered"`
}

// Encode serializes a message to its wire form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(wireMessage{
		MessageID: m.ID,
		Type:      string(m.Type),
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Content:   m.Content,
		Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		Metadata:  m.Metadata,
		Read:      m.Read,
		Delivered: m.Delivered,
	})
}

// Decode parses an inbound payload. Unknown JSON fields are ignored; a parse
// failure is reported as ErrDecode. A missing id or timestamp is filled in so
// the constructed-message invariant holds even for sloppy clients; everything
// else is left to the validator.
func Decode(data []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, ErrDecode
	}

	m := Message{
		ID:        wire.MessageID,
		Type:      Type(wire.Type),
		Sender:    wire.Sender,
		Recipient: wire.Recipient,
		Content:   wire.Content,
		Metadata:  wire.Metadata,
		Read:      wire.Read,
		Delivered: wire.Delivered,
	}

	if wire.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
		if err != nil {
			return Message{}, ErrDecode
		}
		m.Timestamp = ts
	} else {
		m.Timestamp = time.Now()
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	return m, nil
}
