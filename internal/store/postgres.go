package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements MessageStore and UserDirectory on a pgx pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a store over an existing pool.
func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// EnsureSchema creates the chat tables when they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS conversations (
			key        TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS messages (
			id               TEXT PRIMARY KEY,
			conversation_key TEXT NOT NULL REFERENCES conversations(key),
			sender           TEXT NOT NULL,
			recipient        TEXT,
			type             TEXT NOT NULL,
			content          TEXT NOT NULL,
			metadata         JSONB,
			created_at       TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS messages_conversation_idx
			ON messages (conversation_key, created_at DESC);
		CREATE TABLE IF NOT EXISTS message_reads (
			message_id TEXT NOT NULL REFERENCES messages(id),
			username   TEXT NOT NULL,
			read_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (message_id, username)
		);`

	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Exists reports whether a username is present in the directory.
func (p *Postgres) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query user %q: %w", username, err)
	}
	return exists, nil
}

// SaveMessage stores one message, creating the conversation row on first
// use. Duplicate message ids are ignored (ON CONFLICT DO NOTHING), matching
// at-least-once delivery upstream.
func (p *Postgres) SaveMessage(ctx context.Context, msg SavedMessage) (string, error) {
	kind := "private"
	if msg.ConversationKey == GroupConversationKey {
		kind = "group"
	}

	var metadata []byte
	if len(msg.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
	}

	batch := &pgx.Batch{}
	// Resolve participant identities. Account registration is handled
	// elsewhere, so the directory rows are provisioned on first use.
	batch.Queue(`INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`, msg.Sender)
	if msg.Recipient != "" {
		batch.Queue(`INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`, msg.Recipient)
	}
	batch.Queue(`
		INSERT INTO conversations (key, kind, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET updated_at = now()
	`, msg.ConversationKey, kind)
	batch.Queue(`
		INSERT INTO messages (id, conversation_key, sender, recipient, type, content, metadata, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.ConversationKey, msg.Sender, msg.Recipient, msg.Type, msg.Content, metadata, msg.SentAt)

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return "", fmt.Errorf("save message %s: %w", msg.ID, err)
		}
	}

	return msg.ID, nil
}

// MarkRead records a read receipt for (messageID, username). Re-reads are
// idempotent.
func (p *Postgres) MarkRead(ctx context.Context, messageID, username string) error {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO message_reads (message_id, username)
		SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM messages WHERE id = $1)
		ON CONFLICT (message_id, username) DO NOTHING
	`, messageID, username)
	if err != nil {
		return fmt.Errorf("mark read %s: %w", messageID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either already read or the message was never persisted.
		var exists bool
		if err := p.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, messageID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("mark read %s: %w", messageID, err)
		}
		if !exists {
			return ErrUnknownMessage
		}
	}
	return nil
}

// RecentMessages returns up to limit messages of a conversation, oldest
// first.
func (p *Postgres) RecentMessages(ctx context.Context, conversationKey string, limit int) ([]SavedMessage, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, conversation_key, sender, COALESCE(recipient, ''), type, content, metadata, created_at
		FROM messages
		WHERE conversation_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var out []SavedMessage
	for rows.Next() {
		var msg SavedMessage
		var metadata []byte
		if err := rows.Scan(
			&msg.ID, &msg.ConversationKey, &msg.Sender, &msg.Recipient,
			&msg.Type, &msg.Content, &metadata, &msg.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				p.logger.Warn("bad metadata json", "id", msg.ID, "error", err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// DESC query: reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// interface checks
var (
	_ MessageStore  = (*Postgres)(nil)
	_ UserDirectory = (*Postgres)(nil)
)
