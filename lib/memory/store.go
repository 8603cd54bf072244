// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/aegis-foundation/aegis/lib/clock"
)

// schema is applied once at open. Timestamps are RFC 3339 text; the
// messages table cascades with its conversation.
const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    expires_at TEXT
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    title      TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_store(expires_at);
`

// KeyValue is one kv_store entry. Value round-trips as JSON.
type KeyValue struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Conversation is one conversations row.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Message is one messages row.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// ErrNotFound is returned when a key or conversation does not exist.
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string { return e.What + " not found" }

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. ":memory:" opens an
	// in-memory database (pool size is forced to 1, since each
	// in-memory connection would otherwise be independent). Required.
	Path string

	// PoolSize is the number of pooled connections. Zero means 4.
	PoolSize int

	// Clock provides timestamps and TTL decisions. Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Store is the SQLite-backed memory store. Safe for concurrent use;
// individual connections are not, so every method takes its own
// connection from the pool.
type Store struct {
	pool   *sqlitex.Pool
	clock  clock.Clock
	logger *slog.Logger
	path   string
}

// Open creates the pool, applies pragmas to every connection, and
// ensures the schema exists.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("memory: Path is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("memory: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	if cfg.Path == ":memory:" {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
				"PRAGMA foreign_keys=ON",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("memory: opening %s: %w", cfg.Path, err)
	}

	store := &Store{pool: pool, clock: cfg.Clock, logger: logger, path: cfg.Path}
	if err := store.initSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("memory store opened", "path", cfg.Path, "pool_size", poolSize)
	return store, nil
}

// Close closes all pooled connections. Blocks until borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("memory: closing %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("memory: applying schema: %w", err)
	}
	return nil
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339)
}

// --- key-value operations ---

// KVSet stores value (serialized as JSON) under key, creating or
// replacing the entry. A positive ttl sets an expiry; zero means the
// entry never expires.
func (s *Store) KVSet(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("memory: key is required")
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory: encoding value for %q: %w", key, err)
	}

	now := s.now()
	expiresAt := ""
	if ttl > 0 {
		expiresAt = s.clock.Now().UTC().Add(ttl).Format(time.RFC3339)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO kv_store (key, value, created_at, updated_at, expires_at)
		VALUES (:key, :value, :now, :now, NULLIF(:expires, ''))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		&sqlitex.ExecOptions{Named: map[string]any{
			":key":     key,
			":value":   string(encoded),
			":now":     now,
			":expires": expiresAt,
		}})
	if err != nil {
		return fmt.Errorf("memory: storing %q: %w", key, err)
	}
	return nil
}

// KVGet returns the entry for key, or *ErrNotFound when the key is
// absent or expired. Expired rows are deleted on the way out.
func (s *Store) KVGet(ctx context.Context, key string) (*KeyValue, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	var entry *KeyValue
	err = sqlitex.Execute(conn, `
		SELECT key, value, created_at, updated_at, expires_at
		FROM kv_store WHERE key = :key`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":key": key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var value any
				if err := json.Unmarshal([]byte(stmt.GetText("value")), &value); err != nil {
					return fmt.Errorf("decoding stored value: %w", err)
				}
				entry = &KeyValue{
					Key:       stmt.GetText("key"),
					Value:     value,
					CreatedAt: stmt.GetText("created_at"),
					UpdatedAt: stmt.GetText("updated_at"),
					ExpiresAt: stmt.GetText("expires_at"),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: reading %q: %w", key, err)
	}
	if entry == nil {
		return nil, &ErrNotFound{What: "key " + key}
	}

	if entry.ExpiresAt != "" {
		expiry, err := time.Parse(time.RFC3339, entry.ExpiresAt)
		if err == nil && !s.clock.Now().UTC().Before(expiry) {
			if deleteErr := sqlitex.Execute(conn, `DELETE FROM kv_store WHERE key = :key`,
				&sqlitex.ExecOptions{Named: map[string]any{":key": key}}); deleteErr != nil {
				s.logger.Warn("deleting expired key", "key", key, "error", deleteErr)
			}
			return nil, &ErrNotFound{What: "key " + key}
		}
	}
	return entry, nil
}

// KVDelete removes key. Returns *ErrNotFound when no row was deleted.
func (s *Store) KVDelete(ctx context.Context, key string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM kv_store WHERE key = :key`,
		&sqlitex.ExecOptions{Named: map[string]any{":key": key}}); err != nil {
		return fmt.Errorf("memory: deleting %q: %w", key, err)
	}
	if conn.Changes() == 0 {
		return &ErrNotFound{What: "key " + key}
	}
	return nil
}

// KVList returns all non-expired keys in sorted order, optionally
// filtered by prefix.
func (s *Store) KVList(ctx context.Context, prefix string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	now := s.now()
	var keys []string
	err = sqlitex.Execute(conn, `
		SELECT key FROM kv_store
		WHERE (expires_at IS NULL OR expires_at > :now)
		  AND key LIKE :pattern ESCAPE '\'
		ORDER BY key`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":now": now, ":pattern": escapeLike(prefix) + "%"},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keys = append(keys, stmt.GetText("key"))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: listing keys: %w", err)
	}
	return keys, nil
}

// --- conversation operations ---

// CreateConversation creates a conversation and returns its id.
func (s *Store) CreateConversation(ctx context.Context, title string) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	id := uuid.NewString()
	now := s.now()
	err = sqlitex.Execute(conn, `
		INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES (:id, :title, :now, :now)`,
		&sqlitex.ExecOptions{Named: map[string]any{
			":id": id, ":title": title, ":now": now,
		}})
	if err != nil {
		return "", fmt.Errorf("memory: creating conversation: %w", err)
	}
	return id, nil
}

// GetConversation returns one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	var conversation *Conversation
	err = sqlitex.Execute(conn, `
		SELECT id, title, created_at, updated_at FROM conversations WHERE id = :id`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":id": id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				conversation = &Conversation{
					ID:        stmt.GetText("id"),
					Title:     stmt.GetText("title"),
					CreatedAt: stmt.GetText("created_at"),
					UpdatedAt: stmt.GetText("updated_at"),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: reading conversation %s: %w", id, err)
	}
	if conversation == nil {
		return nil, &ErrNotFound{What: "conversation " + id}
	}
	return conversation, nil
}

// ListConversations returns conversations, most recently updated
// first.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	var conversations []Conversation
	err = sqlitex.Execute(conn, `
		SELECT id, title, created_at, updated_at FROM conversations
		ORDER BY updated_at DESC LIMIT :limit`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":limit": limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				conversations = append(conversations, Conversation{
					ID:        stmt.GetText("id"),
					Title:     stmt.GetText("title"),
					CreatedAt: stmt.GetText("created_at"),
					UpdatedAt: stmt.GetText("updated_at"),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: listing conversations: %w", err)
	}
	return conversations, nil
}

// DeleteConversation removes a conversation and, via the foreign key
// cascade, all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM conversations WHERE id = :id`,
		&sqlitex.ExecOptions{Named: map[string]any{":id": id}}); err != nil {
		return fmt.Errorf("memory: deleting conversation %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return &ErrNotFound{What: "conversation " + id}
	}
	return nil
}

// AddMessage appends a message to a conversation and bumps the
// conversation's updated_at.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	// Verify the conversation exists first so the caller gets
	// not-found instead of a foreign key violation.
	var exists bool
	err = sqlitex.Execute(conn, `SELECT 1 FROM conversations WHERE id = :id`,
		&sqlitex.ExecOptions{
			Named:      map[string]any{":id": conversationID},
			ResultFunc: func(*sqlite.Stmt) error { exists = true; return nil },
		})
	if err != nil {
		return "", fmt.Errorf("memory: checking conversation %s: %w", conversationID, err)
	}
	if !exists {
		return "", &ErrNotFound{What: "conversation " + conversationID}
	}

	id := uuid.NewString()
	now := s.now()
	err = sqlitex.Execute(conn, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (:id, :conversation, :role, :content, :now)`,
		&sqlitex.ExecOptions{Named: map[string]any{
			":id": id, ":conversation": conversationID,
			":role": role, ":content": content, ":now": now,
		}})
	if err != nil {
		return "", fmt.Errorf("memory: adding message: %w", err)
	}

	err = sqlitex.Execute(conn, `UPDATE conversations SET updated_at = :now WHERE id = :id`,
		&sqlitex.ExecOptions{Named: map[string]any{":now": now, ":id": conversationID}})
	if err != nil {
		return "", fmt.Errorf("memory: touching conversation %s: %w", conversationID, err)
	}
	return id, nil
}

// Messages returns a conversation's messages in creation order.
func (s *Store) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1000
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	var messages []Message
	err = sqlitex.Execute(conn, `
		SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = :conversation
		ORDER BY created_at ASC, id ASC LIMIT :limit`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":conversation": conversationID, ":limit": limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: listing messages: %w", err)
	}
	return messages, nil
}

// RecentMessages returns the newest messages across all conversations.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	var messages []Message
	err = sqlitex.Execute(conn, `
		SELECT id, conversation_id, role, content, created_at FROM messages
		ORDER BY created_at DESC, id DESC LIMIT :limit`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":limit": limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: listing recent messages: %w", err)
	}
	return messages, nil
}

// SearchMessages returns messages whose content contains the query
// substring, newest first.
func (s *Store) SearchMessages(ctx context.Context, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: take: %w", err)
	}
	defer s.pool.Put(conn)

	var messages []Message
	err = sqlitex.Execute(conn, `
		SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE content LIKE :pattern ESCAPE '\'
		ORDER BY created_at DESC, id DESC LIMIT :limit`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":pattern": "%" + escapeLike(query) + "%", ":limit": limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("memory: searching messages: %w", err)
	}
	return messages, nil
}

func scanMessage(stmt *sqlite.Stmt) Message {
	return Message{
		ID:             stmt.GetText("id"),
		ConversationID: stmt.GetText("conversation_id"),
		Role:           stmt.GetText("role"),
		Content:        stmt.GetText("content"),
		CreatedAt:      stmt.GetText("created_at"),
	}
}

// escapeLike escapes LIKE metacharacters so user input matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
