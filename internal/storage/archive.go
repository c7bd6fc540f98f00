// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/chatwidget/internal/model"
)

// ErrConversationNotFound is returned when no conversation matches an id.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrAmbiguousID is returned when an id prefix matches several conversations.
var ErrAmbiguousID = &ConversationError{Message: "conversation id prefix is ambiguous"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// ARCHIVE
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	endpoint   TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	ord             INTEGER NOT NULL,
	sender          TEXT NOT NULL,
	text            TEXT NOT NULL,
	fallback        INTEGER NOT NULL DEFAULT 0,
	at              INTEGER NOT NULL,
	UNIQUE (conversation_id, ord)
);
`

// Archive stores transcripts in SQLite.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "create archive directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}

	// SQLite allows one writer; a single connection also keeps pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set %s", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}

	return &Archive{db: db, path: path}, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// EnsureConversation creates the conversation row if it does not exist.
func (a *Archive) EnsureConversation(ctx context.Context, id, endpoint string, createdAt time.Time) error {
	if id == "" {
		return errors.New("empty conversation id")
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations(id, endpoint, session_id, created_at, updated_at) VALUES(?,?,?,?,?)`,
		id, endpoint, "", createdAt.UnixNano(), createdAt.UnixNano())
	return errors.Wrap(err, "insert conversation")
}

// AppendMessages stores msgs at positions starting from ord and records the
// session id current at that time.
func (a *Archive) AppendMessages(ctx context.Context, conversationID, sessionID string, ord int, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO messages(id, conversation_id, ord, sender, text, fallback, at) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	var last time.Time
	for i, msg := range msgs {
		if _, err := stmt.ExecContext(ctx, msg.ID, conversationID, ord+i, string(msg.Sender), msg.Text, boolToInt(msg.Fallback), msg.At.UnixNano()); err != nil {
			return errors.Wrapf(err, "insert message %s", msg.ID)
		}
		last = msg.At
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID, last.UnixNano(), conversationID); err != nil {
		return errors.Wrap(err, "update conversation")
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// Delete removes a conversation and its messages. id may be a unique prefix.
func (a *Archive) Delete(ctx context.Context, id string) error {
	full, err := a.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, full); err != nil {
		return errors.Wrap(err, "delete conversation")
	}
	return nil
}

// Clear removes every conversation.
func (a *Archive) Clear(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM conversations`)
	return errors.Wrap(err, "clear archive")
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

const metaQuery = `
SELECT c.id, c.endpoint, c.session_id, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
	COALESCE((SELECT m.text FROM messages m WHERE m.conversation_id = c.id AND m.sender = 'user' ORDER BY m.ord LIMIT 1), '')
FROM conversations c`

// List returns conversations, most recently updated first. limit <= 0 means all.
func (a *Archive) List(ctx context.Context, limit int) ([]ConversationMeta, error) {
	query := metaQuery + ` ORDER BY c.updated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return a.queryMetas(ctx, query, args...)
}

// Search returns conversations where any message contains query
// (case-insensitive), most recent first.
func (a *Archive) Search(ctx context.Context, query string) ([]ConversationMeta, error) {
	if strings.TrimSpace(query) == "" {
		return a.List(ctx, 0)
	}
	q := metaQuery + `
WHERE EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id AND LOWER(m.text) LIKE ? ESCAPE '\')
ORDER BY c.updated_at DESC`
	return a.queryMetas(ctx, q, "%"+escapeLike(strings.ToLower(query))+"%")
}

// Load returns a conversation with all its messages. id may be a unique prefix.
func (a *Archive) Load(ctx context.Context, id string) (*StoredConversation, error) {
	full, err := a.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	metas, err := a.queryMetas(ctx, metaQuery+` WHERE c.id = ?`, full)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, ErrConversationNotFound
	}
	meta := metas[0]

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, sender, text, fallback, at FROM messages WHERE conversation_id = ? ORDER BY ord`, full)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	conv := &StoredConversation{
		ID:        meta.ID,
		Endpoint:  meta.Endpoint,
		SessionID: meta.SessionID,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
		Messages:  make([]model.Message, 0, meta.MessageCount),
	}
	for rows.Next() {
		var (
			msg      model.Message
			sender   string
			fallback int
			at       int64
		)
		if err := rows.Scan(&msg.ID, &sender, &msg.Text, &fallback, &at); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		msg.Sender = model.Sender(sender)
		msg.Fallback = fallback != 0
		msg.At = time.Unix(0, at)
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, errors.Wrap(rows.Err(), "iterate messages")
}

func (a *Archive) queryMetas(ctx context.Context, query string, args ...interface{}) ([]ConversationMeta, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query conversations")
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var (
			meta             ConversationMeta
			created, updated int64
			preview          string
		)
		if err := rows.Scan(&meta.ID, &meta.Endpoint, &meta.SessionID, &created, &updated, &meta.MessageCount, &preview); err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		meta.Preview = previewText(preview)
		metas = append(metas, meta)
	}
	return metas, errors.Wrap(rows.Err(), "iterate conversations")
}

// resolveID expands a unique id prefix into a full conversation id.
func (a *Archive) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrConversationNotFound
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return "", errors.Wrap(err, "resolve conversation id")
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", errors.Wrap(err, "scan conversation id")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "iterate conversation ids")
	}

	switch len(matches) {
	case 0:
		return "", ErrConversationNotFound
	case 1:
		return matches[0], nil
	default:
		for _, m := range matches {
			if m == id {
				return m, nil
			}
		}
		return "", ErrAmbiguousID
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
