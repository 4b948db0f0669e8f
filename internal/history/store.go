// Package history stores durable conversation transcripts in SQLite,
// keyed by session id.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/memchat/memchat/internal/chat"
)

// Store wraps the SQLite conversation history database.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the history database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create db directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("history: resolve path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", absPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}

	// Single writer, multiple readers.
	conn.SetMaxOpenConns(1)

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSession creates the session record if absent; it is a no-op when
// the session already exists.
func (s *Store) EnsureSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("history: ensure session: %w", err)
	}
	return nil
}

// AppendMessage appends one message to a session's transcript.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, m chat.Message) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content)
		VALUES (?, ?, ?)`,
		sessionID, string(m.Role), m.Content,
	)
	if err != nil {
		return fmt.Errorf("history: append message: %w", err)
	}
	return nil
}

// Messages returns a session's full transcript in append order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT role, content FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("history: scan message: %w", err)
		}
		out = append(out, chat.Message{Role: chat.Role(role), Content: content})
	}
	return out, rows.Err()
}

// SessionIDs lists all known session ids, most recently created first.
func (s *Store) SessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id FROM sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("history: query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("history: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MessageCount returns the number of stored messages for a session.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count messages: %w", err)
	}
	return n, nil
}
