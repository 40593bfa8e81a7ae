// Package session persists conversation transcripts in a SQL database:
// one row per session, one row per message, appended in arrival order.
// Concurrent appends to the same session are serialised by the database.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = fmt.Errorf("session not found")

// Message is one transcript entry.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the SQL-backed transcript store.
type Store struct {
	db      *sql.DB
	dialect string
}

const createSessionsSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id)
)`

const createMessagesSQL = `
CREATE TABLE IF NOT EXISTS session_messages (
    id VARCHAR(255) NOT NULL,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    metadata_json TEXT,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, id)
)`

const createMessagesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_messages_session ON session_messages(session_id, sequence_num)`

// NewStore wraps an open handle. Supported dialects: postgres, mysql,
// sqlite (sqlite3 is accepted as an alias).
func NewStore(db *sql.DB, dialect string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite", "sqlite3":
		if dialect == "sqlite3" {
			dialect = "sqlite"
		}
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables. Statements run one at a time for SQLite
// compatibility.
func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range []string{createSessionsSQL, createMessagesSQL, createMessagesIndexSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Append adds one message to a session's transcript, creating the session
// row on first use. The append is transactional so the sequence number is
// unique even under concurrent writers.
func (s *Store) Append(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	var metadataJSON string
	if len(msg.Metadata) > 0 {
		b, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.upsertSessionQuery(), sessionID, now, now); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	seqQuery := `SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_messages WHERE session_id = ?`
	if s.dialect == "postgres" {
		seqQuery = convertToPostgresPlaceholders(seqQuery)
	}
	var seqNum int
	if err := tx.QueryRowContext(ctx, seqQuery, sessionID).Scan(&seqNum); err != nil {
		return fmt.Errorf("failed to get sequence number: %w", err)
	}

	insertQuery := `INSERT INTO session_messages (id, session_id, role, content, metadata_json, sequence_num, created_at)
	                VALUES (?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		insertQuery = convertToPostgresPlaceholders(insertQuery)
	}
	_, err = tx.ExecContext(ctx, insertQuery,
		uuid.NewString(), sessionID, msg.Role, msg.Content, metadataJSON, seqNum, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// History returns a session's messages in arrival order. A positive limit
// returns only the most recent messages, still oldest first.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	cols := `role, content, metadata_json, created_at`

	var query string
	var args []any
	if limit > 0 {
		query = `SELECT ` + cols + ` FROM (
		    SELECT ` + cols + `, sequence_num FROM session_messages
		    WHERE session_id = ?
		    ORDER BY sequence_num DESC LIMIT ?
		) sub ORDER BY sequence_num ASC`
		args = []any{sessionID, limit}
	} else {
		query = `SELECT ` + cols + ` FROM session_messages
		    WHERE session_id = ? ORDER BY sequence_num ASC`
		args = []any{sessionID}
	}
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg          Message
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	msgQuery := `DELETE FROM session_messages WHERE session_id = ?`
	if s.dialect == "postgres" {
		msgQuery = convertToPostgresPlaceholders(msgQuery)
	}
	if _, err := s.db.ExecContext(ctx, msgQuery, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	query := `DELETE FROM sessions WHERE id = ?`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	res, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsertSessionQuery() string {
	switch s.dialect {
	case "postgres":
		return `INSERT INTO sessions (id, created_at, updated_at)
		        VALUES ($1, $2, $3)
		        ON CONFLICT (id) DO UPDATE SET updated_at = $3`
	case "mysql":
		return `INSERT INTO sessions (id, created_at, updated_at)
		        VALUES (?, ?, ?)
		        ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)`
	default: // sqlite
		return `INSERT INTO sessions (id, created_at, updated_at)
		        VALUES (?, ?, ?)
		        ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`
	}
}

// convertToPostgresPlaceholders converts ? to $1, $2, etc. in a single pass.
func convertToPostgresPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 20)
	paramNum := 1
	for _, c := range query {
		if c == '?' {
			b.WriteString(fmt.Sprintf("$%d", paramNum))
			paramNum++
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}
