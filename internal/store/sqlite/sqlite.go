package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/syncnotes/syncnotes-go/internal/proto"
)

// Cache implements store.Cache on SQLite.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	room_id   TEXT NOT NULL,
	msg_id    TEXT NOT NULL,
	sender_id TEXT NOT NULL DEFAULT '',
	username  TEXT NOT NULL DEFAULT '',
	content   TEXT NOT NULL,
	ts        TEXT NOT NULL DEFAULT '',
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	UNIQUE (room_id, msg_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, seq);
`

// New opens (and if needed creates) the cache database at dbPath.
func New(dbPath string) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SaveMessages upserts messages for a room. Duplicates by (room, id) are
// ignored so overlapping history fetches stay idempotent.
func (c *Cache) SaveMessages(ctx context.Context, roomID string, msgs []proto.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages (room_id, msg_id, sender_id, username, content, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		id := msg.ID
		if id == "" {
			id = proto.SynthesizeID(msg.SenderID, msg.Timestamp, msg.Content)
		}
		if _, err := stmt.ExecContext(ctx, roomID, id, msg.SenderID, msg.Username, msg.Content, msg.Timestamp); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListMessages returns up to limit cached messages for a room, oldest
// first. A non-positive limit means no limit.
func (c *Cache) ListMessages(ctx context.Context, roomID string, limit int) ([]proto.ChatMessage, error) {
	query := `
		SELECT msg_id, sender_id, username, content, ts
		FROM messages
		WHERE room_id = ?
		ORDER BY seq
	`
	args := []any{roomID}
	if limit > 0 {
		// Take the newest N but keep chronological order.
		query = `
			SELECT msg_id, sender_id, username, content, ts FROM (
				SELECT msg_id, sender_id, username, content, ts, seq
				FROM messages
				WHERE room_id = ?
				ORDER BY seq DESC
				LIMIT ?
			) ORDER BY seq
		`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []proto.ChatMessage
	for rows.Next() {
		var m proto.ChatMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Username, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
