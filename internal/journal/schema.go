// Package journal records language server sessions and metadata deliveries
// in SQLite. Authoring keys are never stored.
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id        TEXT PRIMARY KEY,
	url       TEXT NOT NULL,
	state     TEXT NOT NULL DEFAULT 'connecting',
	opened_at DATETIME NOT NULL,
	ready_at  DATETIME,
	closed_at DATETIME
);

CREATE TABLE IF NOT EXISTS deliveries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	method     TEXT NOT NULL,
	uris       TEXT NOT NULL DEFAULT '[]',
	documents  INTEGER NOT NULL DEFAULT 0,
	sent_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_opened ON sessions(opened_at);
CREATE INDEX IF NOT EXISTS idx_deliveries_session ON deliveries(session_id);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
