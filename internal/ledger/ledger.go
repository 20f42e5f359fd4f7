// Package ledger keeps a SQLite record of build outcomes and of the last
// document body compiled for each profile.
package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/vitae/internal/models"
)

// Ledger defines the persistence operations used by the service layer.
// Consumers should depend on this interface rather than the concrete *DB.
type Ledger interface {
	RecordBuild(r models.BuildRecord) error
	MarkEvicted(keySum string) error
	RecentBuilds(profile string, limit int) ([]models.BuildRecord, error)
	SaveSelection(s SelectionRow) error
	Selection(profile string) (*SelectionRow, error)
	Close() error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	key_sum     TEXT NOT NULL,
	profile     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	dir         TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	log         TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_builds_key ON builds(key_sum);
CREATE INDEX IF NOT EXISTS idx_builds_profile ON builds(profile, id);

CREATE TABLE IF NOT EXISTS selections (
	profile    TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	selection  TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
