// Package localcatalog is a SQLite-backed implementation of the catalog
// contract for development and offline use.
package localcatalog

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/mdpub/internal/catalog"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	parent_id  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	doc        TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);

CREATE TABLE IF NOT EXISTS ancestors (
	item_id     TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	ancestor_id TEXT NOT NULL,
	depth       INTEGER NOT NULL,
	UNIQUE(item_id, ancestor_id)
);

CREATE INDEX IF NOT EXISTS idx_ancestors_ancestor ON ancestors(ancestor_id);

CREATE TABLE IF NOT EXISTS identifiers (
	item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	scheme  TEXT NOT NULL DEFAULT '',
	type    TEXT NOT NULL DEFAULT '',
	key     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_identifiers_key ON identifiers(key);

CREATE TABLE IF NOT EXISTS files (
	item_id      TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	content      BLOB NOT NULL,
	UNIQUE(item_id, name)
);

CREATE TABLE IF NOT EXISTS link_types (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS links (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id         TEXT NOT NULL,
	related_item_id TEXT NOT NULL,
	type_id         TEXT NOT NULL REFERENCES link_types(id),
	UNIQUE(item_id, related_item_id, type_id)
);

CREATE INDEX IF NOT EXISTS idx_links_item ON links(item_id);
CREATE INDEX IF NOT EXISTS idx_links_related ON links(related_item_id);

INSERT OR IGNORE INTO link_types (id, name) VALUES
	('lt-productof', 'productOf'),
	('lt-subprojectof', 'subprojectOf'),
	('lt-alternate', 'alternate'),
	('lt-related', 'related');
`

// DB is a catalog stored in a SQLite database.
type DB struct {
	conn *sql.DB
}

var _ catalog.Catalog = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("localcatalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localcatalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localcatalog: apply schema: %w", err)
	}
	if err := initSearch(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localcatalog: init search: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// newID returns a random 24-character hex id, the shape of a remote catalog id.
func newID() (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("localcatalog: generate id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
