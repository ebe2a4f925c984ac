//go:build sqlite_fts5

package localcatalog

import (
	"context"
	"database/sql"
	"fmt"
)

func initSearch(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func searchUpsert(ctx context.Context, tx *sql.Tx, id, title, body string) error {
	if err := searchDelete(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO items_fts (id, title, body) VALUES (?, ?, ?)`, id, title, body); err != nil {
		return fmt.Errorf("localcatalog: upsert fts: %w", err)
	}
	return nil
}

func searchDelete(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("localcatalog: delete fts: %w", err)
	}
	return nil
}

// searchClause restricts a FindItems query to items matching text.
func searchClause(text string) (string, []any) {
	return `i.id IN (SELECT id FROM items_fts WHERE items_fts MATCH ?)`, []any{text}
}
