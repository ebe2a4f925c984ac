//go:build !sqlite_fts5

package localcatalog

import (
	"context"
	"database/sql"
)

func initSearch(_ *sql.DB) error {
	// FTS5 not available; text queries use LIKE over the stored item documents.
	return nil
}

func searchUpsert(_ context.Context, _ *sql.Tx, _, _, _ string) error { return nil }

func searchDelete(_ context.Context, _ *sql.Tx, _ string) error { return nil }

// searchClause restricts a FindItems query to items matching text.
func searchClause(text string) (string, []any) {
	like := "%" + text + "%"
	return `(i.title LIKE ? OR i.doc LIKE ?)`, []any{like, like}
}
