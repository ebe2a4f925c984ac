package localcatalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/models"
)

// URLScheme prefixes the download URL of files stored in the database.
const URLScheme = "local://"

func fileURL(itemID, name string) string {
	return URLScheme + itemID + "/" + name
}

func notFound(id string) error {
	return fmt.Errorf("localcatalog: item %s: %w", id, apperr.ErrNotFound)
}

// EnsureFolder creates an empty folder item with the given id when it does not
// exist yet. It is used to seed the community and orphan folders.
func (db *DB) EnsureFolder(ctx context.Context, id, title, parentID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localcatalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("localcatalog: check folder: %w", err)
	}
	item := &models.Item{ID: id, ParentID: parentID, Title: title}
	if err := writeItem(ctx, tx, item, true); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) GetItem(ctx context.Context, id, _ string) (*models.Item, error) {
	return readItem(ctx, db.conn, id)
}

func (db *DB) FindItems(ctx context.Context, q catalog.Query) (*catalog.SearchResult, error) {
	var (
		where []string
		args  []any
	)
	if q.Ancestors != "" {
		where = append(where, `EXISTS (SELECT 1 FROM ancestors a WHERE a.item_id = i.id AND a.ancestor_id = ?)`)
		args = append(args, q.Ancestors)
	}
	if q.ID != "" {
		where = append(where, `i.id = ?`)
		args = append(args, q.ID)
	}
	if q.Identifier != nil {
		where = append(where, `EXISTS (SELECT 1 FROM identifiers d WHERE d.item_id = i.id AND d.key = ? AND (d.type = ? OR d.scheme = ?))`)
		args = append(args, q.Identifier.Key, q.Identifier.Type, q.Identifier.Type)
	}
	if q.Text != "" {
		clause, clauseArgs := searchClause(q.Text)
		where = append(where, clause)
		args = append(args, clauseArgs...)
	}
	query := `SELECT i.id FROM items i`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY i.rowid`

	ids, err := queryIDs(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: find items: %w", err)
	}
	res := &catalog.SearchResult{Total: len(ids), Items: make([]models.Item, 0, len(ids))}
	for _, id := range ids {
		it, err := readItem(ctx, db.conn, id)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, *it)
	}
	return res, nil
}

// UpsertItem stores the item and its uploads in one transaction. Attached
// files not listed on the item and not uploaded again are removed.
func (db *DB) UpsertItem(ctx context.Context, item *models.Item, files []catalog.Upload) (*models.Item, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	working := *item
	create := working.ID == ""
	if create {
		if working.ID, err = newID(); err != nil {
			return nil, err
		}
	} else {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, working.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(working.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("localcatalog: check item: %w", err)
		}
		if err := checkParent(ctx, tx, working.ID, working.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	prov := models.Provenance{LastUpdated: now}
	if working.Provenance != nil {
		prov = *working.Provenance
		prov.LastUpdated = now
	}
	if create && prov.DateCreated == "" {
		prov.DateCreated = now
	}
	working.Provenance = &prov

	if err := writeItem(ctx, tx, &working, create); err != nil {
		return nil, err
	}
	if err := syncFiles(ctx, tx, working.ID, working.Files, files); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("localcatalog: commit: %w", err)
	}
	return readItem(ctx, db.conn, working.ID)
}

func (db *DB) ChildIDs(ctx context.Context, id string) ([]string, error) {
	ids, err := queryIDs(ctx, db.conn, `SELECT id FROM items WHERE parent_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: list children: %w", err)
	}
	return ids, nil
}

// DeleteItems removes the items with their files, identifiers and links. The
// batch is all or nothing.
func (db *DB) DeleteItems(ctx context.Context, ids []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localcatalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("localcatalog: delete %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(id)
		}
		if err := searchDelete(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM links WHERE item_id = ? OR related_item_id = ?`, id, id); err != nil {
			return fmt.Errorf("localcatalog: delete links of %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Download returns the content of a file stored by UpsertItem.
func (db *DB) Download(ctx context.Context, file models.File) ([]byte, error) {
	rest, ok := strings.CutPrefix(file.URL, URLScheme)
	if !ok {
		return nil, fmt.Errorf("localcatalog: download %q: %w", file.URL, apperr.ErrNotFound)
	}
	itemID, name, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, fmt.Errorf("localcatalog: download %q: %w", file.URL, apperr.ErrNotFound)
	}
	var content []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT content FROM files WHERE item_id = ? AND name = ?`, itemID, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("localcatalog: file %s of %s: %w", name, itemID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("localcatalog: download: %w", err)
	}
	return content, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// readItem assembles an item from its document with the ancestor chain and
// the file list taken from their tables.
func readItem(ctx context.Context, q queryer, id string) (*models.Item, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM items WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("localcatalog: get item: %w", err)
	}
	var item models.Item
	if err := json.Unmarshal([]byte(doc), &item); err != nil {
		return nil, fmt.Errorf("localcatalog: decode item %s: %w", id, err)
	}

	item.Ancestors, err = queryIDs(ctx, q,
		`SELECT ancestor_id FROM ancestors WHERE item_id = ? ORDER BY depth`, id)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: ancestors of %s: %w", id, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT name, content_type FROM files WHERE item_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: files of %s: %w", id, err)
	}
	defer rows.Close()
	item.Files = nil
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.Name, &f.ContentType); err != nil {
			return nil, fmt.Errorf("localcatalog: scan file: %w", err)
		}
		f.URL = fileURL(id, f.Name)
		item.Files = append(item.Files, f)
	}
	return &item, rows.Err()
}

// writeItem inserts or replaces the item row, its identifiers and its
// ancestor chain. A changed parent re-derives the chains of the subtree.
func writeItem(ctx context.Context, tx *sql.Tx, item *models.Item, create bool) error {
	stored := *item
	stored.Ancestors = nil
	stored.Files = nil
	doc, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("localcatalog: encode item: %w", err)
	}

	if create {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, parent_id, title, doc) VALUES (?, ?, ?, ?)`,
			item.ID, item.ParentID, item.Title, string(doc))
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET parent_id = ?, title = ?, doc = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			item.ParentID, item.Title, string(doc), item.ID)
	}
	if err != nil {
		return fmt.Errorf("localcatalog: write item %s: %w", item.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM identifiers WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("localcatalog: clear identifiers: %w", err)
	}
	for _, id := range item.Identifiers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO identifiers (item_id, scheme, type, key) VALUES (?, ?, ?, ?)`,
			item.ID, id.Scheme, id.Type, id.Key); err != nil {
			return fmt.Errorf("localcatalog: insert identifier: %w", err)
		}
	}
	if err := searchUpsert(ctx, tx, item.ID, item.Title, searchBody(item)); err != nil {
		return err
	}
	return deriveAncestors(ctx, tx, item.ID, item.ParentID)
}

// checkParent refuses to move an item under itself or one of its descendants.
func checkParent(ctx context.Context, q queryer, id, parentID string) error {
	if parentID == "" {
		return nil
	}
	cycle := parentID == id
	if !cycle {
		var one int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM ancestors WHERE item_id = ? AND ancestor_id = ?`, parentID, id).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("localcatalog: check parent: %w", err)
		default:
			cycle = true
		}
	}
	if cycle {
		return fmt.Errorf("localcatalog: move %s: %w", id, apperr.WithMessages(apperr.ErrInvalid,
			fmt.Sprintf("Item %s cannot be placed under itself or its descendant %s", id, parentID)))
	}
	return nil
}

func deriveAncestors(ctx context.Context, tx *sql.Tx, id, parentID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ancestors WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("localcatalog: clear ancestors: %w", err)
	}
	if parentID != "" {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, parentID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Parent unknown locally: the item is a root.
		case err != nil:
			return fmt.Errorf("localcatalog: check parent: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ancestors (item_id, ancestor_id, depth)
				 SELECT ?, ancestor_id, depth FROM ancestors WHERE item_id = ?`, id, parentID); err != nil {
				return fmt.Errorf("localcatalog: copy ancestors: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ancestors (item_id, ancestor_id, depth)
				 SELECT ?, ?, COUNT(*) FROM ancestors WHERE item_id = ?`, id, parentID, parentID); err != nil {
				return fmt.Errorf("localcatalog: add parent: %w", err)
			}
		}
	}

	children, err := queryIDs(ctx, tx, `SELECT id FROM items WHERE parent_id = ? AND id != ?`, id, id)
	if err != nil {
		return fmt.Errorf("localcatalog: list children: %w", err)
	}
	for _, child := range children {
		if err := deriveAncestors(ctx, tx, child, id); err != nil {
			return err
		}
	}
	return nil
}

// syncFiles keeps the stored files named in keep, drops the others and
// upserts the uploads.
func syncFiles(ctx context.Context, tx *sql.Tx, itemID string, keep []models.File, uploads []catalog.Upload) error {
	names := make(map[string]bool, len(keep)+len(uploads))
	for _, f := range keep {
		names[f.Name] = true
	}
	for _, u := range uploads {
		names[u.Name] = true
	}

	stored, err := queryIDs(ctx, tx, `SELECT name FROM files WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("localcatalog: list files: %w", err)
	}
	for _, name := range stored {
		if names[name] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM files WHERE item_id = ? AND name = ?`, itemID, name); err != nil {
			return fmt.Errorf("localcatalog: drop file %s: %w", name, err)
		}
	}

	for _, u := range uploads {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (item_id, name, content_type, content) VALUES (?, ?, ?, ?)
			ON CONFLICT(item_id, name) DO UPDATE SET
				content_type = excluded.content_type,
				content      = excluded.content`,
			itemID, u.Name, u.ContentType, u.Content); err != nil {
			return fmt.Errorf("localcatalog: store file %s: %w", u.Name, err)
		}
	}
	return nil
}
