package localcatalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
)

func (db *DB) LinkTypes(ctx context.Context) ([]catalog.LinkType, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM link_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: link types: %w", err)
	}
	defer rows.Close()

	var out []catalog.LinkType
	for rows.Next() {
		var lt catalog.LinkType
		if err := rows.Scan(&lt.ID, &lt.Name); err != nil {
			return nil, fmt.Errorf("localcatalog: scan link type: %w", err)
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

// ItemLinks lists the links with itemID at either end.
func (db *DB) ItemLinks(ctx context.Context, itemID string) ([]catalog.Link, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, item_id, related_item_id, type_id FROM links
		WHERE item_id = ? OR related_item_id = ?
		ORDER BY id`, itemID, itemID)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: item links: %w", err)
	}
	defer rows.Close()

	var out []catalog.Link
	for rows.Next() {
		var (
			l  catalog.Link
			id int64
		)
		if err := rows.Scan(&id, &l.ItemID, &l.RelatedItemID, &l.TypeID); err != nil {
			return nil, fmt.Errorf("localcatalog: scan link: %w", err)
		}
		l.ID = strconv.FormatInt(id, 10)
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateLink stores the link, swapping its ends when Reverse is set. Storing
// an existing link returns it unchanged.
func (db *DB) CreateLink(ctx context.Context, link catalog.Link) (*catalog.Link, error) {
	if link.Reverse {
		link.ItemID, link.RelatedItemID = link.RelatedItemID, link.ItemID
		link.Reverse = false
	}
	for _, id := range []string{link.ItemID, link.RelatedItemID} {
		var exists int
		if err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("localcatalog: link end %s: %w", id, apperr.ErrNotFound)
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("localcatalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO links (item_id, related_item_id, type_id) VALUES (?, ?, ?)
		ON CONFLICT(item_id, related_item_id, type_id) DO NOTHING`,
		link.ItemID, link.RelatedItemID, link.TypeID); err != nil {
		return nil, fmt.Errorf("localcatalog: create link: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM links WHERE item_id = ? AND related_item_id = ? AND type_id = ?`,
		link.ItemID, link.RelatedItemID, link.TypeID).Scan(&id); err != nil {
		return nil, fmt.Errorf("localcatalog: read link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("localcatalog: commit: %w", err)
	}
	link.ID = strconv.FormatInt(id, 10)
	return &link, nil
}
