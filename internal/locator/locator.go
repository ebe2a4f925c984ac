// Package locator finds the catalog items that represent a candidate item
// inside an authorized subtree.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/identifier"
	"github.com/starford/mdpub/internal/models"
)

// Locator searches a catalog for existing items.
type Locator struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// New creates a Locator over c.
func New(c catalog.Catalog, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{catalog: c, logger: logger}
}

// Locate returns the items under rootID matching candidate, trying the
// candidate's catalog id first and then each managed identifier in order.
// The first non-empty result set wins.
func (l *Locator) Locate(ctx context.Context, candidate *models.Item, rootID string) ([]models.Item, error) {
	if candidate.ID != "" {
		if l.IsAncestor(ctx, candidate.ID, rootID) {
			l.logger.Debug("found by catalog id", slog.String("id", candidate.ID))
			return []models.Item{*candidate}, nil
		}
		// Mirrored subtrees carry the production id as a copy-tracking identifier.
		items, err := l.FindByIdentifier(ctx, models.SchemeCopyTracking, candidate.ID, rootID)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return items, nil
		}
	}

	for _, p := range identifier.ExtractManaged(candidate) {
		l.logger.Debug("looking up by identifier",
			slog.String("scheme", p.Scheme),
			slog.String("key", p.Key))
		items, err := l.FindByIdentifier(ctx, p.Scheme, p.Key, rootID)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, nil
}

// FindByIdentifier searches rootID's subtree for items carrying (scheme, key).
// Catalog-native schemes are searched by item id.
func (l *Locator) FindByIdentifier(ctx context.Context, scheme, key, rootID string) ([]models.Item, error) {
	q := catalog.Query{Ancestors: rootID}
	if identifier.IsCatalogNative(scheme) {
		q.ID = key
	} else {
		q.Identifier = &models.Identifier{Type: scheme, Key: key}
	}

	res, err := l.catalog.FindItems(ctx, q)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("locator: search %s=%s: %w", scheme, key, err)
	}
	if res == nil || res.Total == 0 {
		return nil, nil
	}
	return l.inScope(ctx, res.Items, rootID), nil
}

// IsAncestor reports whether folderID is in itemID's ancestor chain. A failed
// fetch (missing item, no access) means no.
func (l *Locator) IsAncestor(ctx context.Context, itemID, folderID string) bool {
	item, err := l.catalog.GetItem(ctx, itemID, catalog.ItemFields)
	if err != nil {
		l.logger.Debug("ancestry check failed",
			slog.String("id", itemID),
			slog.String("folder", folderID),
			slog.String("error", err.Error()))
		return false
	}
	return item.HasAncestor(folderID)
}

// inScope drops items that are not under rootID. Items returned without an
// ancestor chain are fetched and checked individually.
func (l *Locator) inScope(ctx context.Context, items []models.Item, rootID string) []models.Item {
	if rootID == "" {
		return items
	}
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		inside := it.HasAncestor(rootID)
		if !inside && len(it.Ancestors) == 0 {
			inside = l.IsAncestor(ctx, it.ID, rootID)
		}
		if !inside {
			l.logger.Warn("dropped search result outside subtree",
				slog.String("id", it.ID),
				slog.String("root", rootID))
			continue
		}
		out = append(out, it)
	}
	return out
}
