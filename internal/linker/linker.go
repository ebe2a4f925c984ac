// Package linker creates the catalog links declared by a record's associated
// resources.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/identifier"
	"github.com/starford/mdpub/internal/locator"
	"github.com/starford/mdpub/internal/models"
)

// Link type names in the catalog vocabulary.
const (
	TypeProductOf    = "productOf"
	TypeSubprojectOf = "subprojectOf"
	TypeAlternate    = "alternate"
	TypeRelated      = "related"
)

// Resolve maps an association declared by a record of resourceType to a link
// type name and direction. ok is false for association types with no link.
func Resolve(associationType, resourceType string) (name string, reverse, ok bool) {
	switch associationType {
	case models.AssocProduct:
		return TypeProductOf, true, true
	case models.AssocParentProject:
		if resourceType == models.ResourceProject {
			return TypeSubprojectOf, false, true
		}
		return TypeProductOf, false, true
	case models.AssocSubProject:
		return TypeSubprojectOf, true, true
	case models.AssocAlternate:
		return TypeAlternate, false, true
	case models.AssocCrossReference:
		return TypeRelated, false, true
	}
	return "", false, false
}

// Linker creates links idempotently. The link-type vocabulary is loaded on
// first use and kept for the life of the process.
type Linker struct {
	catalog catalog.Catalog
	locator *locator.Locator
	logger  *slog.Logger
	onLink  func(catalog.Link)

	mu    sync.Mutex
	vocab map[string]string
}

// Option configures a Linker.
type Option func(*Linker)

// WithLinkHook registers fn to be called for every link created.
func WithLinkHook(fn func(catalog.Link)) Option {
	return func(l *Linker) { l.onLink = fn }
}

// New creates a Linker.
func New(c catalog.Catalog, loc *locator.Locator, logger *slog.Logger, opts ...Option) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Linker{catalog: c, locator: loc, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LinkAll links itemID to the counterpart of every association declared by r.
// Associations whose citation carries no managed identifier are skipped. A
// failed association does not stop the others; its message is returned.
func (l *Linker) LinkAll(ctx context.Context, itemID string, r *models.Record, rootID string) []string {
	var warnings []string
	resourceType := r.ResourceType()
	for _, a := range r.Associations() {
		if a.AssociationType == "" {
			continue
		}
		ids := identifier.FromCitation(a.Cite())
		if len(ids) == 0 {
			continue
		}
		if _, err := l.Link(ctx, a.AssociationType, resourceType, itemID, ids, rootID); err != nil {
			msg := fmt.Sprintf("Unable to create %s relationship between %s and %s", a.AssociationType, itemID, keys(ids))
			l.logger.Error(msg, slog.String("error", err.Error()))
			warnings = append(warnings, msg)
		}
	}
	return warnings
}

// Link finds the counterpart identified by candidates inside rootID and links
// itemID to it. A missing counterpart or an association type without a link
// is a no-op and returns a nil link.
func (l *Linker) Link(ctx context.Context, associationType, resourceType, itemID string, candidates []models.Identifier, rootID string) (*catalog.Link, error) {
	search := &models.Item{Identifiers: candidates}
	if id, ok := identifier.CatalogIDOf(candidates); ok {
		search.ID = id
	}
	found, err := l.locator.Locate(ctx, search, rootID)
	if err != nil {
		return nil, fmt.Errorf("linker: locate counterpart: %w", err)
	}
	if len(found) == 0 {
		l.logger.Info("related item not found",
			slog.String("association", associationType),
			slog.String("identifiers", keys(candidates)))
		return nil, nil
	}

	name, reverse, ok := Resolve(associationType, resourceType)
	if !ok {
		l.logger.Debug("association has no link type", slog.String("association", associationType))
		return nil, nil
	}
	return l.LinkItems(ctx, name, itemID, found[0].ID, reverse)
}

// LinkItems creates a link of the named type between two known items unless
// an equivalent link already exists.
func (l *Linker) LinkItems(ctx context.Context, typeName, itemID, relatedID string, reverse bool) (*catalog.Link, error) {
	vocab, err := l.vocabulary(ctx)
	if err != nil {
		return nil, err
	}
	typeID, ok := vocab[typeName]
	if !ok {
		return nil, apperr.WithMessages(apperr.ErrLink, fmt.Sprintf("link type %s is not in the catalog vocabulary", typeName))
	}

	exists, err := l.hasLink(ctx, itemID, relatedID, typeID, reverse)
	if err != nil {
		return nil, err
	}
	if exists {
		l.logger.Debug("link exists",
			slog.String("type", typeName),
			slog.String("item_id", itemID),
			slog.String("related_id", relatedID))
		return nil, nil
	}

	link, err := l.catalog.CreateLink(ctx, catalog.Link{
		ItemID:        itemID,
		RelatedItemID: relatedID,
		TypeID:        typeID,
		Reverse:       reverse,
	})
	if err != nil {
		return nil, fmt.Errorf("linker: create %s link: %w: %w", typeName, apperr.ErrLink, err)
	}
	l.logger.Info("link created",
		slog.String("type", typeName),
		slog.String("item_id", itemID),
		slog.String("related_id", relatedID))
	if l.onLink != nil {
		l.onLink(*link)
	}
	return link, nil
}

// hasLink reports whether the directed link already exists. A reversed link
// is stored on the related item.
func (l *Linker) hasLink(ctx context.Context, itemID, relatedID, typeID string, reverse bool) (bool, error) {
	from, to := itemID, relatedID
	if reverse {
		from, to = relatedID, itemID
	}
	links, err := l.catalog.ItemLinks(ctx, from)
	if err != nil {
		return false, fmt.Errorf("linker: list links of %s: %w", from, err)
	}
	for _, ln := range links {
		if ln.TypeID == typeID && ln.ItemID == from && ln.RelatedItemID == to {
			return true, nil
		}
	}
	return false, nil
}

func (l *Linker) vocabulary(ctx context.Context) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.vocab != nil {
		return l.vocab, nil
	}
	types, err := l.catalog.LinkTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("linker: load link types: %w", err)
	}
	vocab := make(map[string]string, len(types))
	for _, t := range types {
		vocab[t.Name] = t.ID
	}
	l.vocab = vocab
	return vocab, nil
}

func keys(ids []models.Identifier) string {
	s := "["
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += id.Scheme + ":" + id.Key
	}
	return s + "]"
}
