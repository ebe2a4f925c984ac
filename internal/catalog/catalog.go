// Package catalog defines the contract between the publishing pipeline and a
// hierarchical item catalog.
package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/models"
)

// ItemFields is the field selection used when a full working copy of an item is needed.
const ItemFields = "id,parentId,title,identifiers,facets,files,tags,extents,provenance,dates,contacts,ancestors,browseCategories"

// Catalog is the set of operations the publisher needs from a catalog backend.
// Implementations must map missing items to apperr.ErrNotFound and access
// denials to apperr.ErrForbidden.
type Catalog interface {
	// GetItem fetches an item; fields is a comma separated selection ("" for the backend default).
	GetItem(ctx context.Context, id, fields string) (*models.Item, error)
	// FindItems searches for items.
	FindItems(ctx context.Context, q Query) (*SearchResult, error)
	// LinkTypes lists the link-type vocabulary.
	LinkTypes(ctx context.Context) ([]LinkType, error)
	// ItemLinks lists the links stored on an item.
	ItemLinks(ctx context.Context, itemID string) ([]Link, error)
	// CreateLink stores a new link.
	CreateLink(ctx context.Context, link Link) (*Link, error)
	// UpsertItem creates (no id) or updates (id) the item and uploads the given files with it.
	UpsertItem(ctx context.Context, item *models.Item, files []Upload) (*models.Item, error)
	// ChildIDs lists the ids of the direct children of an item.
	ChildIDs(ctx context.Context, id string) ([]string, error)
	// DeleteItems removes the given items in one batch.
	DeleteItems(ctx context.Context, ids []string) error
	// Download fetches the content of an attached file.
	Download(ctx context.Context, file models.File) ([]byte, error)
}

// Query is an item search scoped to a subtree. At most one of ID and
// Identifier is set.
type Query struct {
	Ancestors  string
	ID         string
	Identifier *models.Identifier
	// Text is a free-text query over titles and bodies.
	Text string
}

// SearchResult is a page of matching items.
type SearchResult struct {
	Total int           `json:"total"`
	Items []models.Item `json:"items"`
}

// LinkType is an entry of the link-type vocabulary.
type LinkType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Link is a directed typed edge between two items. Reverse asks the catalog to
// store the edge from RelatedItemID to ItemID.
type Link struct {
	ID            string `json:"id,omitempty"`
	ItemID        string `json:"itemId"`
	RelatedItemID string `json:"relatedItemId"`
	TypeID        string `json:"itemLinkTypeId"`
	Reverse       bool   `json:"reverse,omitempty"`
}

// Upload is a named file part sent along with an item upsert.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// APIError is a non-success response from a remote catalog.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog: %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Is maps HTTP statuses onto the shared error kinds.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == apperr.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == apperr.ErrForbidden
	}
	return false
}

type tokenKey struct{}

// WithToken returns a context carrying the caller's bearer token for the catalog.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx.
func TokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}
