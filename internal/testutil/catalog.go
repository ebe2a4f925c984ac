package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/models"
)

// Catalog is an in-memory catalog.Catalog. It counts calls per operation and
// lets tests inject failures.
type Catalog struct {
	mu        sync.Mutex
	items     map[string]*models.Item
	order     []string
	links     []catalog.Link
	linkTypes []catalog.LinkType
	files     map[string][]byte
	seq       int
	calls     map[string]int

	// Deleted records every DeleteItems batch in call order.
	Deleted [][]string

	FailUpsert    error
	FailDelete    error
	FailLinkTypes error
	FailLink      error
}

var _ catalog.Catalog = (*Catalog)(nil)

// NewCatalog returns an empty catalog with the standard link-type vocabulary.
func NewCatalog() *Catalog {
	return &Catalog{
		items: make(map[string]*models.Item),
		files: make(map[string][]byte),
		calls: make(map[string]int),
		linkTypes: []catalog.LinkType{
			{ID: "lt-product", Name: "productOf"},
			{ID: "lt-subproject", Name: "subprojectOf"},
			{ID: "lt-alternate", Name: "alternate"},
			{ID: "lt-related", Name: "related"},
		},
	}
}

// Add stores item (assigning an id when empty) with its ancestor chain derived
// from its parent, and returns the id.
func (c *Catalog) Add(item models.Item) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(item)
}

// Folder adds an empty folder item under parentID.
func (c *Catalog) Folder(id, parentID string) string {
	return c.Add(models.Item{ID: id, ParentID: parentID, Title: id})
}

// Item returns a copy of the stored item.
func (c *Catalog) Item(id string) (models.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return models.Item{}, false
	}
	return clone(*it), true
}

// Links returns every stored link.
func (c *Catalog) Links() []catalog.Link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]catalog.Link(nil), c.links...)
}

// Calls returns how many times op (a method name) was called.
func (c *Catalog) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// SetFile attaches a file with content to an existing item.
func (c *Catalog) SetFile(itemID, name string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := c.items[itemID]
	url := fmt.Sprintf("mem://%s/%s", itemID, name)
	c.files[url] = content
	it.Files = append(it.WithoutFiles(name), models.File{Name: name, URL: url})
}

func (c *Catalog) put(item models.Item) string {
	if item.ID == "" {
		c.seq++
		item.ID = fmt.Sprintf("%024x", c.seq)
	}
	item.Ancestors = nil
	if p, ok := c.items[item.ParentID]; ok {
		item.Ancestors = append(append([]string(nil), p.Ancestors...), p.ID)
	}
	if _, exists := c.items[item.ID]; !exists {
		c.order = append(c.order, item.ID)
	}
	stored := clone(item)
	c.items[item.ID] = &stored
	return item.ID
}

func (c *Catalog) count(op string) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

func notFound(endpoint string) error {
	return &catalog.APIError{StatusCode: http.StatusNotFound, Endpoint: endpoint, Message: "not found"}
}

func (c *Catalog) GetItem(_ context.Context, id, _ string) (*models.Item, error) {
	c.count("GetItem")
	it, ok := c.Item(id)
	if !ok {
		return nil, notFound("item " + id)
	}
	return &it, nil
}

func (c *Catalog) FindItems(_ context.Context, q catalog.Query) (*catalog.SearchResult, error) {
	c.count("FindItems")
	c.mu.Lock()
	defer c.mu.Unlock()
	res := &catalog.SearchResult{}
	for _, id := range c.order {
		it := c.items[id]
		if q.Ancestors != "" && !it.HasAncestor(q.Ancestors) {
			continue
		}
		if q.ID != "" && it.ID != q.ID {
			continue
		}
		if q.Identifier != nil && !hasIdentifier(it, *q.Identifier) {
			continue
		}
		if q.Text != "" && !strings.Contains(strings.ToLower(it.Title), strings.ToLower(q.Text)) {
			continue
		}
		res.Items = append(res.Items, clone(*it))
	}
	res.Total = len(res.Items)
	return res, nil
}

func hasIdentifier(it *models.Item, want models.Identifier) bool {
	for _, id := range it.Identifiers {
		if id.Key == want.Key && (id.Type == want.Type || id.Scheme == want.Type) {
			return true
		}
	}
	return false
}

func (c *Catalog) LinkTypes(context.Context) ([]catalog.LinkType, error) {
	c.count("LinkTypes")
	if c.FailLinkTypes != nil {
		return nil, c.FailLinkTypes
	}
	return append([]catalog.LinkType(nil), c.linkTypes...), nil
}

func (c *Catalog) ItemLinks(_ context.Context, itemID string) ([]catalog.Link, error) {
	c.count("ItemLinks")
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []catalog.Link
	for _, l := range c.links {
		if l.ItemID == itemID || l.RelatedItemID == itemID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *Catalog) CreateLink(_ context.Context, link catalog.Link) (*catalog.Link, error) {
	c.count("CreateLink")
	if c.FailLink != nil {
		return nil, c.FailLink
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if link.Reverse {
		link.ItemID, link.RelatedItemID = link.RelatedItemID, link.ItemID
		link.Reverse = false
	}
	link.ID = fmt.Sprintf("link-%d", len(c.links)+1)
	c.links = append(c.links, link)
	return &link, nil
}

func (c *Catalog) UpsertItem(_ context.Context, item *models.Item, files []catalog.Upload) (*models.Item, error) {
	c.count("UpsertItem")
	if c.FailUpsert != nil {
		return nil, c.FailUpsert
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if item.ID != "" {
		if _, ok := c.items[item.ID]; !ok {
			return nil, notFound("upsert " + item.ID)
		}
	}
	working := clone(*item)
	id := c.put(working)
	stored := c.items[id]
	for _, f := range files {
		url := fmt.Sprintf("mem://%s/%s", id, f.Name)
		c.files[url] = append([]byte(nil), f.Content...)
		stored.Files = append(stored.WithoutFiles(f.Name), models.File{Name: f.Name, ContentType: f.ContentType, URL: url})
	}
	out := clone(*stored)
	return &out, nil
}

func (c *Catalog) ChildIDs(_ context.Context, id string) ([]string, error) {
	c.count("ChildIDs")
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, cid := range c.order {
		if c.items[cid].ParentID == id {
			out = append(out, cid)
		}
	}
	return out, nil
}

func (c *Catalog) DeleteItems(_ context.Context, ids []string) error {
	c.count("DeleteItems")
	if c.FailDelete != nil {
		return c.FailDelete
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deleted = append(c.Deleted, append([]string(nil), ids...))
	for _, id := range ids {
		delete(c.items, id)
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := c.items[id]; ok {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return nil
}

func (c *Catalog) Download(_ context.Context, file models.File) ([]byte, error) {
	c.count("Download")
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.files[file.URL]
	if !ok {
		return nil, notFound("download " + file.Name)
	}
	return append([]byte(nil), data...), nil
}

func clone(it models.Item) models.Item {
	data, err := json.Marshal(it)
	if err != nil {
		panic(err)
	}
	var out models.Item
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}
