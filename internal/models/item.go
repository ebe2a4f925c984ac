// Package models defines the catalog and metadata record types for mdpub.
package models

import (
	"encoding/json"
	"strings"
)

// Identifier schemes with a fixed meaning.
const (
	SchemeCatalog      = "gov.sciencebase.catalog"
	SchemeCatalogAlt   = "gov.sciencbase.catalog" // historical misspelling still present in records
	SchemeCopyTracking = "sciencebase-production-id"
	SchemeFallback     = "adiwg"
)

// Resource types a record can describe.
const (
	ResourceProject = "project"
	ResourceProduct = "product"
)

// Facet class names used by the catalog.
const (
	FacetClassProject = "gov.sciencebase.catalog.item.facet.ProjectFacet"
	FacetClassBudget  = "gov.sciencebase.catalog.item.facet.BudgetFacet"
)

// Identifier is a (scheme, type, key) triple attached to an item.
type Identifier struct {
	Scheme string `json:"scheme,omitempty"`
	Type   string `json:"type,omitempty"`
	Key    string `json:"key"`
}

// Backfill populates a missing scheme from the type (or the fallback scheme)
// and a missing type from the scheme.
func (id *Identifier) Backfill() {
	if id.Scheme == "" {
		if id.Type != "" {
			id.Scheme = id.Type
		} else {
			id.Scheme = SchemeFallback
		}
	}
	if id.Type == "" {
		id.Type = id.Scheme
	}
}

// Tag is a categorised keyword on an item.
type Tag struct {
	Type   string `json:"type,omitempty"`
	Scheme string `json:"scheme,omitempty"`
	Name   string `json:"name"`
}

// FacetKind is the closed set of facet classes the merge rules distinguish.
type FacetKind int

const (
	FacetOther FacetKind = iota
	FacetProject
	FacetBudget
)

// Facet is a class-discriminated structured sub-object of an item.
// Everything besides the class name is kept as raw members.
type Facet struct {
	ClassName string                     `json:"className"`
	Fields    map[string]json.RawMessage `json:"-"`
}

// Kind classifies the facet by its class name.
func (f Facet) Kind() FacetKind {
	switch {
	case f.ClassName == FacetClassProject || strings.HasSuffix(f.ClassName, ".ProjectFacet"):
		return FacetProject
	case f.ClassName == FacetClassBudget || strings.HasSuffix(f.ClassName, ".BudgetFacet"):
		return FacetBudget
	default:
		return FacetOther
	}
}

// Field returns a raw sub-field of the facet.
func (f Facet) Field(name string) (json.RawMessage, bool) {
	v, ok := f.Fields[name]
	return v, ok
}

// Clone returns a deep copy of the facet.
func (f Facet) Clone() Facet {
	return Facet{ClassName: f.ClassName, Fields: cloneRaw(f.Fields)}
}

func (f Facet) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(struct {
		ClassName string `json:"className"`
	}{f.ClassName})
	if err != nil {
		return nil, err
	}
	return joinExtra(known, f.Fields)
}

func (f *Facet) UnmarshalJSON(data []byte) error {
	var known struct {
		ClassName string `json:"className"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := splitExtra(data, "className")
	if err != nil {
		return err
	}
	f.ClassName = known.ClassName
	f.Fields = extra
	return nil
}

// File is a file attached to an item.
type File struct {
	Name        string                     `json:"name"`
	ContentType string                     `json:"contentType,omitempty"`
	URL         string                     `json:"url,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

type fileAlias File

func (f File) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(fileAlias(f))
	if err != nil {
		return nil, err
	}
	return joinExtra(known, f.Extra)
}

func (f *File) UnmarshalJSON(data []byte) error {
	var a fileAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, "name", "contentType", "url")
	if err != nil {
		return err
	}
	*f = File(a)
	f.Extra = extra
	return nil
}

// Contact is a party associated with an item.
type Contact struct {
	Name        string                     `json:"name,omitempty"`
	ContactType string                     `json:"contactType,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

type contactAlias Contact

func (c Contact) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(contactAlias(c))
	if err != nil {
		return nil, err
	}
	return joinExtra(known, c.Extra)
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	var a contactAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, "name", "contactType")
	if err != nil {
		return err
	}
	*c = Contact(a)
	c.Extra = extra
	return nil
}

// Date is a typed date string on an item.
type Date struct {
	Type       string                     `json:"type,omitempty"`
	DateString string                     `json:"dateString"`
	Label      string                     `json:"label,omitempty"`
	Extra      map[string]json.RawMessage `json:"-"`
}

type dateAlias Date

func (d Date) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(dateAlias(d))
	if err != nil {
		return nil, err
	}
	return joinExtra(known, d.Extra)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var a dateAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, "type", "dateString", "label")
	if err != nil {
		return err
	}
	*d = Date(a)
	d.Extra = extra
	return nil
}

// Provenance records when and by whom an item was created and updated.
type Provenance struct {
	DateCreated string                     `json:"dateCreated,omitempty"`
	LastUpdated string                     `json:"lastUpdated,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

type provenanceAlias Provenance

func (p Provenance) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(provenanceAlias(p))
	if err != nil {
		return nil, err
	}
	return joinExtra(known, p.Extra)
}

func (p *Provenance) UnmarshalJSON(data []byte) error {
	var a provenanceAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, "dateCreated", "lastUpdated")
	if err != nil {
		return err
	}
	*p = Provenance(a)
	p.Extra = extra
	return nil
}

// Item is a working copy of a catalog item. Members the service does not model
// are carried in Extra so a read-modify-write never drops them.
type Item struct {
	ID               string                     `json:"id,omitempty"`
	ParentID         string                     `json:"parentId,omitempty"`
	Title            string                     `json:"title,omitempty"`
	Identifiers      []Identifier               `json:"identifiers,omitempty"`
	Facets           []Facet                    `json:"facets,omitempty"`
	Tags             []Tag                      `json:"tags,omitempty"`
	Files            []File                     `json:"files,omitempty"`
	Ancestors        []string                   `json:"ancestors,omitempty"`
	BrowseCategories []string                   `json:"browseCategories,omitempty"`
	Extents          []json.RawMessage          `json:"extents,omitempty"`
	Contacts         []Contact                  `json:"contacts,omitempty"`
	Dates            []Date                     `json:"dates,omitempty"`
	Provenance       *Provenance                `json:"provenance,omitempty"`
	Extra            map[string]json.RawMessage `json:"-"`
}

var itemKnownKeys = []string{
	"id", "parentId", "title", "identifiers", "facets", "tags", "files", "ancestors",
	"browseCategories", "extents", "contacts", "dates", "provenance",
}

type itemAlias Item

func (it Item) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(itemAlias(it))
	if err != nil {
		return nil, err
	}
	return joinExtra(known, it.Extra)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var a itemAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, itemKnownKeys...)
	if err != nil {
		return err
	}
	*it = Item(a)
	it.Extra = extra
	return nil
}

// HasAncestor reports whether folderID is in the item's ancestor chain.
func (it *Item) HasAncestor(folderID string) bool {
	for _, a := range it.Ancestors {
		if a == folderID {
			return true
		}
	}
	return false
}

// HasBrowseCategory reports whether the item carries the given category.
func (it *Item) HasBrowseCategory(category string) bool {
	for _, c := range it.BrowseCategories {
		if c == category {
			return true
		}
	}
	return false
}

// AddBrowseCategories appends each category the item does not carry yet.
func (it *Item) AddBrowseCategories(categories ...string) {
	for _, c := range categories {
		if !it.HasBrowseCategory(c) {
			it.BrowseCategories = append(it.BrowseCategories, c)
		}
	}
}

// FileNamed returns the attached file with the given name.
func (it *Item) FileNamed(name string) (File, bool) {
	for _, f := range it.Files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// WithoutFiles returns the item's files minus any whose name is in names.
func (it *Item) WithoutFiles(names ...string) []File {
	out := make([]File, 0, len(it.Files))
	for _, f := range it.Files {
		drop := false
		for _, n := range names {
			if f.Name == n {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, f)
		}
	}
	return out
}
