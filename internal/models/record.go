package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Association types a record can declare for a related resource.
const (
	AssocParentProject  = "parentProject"
	AssocSubProject     = "subProject"
	AssocProduct        = "product"
	AssocAlternate      = "alternate"
	AssocCrossReference = "crossReference"
)

// CitationIdentifier is a namespaced identifier inside a citation.
type CitationIdentifier struct {
	Identifier string `json:"identifier"`
	Namespace  string `json:"namespace,omitempty"`
}

// Citation is the subset of a record citation the publisher reads.
type Citation struct {
	Title      string               `json:"title,omitempty"`
	Identifier []CitationIdentifier `json:"identifier,omitempty"`
}

// Association declares a relationship from a record to another resource.
type Association struct {
	AssociationType  string    `json:"associationType,omitempty"`
	MetadataCitation *Citation `json:"metadataCitation,omitempty"`
	ResourceCitation *Citation `json:"resourceCitation,omitempty"`
	Citation         *Citation `json:"citation,omitempty"`
}

// Cite returns the citation of the referenced resource, preferring the
// metadata citation over the resource citation.
func (a Association) Cite() *Citation {
	switch {
	case a.MetadataCitation != nil:
		return a.MetadataCitation
	case a.ResourceCitation != nil:
		return a.ResourceCitation
	default:
		return a.Citation
	}
}

type recordView struct {
	Schema struct {
		Name string `json:"name"`
	} `json:"schema"`
	Metadata struct {
		ResourceInfo struct {
			ResourceType []struct {
				Type string `json:"type"`
			} `json:"resourceType"`
			Citation *Citation `json:"citation"`
			Extent   []struct {
				GeographicExtent []struct {
					GeographicElement []json.RawMessage `json:"geographicElement"`
				} `json:"geographicExtent"`
			} `json:"extent"`
		} `json:"resourceInfo"`
		AssociatedResource []Association `json:"associatedResource"`
	} `json:"metadata"`
}

// Record is an immutable metadata record in its native (mdJSON) form with a
// typed view over the members the publisher needs.
type Record struct {
	raw  json.RawMessage
	view recordView
}

// ParseRecord decodes an mdJSON document.
func ParseRecord(data []byte) (*Record, error) {
	r := &Record{}
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errors.New("models: empty record")
	}
	var v recordView
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	r.raw = append(json.RawMessage(nil), trimmed...)
	r.view = v
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.raw == nil {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// Raw returns the record document as received.
func (r *Record) Raw() json.RawMessage { return r.raw }

// SchemaName returns the declared schema name (e.g. "mdJson").
func (r *Record) SchemaName() string { return r.view.Schema.Name }

// Title returns the resource citation title, or "" when absent.
func (r *Record) Title() string {
	if c := r.view.Metadata.ResourceInfo.Citation; c != nil {
		return c.Title
	}
	return ""
}

// ResourceType returns the first project/product resource type, defaulting to product.
func (r *Record) ResourceType() string {
	for _, rt := range r.view.Metadata.ResourceInfo.ResourceType {
		if rt.Type == ResourceProject || rt.Type == ResourceProduct {
			return rt.Type
		}
	}
	return ResourceProduct
}

// Associations returns the record's associated-resource declarations.
func (r *Record) Associations() []Association {
	return r.view.Metadata.AssociatedResource
}

// AssociationsOfType returns the declarations with the given association type.
func (r *Record) AssociationsOfType(assocType string) []Association {
	var out []Association
	for _, a := range r.view.Metadata.AssociatedResource {
		if a.AssociationType == assocType {
			out = append(out, a)
		}
	}
	return out
}

// GeographicElements returns every geographic element of every extent in order.
func (r *Record) GeographicElements() []json.RawMessage {
	var out []json.RawMessage
	for _, e := range r.view.Metadata.ResourceInfo.Extent {
		for _, ge := range e.GeographicExtent {
			out = append(out, ge.GeographicElement...)
		}
	}
	return out
}
