// Package merge combines a freshly translated item with the catalog item it
// updates, keeping the fields curated in the catalog.
package merge

import (
	"encoding/json"

	"github.com/starford/mdpub/internal/identifier"
	"github.com/starford/mdpub/internal/models"
)

// Facet sub-fields owned by the incoming record. Every other sub-field of an
// existing project or budget facet is curated in the catalog.
const (
	FieldProjectStatus = "projectStatus"
	FieldAnnualBudgets = "annualBudgets"
)

// Options configures a merge.
type Options struct {
	// DropFiles names the existing attachments about to be replaced.
	DropFiles []string
}

// Items returns incoming merged onto existing. Neither argument is modified.
func Items(existing, incoming *models.Item, opts Options) *models.Item {
	merged := *incoming
	merged.ID = existing.ID
	merged.ParentID = existing.ParentID
	merged.Files = existing.WithoutFiles(opts.DropFiles...)
	merged.Facets = Facets(existing.Facets, incoming.Facets)
	merged.Tags = Tags(existing.Tags, incoming.Tags)
	merged.Identifiers = Identifiers(existing.Identifiers, incoming.Identifiers)
	return &merged
}

// Facets reconciles facets by class. Incoming project and budget facets only
// update the status and budget amounts of their existing counterparts; any
// other incoming class replaces the existing facet of that class. The result
// holds the incoming other-class facets, then the project facet, then the
// budget facet, then the existing facets no incoming facet touched.
func Facets(existing, incoming []models.Facet) []models.Facet {
	if len(incoming) == 0 {
		return cloneFacets(existing)
	}

	projectIdx, budgetIdx := -1, -1
	for i, f := range existing {
		switch f.Kind() {
		case models.FacetProject:
			if projectIdx < 0 {
				projectIdx = i
			}
		case models.FacetBudget:
			if budgetIdx < 0 {
				budgetIdx = i
			}
		}
	}

	var project, budget *models.Facet
	if projectIdx >= 0 {
		f := existing[projectIdx].Clone()
		project = &f
	}
	if budgetIdx >= 0 {
		f := existing[budgetIdx].Clone()
		budget = &f
	}

	touched := make(map[string]struct{}, len(incoming))
	var others []models.Facet
	for _, f := range incoming {
		touched[f.ClassName] = struct{}{}
		switch f.Kind() {
		case models.FacetProject:
			project = adopt(project, f, FieldProjectStatus)
		case models.FacetBudget:
			budget = adopt(budget, f, FieldAnnualBudgets)
		default:
			others = append(others, f.Clone())
		}
	}

	out := others
	if project != nil {
		out = append(out, *project)
	}
	if budget != nil {
		out = append(out, *budget)
	}
	for i, f := range existing {
		if i == projectIdx || i == budgetIdx {
			continue
		}
		if _, ok := touched[f.ClassName]; ok {
			continue
		}
		out = append(out, f.Clone())
	}
	return out
}

// adopt copies field from incoming onto current, or adopts incoming when there
// is no current facet of the class.
func adopt(current *models.Facet, incoming models.Facet, field string) *models.Facet {
	if current == nil {
		f := incoming.Clone()
		return &f
	}
	if v, ok := incoming.Field(field); ok {
		if current.Fields == nil {
			current.Fields = make(map[string]json.RawMessage)
		}
		current.Fields[field] = append(json.RawMessage(nil), v...)
	}
	return current
}

// Tags returns incoming followed by the existing tags it lacks.
func Tags(existing, incoming []models.Tag) []models.Tag {
	if len(incoming) == 0 {
		return append([]models.Tag(nil), existing...)
	}
	out := make([]models.Tag, 0, len(incoming)+len(existing))
	seen := make(map[models.Tag]struct{}, cap(out))
	for _, list := range [][]models.Tag{incoming, existing} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Identifiers returns incoming plus the existing copy-tracking identifiers,
// without structural duplicates. With no incoming identifiers the existing
// list is kept.
func Identifiers(existing, incoming []models.Identifier) []models.Identifier {
	if len(incoming) == 0 {
		return identifier.Dedup(existing)
	}
	combined := append([]models.Identifier(nil), incoming...)
	for _, id := range existing {
		if id.Type == models.SchemeCopyTracking {
			combined = append(combined, id)
		}
	}
	return identifier.Dedup(combined)
}

func cloneFacets(in []models.Facet) []models.Facet {
	if in == nil {
		return nil
	}
	out := make([]models.Facet, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}
