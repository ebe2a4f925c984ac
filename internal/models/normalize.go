package models

import (
	"strings"
	"time"
)

const catalogDateLayout = "2006-01-02 15:04:05"

var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05Z0700",
}

// Normalize fixes up a translated item so the catalog accepts it: contacts get
// a default type, identifiers are back-filled and ISO timestamps are rewritten
// in the catalog's date layout.
func Normalize(it *Item) *Item {
	if it == nil {
		return nil
	}
	for i := range it.Contacts {
		if it.Contacts[i].ContactType == "" {
			it.Contacts[i].ContactType = "person"
		}
	}
	for i := range it.Identifiers {
		it.Identifiers[i].Backfill()
	}
	for i := range it.Dates {
		if !strings.Contains(it.Dates[i].DateString, "T") {
			continue
		}
		for _, layout := range isoDateLayouts {
			if t, err := time.Parse(layout, it.Dates[i].DateString); err == nil {
				it.Dates[i].DateString = t.Format(catalogDateLayout)
				break
			}
		}
	}
	return it
}
