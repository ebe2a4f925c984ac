package localcatalog

import (
	"encoding/json"
	"strings"

	"github.com/starford/mdpub/internal/models"
)

// searchBody is the free text of an item besides its title: summary, body
// and tag names.
func searchBody(item *models.Item) string {
	var parts []string
	for _, key := range []string{"summary", "body"} {
		raw, ok := item.Extra[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			parts = append(parts, s)
		}
	}
	for _, t := range item.Tags {
		parts = append(parts, t.Name)
	}
	return strings.Join(parts, "\n")
}
