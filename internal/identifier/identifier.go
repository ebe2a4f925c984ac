// Package identifier classifies and extracts the alternate identifiers used to
// match metadata records against catalog items.
package identifier

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/starford/mdpub/internal/models"
)

// catalogIDLength is the length of a canonical catalog id (a 12-byte object id in hex).
const catalogIDLength = 24

var managedSchemes = map[string]struct{}{
	models.SchemeCopyTracking: {},
	models.SchemeCatalog:      {},
	models.SchemeCatalogAlt:   {},
}

var managedPattern = regexp.MustCompile(`^(?:(lcc:.*)|(.*?uuid.*))$`)

// Pair is a managed (scheme, key) pair in the order it was first seen.
type Pair struct {
	Scheme string
	Key    string
}

// IsManaged reports whether schemeOrType names a managed identifier namespace.
func IsManaged(schemeOrType string) bool {
	if _, ok := managedSchemes[schemeOrType]; ok {
		return true
	}
	return managedPattern.MatchString(schemeOrType)
}

// IsCatalogNative reports whether scheme is searched by catalog id directly.
func IsCatalogNative(scheme string) bool {
	return scheme == models.SchemeCatalog || scheme == models.SchemeCatalogAlt
}

// ValidateCatalogID returns the canonical catalog id contained in raw.
// A raw value with request parameters appended ("id?x=y") yields the id part.
func ValidateCatalogID(raw string) (string, bool) {
	if isCatalogID(raw) {
		return raw, true
	}
	if head, _, found := strings.Cut(raw, "?"); found && isCatalogID(head) {
		return head, true
	}
	return "", false
}

func isCatalogID(s string) bool {
	if len(s) != catalogIDLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ExtractManaged returns the managed identifiers of item as ordered pairs.
// A repeated scheme keeps its first position and takes the last key.
func ExtractManaged(item *models.Item) []Pair {
	if item == nil {
		return nil
	}
	var pairs []Pair
	index := make(map[string]int)
	for _, id := range item.Identifiers {
		scheme := ""
		switch {
		case id.Scheme != "" && IsManaged(id.Scheme):
			scheme = id.Scheme
		case id.Type != "" && IsManaged(id.Type):
			scheme = id.Type
		default:
			continue
		}
		if i, ok := index[scheme]; ok {
			pairs[i].Key = id.Key
			continue
		}
		index[scheme] = len(pairs)
		pairs = append(pairs, Pair{Scheme: scheme, Key: id.Key})
	}
	out := pairs[:0]
	for _, p := range pairs {
		if p.Key != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromCitation returns the managed identifiers of a citation as catalog
// identifiers. Catalog-native keys are reduced to their canonical id; keys
// that do not contain one are dropped.
func FromCitation(c *models.Citation) []models.Identifier {
	if c == nil {
		return nil
	}
	var out []models.Identifier
	for _, ci := range c.Identifier {
		if ci.Namespace == "" || !IsManaged(ci.Namespace) {
			continue
		}
		key := ci.Identifier
		if IsCatalogNative(ci.Namespace) {
			id, ok := ValidateCatalogID(key)
			if !ok {
				continue
			}
			key = id
		}
		candidate := models.Identifier{Scheme: ci.Namespace, Type: ci.Namespace, Key: key}
		if !contains(out, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// CatalogIDOf returns the key of the first catalog-native identifier in ids.
func CatalogIDOf(ids []models.Identifier) (string, bool) {
	for _, id := range ids {
		if IsCatalogNative(id.Scheme) || IsCatalogNative(id.Type) {
			if id.Key != "" {
				return id.Key, true
			}
		}
	}
	return "", false
}

// Dedup returns ids with structural duplicates removed, keeping first occurrences.
func Dedup(ids []models.Identifier) []models.Identifier {
	out := make([]models.Identifier, 0, len(ids))
	for _, id := range ids {
		if !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []models.Identifier, id models.Identifier) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
