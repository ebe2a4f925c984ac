// Package extent reshapes GeoJSON geographic elements into catalog extent features.
package extent

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/mdpub/internal/models"
)

// FromRecord returns the catalog extent features for every geographic element
// of the record, in document order.
func FromRecord(r *models.Record) []json.RawMessage {
	if r == nil {
		return nil
	}
	var out []json.RawMessage
	for _, el := range r.GeographicElements() {
		out = append(out, Features(el)...)
	}
	return out
}

// Features converts a single geographic element. Bare geometries are wrapped
// in a feature, collections are flattened and a feature id becomes the
// feature's name property. Geometry collections are not supported by the
// catalog and are dropped.
func Features(element json.RawMessage) []json.RawMessage {
	var head struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(element, &head); err != nil {
		slog.Debug("skipping malformed geographic element", slog.String("error", err.Error()))
		return nil
	}

	var candidates []json.RawMessage
	switch head.Type {
	case "Feature":
		candidates = append(candidates, element)
	case "Point", "LineString", "Polygon":
		wrapped, err := json.Marshal(map[string]any{
			"type":       "Feature",
			"properties": map[string]any{},
			"geometry":   element,
		})
		if err != nil {
			return nil
		}
		candidates = append(candidates, wrapped)
	case "FeatureCollection":
		candidates = append(candidates, head.Features...)
	default:
		return nil
	}

	var out []json.RawMessage
	for _, c := range candidates {
		if f, ok := reshape(c); ok {
			out = append(out, f)
		}
	}
	return out
}

func reshape(feature json.RawMessage) (json.RawMessage, bool) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(feature, &members); err != nil {
		return nil, false
	}

	var geom struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(members["geometry"], &geom); err != nil || geom.Type == "" {
		return nil, false
	}
	if geom.Type == "GeometryCollection" {
		return nil, false
	}

	if id, ok := members["id"]; ok {
		props := map[string]json.RawMessage{}
		if raw, ok := members["properties"]; ok {
			_ = json.Unmarshal(raw, &props)
			if props == nil {
				props = map[string]json.RawMessage{}
			}
		}
		props["name"] = id
		encoded, err := json.Marshal(props)
		if err != nil {
			return nil, false
		}
		members["properties"] = encoded
		delete(members, "id")
	}

	out, err := json.Marshal(members)
	if err != nil {
		return nil, false
	}
	return out, true
}
