package extent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mdpub/internal/models"
)

func TestFeaturesWrapsBareGeometry(t *testing.T) {
	out := Features(json.RawMessage(`{"type":"Point","coordinates":[1,2]}`))
	require.Len(t, out, 1)
	assert.JSONEq(t, `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}`, string(out[0]))
}

func TestFeaturesMovesIDToName(t *testing.T) {
	out := Features(json.RawMessage(`{"type":"Feature","id":"Refuge","properties":{"acres":10},
		"geometry":{"type":"Polygon","coordinates":[]}}`))
	require.Len(t, out, 1)
	assert.JSONEq(t, `{"type":"Feature","properties":{"acres":10,"name":"Refuge"},
		"geometry":{"type":"Polygon","coordinates":[]}}`, string(out[0]))
}

func TestFeaturesFlattensCollectionAndDropsGeometryCollections(t *testing.T) {
	out := Features(json.RawMessage(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[0,0]}},
		{"type":"Feature","properties":{},"geometry":{"type":"GeometryCollection","geometries":[]}},
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[]}}]}`))
	require.Len(t, out, 2)
	assert.JSONEq(t, `{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[0,0]}}`, string(out[0]))
}

func TestFeaturesIgnoresUnsupported(t *testing.T) {
	assert.Empty(t, Features(json.RawMessage(`{"type":"MultiSurface"}`)))
	assert.Empty(t, Features(json.RawMessage(`not json`)))
}

func TestFromRecord(t *testing.T) {
	r, err := models.ParseRecord([]byte(`{"metadata":{"resourceInfo":{"extent":[
		{"geographicExtent":[{"geographicElement":[{"type":"Point","coordinates":[1,2]}]}]},
		{"geographicExtent":[{"geographicElement":[{"type":"Polygon","coordinates":[]}]}]}]}}}`))
	require.NoError(t, err)
	assert.Len(t, FromRecord(r), 2)
	assert.Nil(t, FromRecord(nil))
}
