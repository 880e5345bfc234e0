package models

import "encoding/json"

// GeoDocument is the map-rendering projection from GET /properties/geojson.
// It is consumed opaquely except for the per-feature property id, which the
// list filter needs to keep markers and rows consistent.
type GeoDocument struct {
	Type     string       `json:"type"`
	Features []GeoFeature `json:"features"`
}

type GeoFeature struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// PropertyID extracts the property identifier from the feature properties,
// or "" when the feature carries none.
func (f GeoFeature) PropertyID() string {
	if f.Properties == nil {
		return ""
	}
	if id, ok := f.Properties["id"].(string); ok {
		return id
	}
	return ""
}

// EmptyGeoDocument returns the zero feature collection used before the first
// load and after logout.
func EmptyGeoDocument() GeoDocument {
	return GeoDocument{Type: "FeatureCollection", Features: []GeoFeature{}}
}
