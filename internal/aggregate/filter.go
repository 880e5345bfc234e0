package aggregate

import (
	"strings"

	"sigap-dashboard/internal/models"
)

// FilterAll is the wildcard value for the state and type filters.
const FilterAll = "todos"

// Filter narrows the rendered portfolio. Zero value matches everything.
type Filter struct {
	State  string
	Type   string
	Comuna string
}

// Apply keeps the summaries matching every set criterion: exact state and
// type (case-insensitive), commune by substring.
func (f Filter) Apply(props []models.PropertySummary) []models.PropertySummary {
	out := make([]models.PropertySummary, 0, len(props))
	for _, p := range props {
		if !f.matches(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f Filter) matches(p models.PropertySummary) bool {
	if f.State != "" && f.State != FilterAll && !strings.EqualFold(p.State, f.State) {
		return false
	}
	if f.Type != "" && f.Type != FilterAll && !strings.EqualFold(p.Type, f.Type) {
		return false
	}
	if f.Comuna != "" && !strings.Contains(strings.ToLower(p.Comuna), strings.ToLower(f.Comuna)) {
		return false
	}
	return true
}

// ApplyGeo keeps only the features whose property id survives the filter, so
// map markers and list rows stay consistent.
func (f Filter) ApplyGeo(doc models.GeoDocument, filtered []models.PropertySummary) models.GeoDocument {
	allowed := make(map[string]bool, len(filtered))
	for _, p := range filtered {
		allowed[p.ID] = true
	}

	next := models.GeoDocument{Type: doc.Type, Features: []models.GeoFeature{}}
	for _, feature := range doc.Features {
		if allowed[feature.PropertyID()] {
			next.Features = append(next.Features, feature)
		}
	}
	return next
}
