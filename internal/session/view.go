package session

import (
	"time"

	"sigap-dashboard/internal/aggregate"
	"sigap-dashboard/internal/models"
)

// DashboardView is everything one dashboard render needs, computed in a
// single pass over a consistent copy of the session state. Aggregations run
// over the filtered list, so the cards always describe what the user sees.
type DashboardView struct {
	Properties  []models.PropertySummary `json:"properties"`
	Geo         models.GeoDocument       `json:"geo"`
	ByStatus    []models.GroupBucket     `json:"byStatus"`
	ByType      []models.GroupBucket     `json:"byType"`
	ByComuna    []models.GroupBucket     `json:"byComuna"`
	Values      models.ValueStats        `json:"values"`
	Series      []models.SeriesPoint     `json:"series"`
	KPIs        models.FinancialKPIs     `json:"kpis"`
	Alerts      models.AlertTally        `json:"alerts"`
	Prefetching bool                     `json:"prefetching"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Dashboard builds the view for one filter. The alert tally is portfolio-wide
// on purpose: filtering the list must not hide operational risk.
func (s *Session) Dashboard(filter aggregate.Filter) DashboardView {
	s.mu.RLock()
	props := append([]models.PropertySummary(nil), s.props...)
	geo := s.geo
	tally := s.tally
	payments := s.payments
	s.mu.RUnlock()

	filtered := filter.Apply(props)

	// The payments summary is intentionally portfolio-wide even though the
	// rent fallback runs over the filtered list: confirmed income is a fact
	// about the whole portfolio, not the current filter.
	kpis := aggregate.KPIs(filtered, payments)

	return DashboardView{
		Properties:  filtered,
		Geo:         filter.ApplyGeo(geo, filtered),
		ByStatus:    aggregate.ByStatus(filtered),
		ByType:      aggregate.ByType(filtered),
		ByComuna:    aggregate.ByComuna(filtered),
		Values:      aggregate.Values(filtered),
		Series:      aggregate.PublishedSeries(filtered),
		KPIs:        kpis,
		Alerts:      tally,
		Prefetching: s.Prefetching(),
		GeneratedAt: s.engine.Now(),
	}
}
