// Package aggregate holds the pure projections over the property list that
// feed the dashboard cards: grouped counts, value statistics, the publication
// time series and the financial KPIs.
package aggregate

import (
	"math"
	"sort"
	"strings"

	"sigap-dashboard/internal/models"
)

// noDataBucket collects properties whose grouping value is empty or blank.
const noDataBucket = "(sin dato)"

// Fixed cash-flow policy rates. These are business policy, not configuration:
// the agency books 12% of income as operating expenses and an 8% commission.
const (
	expenseRate    = 0.12
	commissionRate = 0.08
)

// seriesWindow caps the publication series at the most recent buckets.
const seriesWindow = 6

// GroupCount partitions values into buckets, preserving case, and returns
// them sorted by descending count. Ties keep first-seen order so the output
// is deterministic for a given input list.
func GroupCount(values []string) []models.GroupBucket {
	counts := map[string]int{}
	var order []string
	for _, v := range values {
		key := trimOrNoData(v)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	buckets := make([]models.GroupBucket, 0, len(order))
	for _, key := range order {
		buckets = append(buckets, models.GroupBucket{Key: key, Count: counts[key]})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	return buckets
}

// ByStatus groups the portfolio by current state.
func ByStatus(props []models.PropertySummary) []models.GroupBucket {
	return GroupCount(collect(props, func(p models.PropertySummary) string { return p.State }))
}

// ByType groups the portfolio by property type.
func ByType(props []models.PropertySummary) []models.GroupBucket {
	return GroupCount(collect(props, func(p models.PropertySummary) string { return p.Type }))
}

// ByComuna groups the portfolio by commune.
func ByComuna(props []models.PropertySummary) []models.GroupBucket {
	return GroupCount(collect(props, func(p models.PropertySummary) string { return p.Comuna }))
}

// Values summarizes rent and sale figures. Means are restricted to non-null
// entries; the mean of an empty set is 0, never NaN.
func Values(props []models.PropertySummary) models.ValueStats {
	var rents, sales []float64
	for _, p := range props {
		if p.RentValue != nil {
			rents = append(rents, *p.RentValue)
		}
		if p.SaleValue != nil {
			sales = append(sales, *p.SaleValue)
		}
	}
	return models.ValueStats{
		Total:    len(props),
		WithRent: len(rents),
		WithSale: len(sales),
		AvgRent:  mean(rents),
		AvgSale:  mean(sales),
	}
}

// PublishedSeries buckets properties by publication year-month, drops entries
// without a parseable date, sorts chronologically and keeps the last buckets.
func PublishedSeries(props []models.PropertySummary) []models.SeriesPoint {
	counts := map[string]int{}
	for _, p := range props {
		if p.PublishedAt == nil || p.PublishedAt.IsZero() {
			continue
		}
		counts[p.PublishedAt.YearMonth()]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > seriesWindow {
		keys = keys[len(keys)-seriesWindow:]
	}

	series := make([]models.SeriesPoint, 0, len(keys))
	for _, k := range keys {
		series = append(series, models.SeriesPoint{Month: k, Count: counts[k]})
	}
	return series
}

// KPIs derives the monthly cash-flow figures. Confirmed payments for the
// current month take precedence; an empty payments summary falls back to the
// sum of listed rents.
func KPIs(props []models.PropertySummary, payments models.PaymentsSummary) models.FinancialKPIs {
	income := payments.MonthTotal
	if income == 0 {
		for _, p := range props {
			if p.RentValue != nil {
				income += *p.RentValue
			}
		}
	}

	expenses := math.Round(income * expenseRate)
	commission := math.Round(income * commissionRate)
	return models.FinancialKPIs{
		Income:     income,
		PaidIncome: payments.MonthTotal,
		Expenses:   expenses,
		Commission: commission,
		NetFlow:    income - expenses - commission,
	}
}

func collect(props []models.PropertySummary, pick func(models.PropertySummary) string) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = pick(p)
	}
	return out
}

func trimOrNoData(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return noDataBucket
	}
	return trimmed
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
