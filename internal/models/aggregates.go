package models

// GroupBucket is one value bucket of a group-by-count projection.
type GroupBucket struct {
	Key   string `json:"key"`
	Count int    `json:"value"`
}

// ValueStats summarizes rent and sale values across the portfolio. Means are
// taken over non-null entries only; the mean of an empty set is 0.
type ValueStats struct {
	Total    int     `json:"total"`
	WithRent int     `json:"withRent"`
	WithSale int     `json:"withSale"`
	AvgRent  float64 `json:"avgRent"`
	AvgSale  float64 `json:"avgSale"`
}

// SeriesPoint is one year-month bucket of the publication time series.
type SeriesPoint struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// FinancialKPIs holds the derived monthly cash-flow figures. Expense and
// commission rates are policy constants, not configuration.
type FinancialKPIs struct {
	Income     float64 `json:"ingresos"`
	PaidIncome float64 `json:"ingresos_pagados"`
	Expenses   float64 `json:"gastos"`
	Commission float64 `json:"comision"`
	NetFlow    float64 `json:"flujo"`
}
