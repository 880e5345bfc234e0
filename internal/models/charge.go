package models

// Charge states. A charge counts as overdue when it is "atraso", or
// "pendiente" with a due date strictly in the past.
const (
	ChargePendiente = "pendiente"
	ChargePagada    = "pagada"
	ChargeAtraso    = "atraso"
)

// Charge is one billing period of a lease contract.
type Charge struct {
	ID       string    `json:"id"`
	Period   string    `json:"periodo"`
	State    string    `json:"estado"`
	DueDate  *Date     `json:"fecha_vencimiento,omitempty"`
	Amount   float64   `json:"monto_original,omitempty"`
	Payments []Payment `json:"pagos,omitempty"`
}

// Payment is one confirmed payment against a charge.
type Payment struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"monto_pagado"`
	PaidAt    *Date   `json:"fecha_pago,omitempty"`
	Method    string  `json:"medio_pago,omitempty"`
	Reference string  `json:"referencia,omitempty"`
}

// PaymentsSummary feeds the financial KPI fallback chain: confirmed income
// for the current month when present, otherwise the sum of listed rents.
type PaymentsSummary struct {
	MonthTotal float64  `json:"monthTotal"`
	MonthCount int      `json:"monthCount"`
	Last       *Payment `json:"last,omitempty"`
}
