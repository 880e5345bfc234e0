package aggregate

import (
	"time"

	"sigap-dashboard/internal/models"
)

// Payments projects the confirmed payments visible in the detail snapshot
// into the current-month summary the KPI engine consumes. A payment counts
// when its date falls in the same calendar month as now; the last payment is
// the most recent one overall regardless of month.
func Payments(details map[string]models.PropertyDetail, now time.Time) models.PaymentsSummary {
	var summary models.PaymentsSummary

	for _, detail := range details {
		for _, charge := range detail.Charges {
			for i := range charge.Payments {
				payment := charge.Payments[i]
				if payment.PaidAt == nil || payment.PaidAt.IsZero() {
					continue
				}
				if sameMonth(payment.PaidAt.Time, now) {
					summary.MonthTotal += payment.Amount
					summary.MonthCount++
				}
				if summary.Last == nil || payment.PaidAt.Time.After(summary.Last.PaidAt.Time) {
					p := payment
					summary.Last = &p
				}
			}
		}
	}
	return summary
}

func sameMonth(t, now time.Time) bool {
	return t.Year() == now.Year() && t.Month() == now.Month()
}
