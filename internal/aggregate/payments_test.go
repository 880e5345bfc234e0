package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigap-dashboard/internal/models"
)

func paidPtr(year int, month time.Month, day int) *models.Date {
	d := models.NewDate(year, month, day)
	return &d
}

func TestPayments_SumsCurrentMonthOnly(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	details := map[string]models.PropertyDetail{
		"p1": {ID: "p1", Charges: []models.Charge{
			{ID: "c1", State: models.ChargePagada, Payments: []models.Payment{
				{ID: "pay1", Amount: 500000, PaidAt: paidPtr(2024, 6, 3)},
				{ID: "pay2", Amount: 450000, PaidAt: paidPtr(2024, 5, 28)},
			}},
		}},
		"p2": {ID: "p2", Charges: []models.Charge{
			{ID: "c2", State: models.ChargePagada, Payments: []models.Payment{
				{ID: "pay3", Amount: 300000, PaidAt: paidPtr(2024, 6, 10)},
			}},
		}},
	}

	summary := Payments(details, now)

	assert.Equal(t, 800000.0, summary.MonthTotal)
	assert.Equal(t, 2, summary.MonthCount)
	require.NotNil(t, summary.Last)
	assert.Equal(t, "pay3", summary.Last.ID, "latest payment overall, not per property")
}

func TestPayments_EmptySnapshotAndUndatedPayments(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, models.PaymentsSummary{}, Payments(nil, now))

	details := map[string]models.PropertyDetail{
		"p1": {ID: "p1", Charges: []models.Charge{
			{ID: "c1", Payments: []models.Payment{{ID: "pay1", Amount: 100000}}},
		}},
	}
	summary := Payments(details, now)
	assert.Equal(t, 0.0, summary.MonthTotal, "undated payments are skipped")
	assert.Nil(t, summary.Last)
}
