// Package alerts derives the five-counter operational tally from the property
// list and whatever details are currently cached. The computation is pure:
// identical inputs always produce the identical tally, and it is recomputed
// from scratch on every change rather than maintained incrementally.
package alerts

import (
	"strings"
	"time"

	"sigap-dashboard/internal/models"
)

// Clock returns the current instant. Injected so the engine is testable with
// fixed clocks instead of wall-clock time.
type Clock func() time.Time

type Engine struct {
	clock      Clock
	loc        *time.Location
	windowDays int
}

// NewEngine builds an engine evaluating due dates in the named time zone.
// Due-date comparisons are calendar-sensitive, so the zone matters regardless
// of where the process runs; a missing tz database degrades to local time.
func NewEngine(timeZone string, windowDays int, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		loc = time.Local
	}
	return &Engine{clock: clock, loc: loc, windowDays: windowDays}
}

// Compute tallies the portfolio against the given detail snapshot.
//
// A property whose detail is still absent contributes 1 to incomplete-docs
// (absence means zero known documents) and nothing to the other counters
// until its detail resolves; counting contract alerts from partial
// information would flicker and silently self-correct after prefetch.
func (e *Engine) Compute(props []models.PropertySummary, details map[string]models.PropertyDetail) (tally models.AlertTally) {
	defer func() {
		if r := recover(); r != nil {
			tally = models.AlertTally{}
		}
	}()

	now := e.clock().In(e.loc)
	horizon := now.AddDate(0, 0, e.windowDays)

	for _, p := range props {
		detail, ok := details[p.ID]
		if !ok {
			tally.IncompleteDocs++
			continue
		}

		contract := detail.CurrentContract

		if contract == nil && strings.ToLower(p.State) == models.StateDisponible {
			tally.NoContract++
		}

		if contract != nil && contract.EndDate != nil && !contract.EndDate.IsZero() {
			end := e.midnight(contract.EndDate.Time)
			if end.Before(now) {
				tally.Expired++
			} else if !end.After(horizon) {
				tally.ExpiringSoon++
			}
		}

		if len(detail.Documents) == 0 {
			tally.IncompleteDocs++
		}

		for _, charge := range detail.Charges {
			if e.chargeOverdue(charge, now) {
				// One qualifying charge is enough per property.
				tally.OverdueCharges++
				break
			}
		}
	}

	return tally
}

// chargeOverdue reports whether one charge counts toward the overdue tally:
// state "atraso", or "pendiente" with a due date strictly in the past.
func (e *Engine) chargeOverdue(charge models.Charge, now time.Time) bool {
	state := strings.ToLower(charge.State)
	if state == models.ChargeAtraso {
		return true
	}
	if state != models.ChargePendiente {
		return false
	}
	if charge.DueDate == nil || charge.DueDate.IsZero() {
		return false
	}
	return e.midnight(charge.DueDate.Time).Before(now)
}

// midnight re-anchors a parsed calendar date at 00:00 in the engine's zone.
func (e *Engine) midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

// Now returns the current instant in the engine's zone, for UI clock labels.
func (e *Engine) Now() time.Time {
	return e.clock().In(e.loc)
}
