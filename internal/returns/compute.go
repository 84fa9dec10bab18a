// Package returns aggregates hourly funding-rate differentials into
// multi-horizon return and annualized ROI metrics, one row per
// (trading pair, calendar day).
package returns

import (
	"time"

	"funding-arb-lab/internal/domain"
)

const daysPerYear = 365.0

// ComputeRow builds a pair's metric row for one day from its observation
// history. history must hold every observation with timestamp before
// date.End(), sorted by timestamp ASC; later observations are ignored.
//
// Returns nil when the pair has zero history at or before date: no row
// is emitted, never a zero-filled one.
//
// Window rule per horizon h: sum all non-NULL diffs stamped within the
// trailing h calendar days ending at date. NULL observations contribute
// nothing (skip, not error); a window with zero non-NULL observations
// yields NULL return and ROI for that horizon.
func ComputeRow(pair string, date domain.Date, history []*domain.DifferentialObservation) *domain.ReturnMetricRow {
	end := date.End()

	// Trim anything stamped after the row's day.
	upTo := history
	for len(upTo) > 0 && !upTo[len(upTo)-1].Timestamp.Before(end) {
		upTo = upTo[:len(upTo)-1]
	}
	if len(upTo) == 0 {
		return nil
	}

	row := &domain.ReturnMetricRow{TradingPair: pair, Date: date}
	firstDay := domain.DateOf(upTo[0].Timestamp)

	for _, h := range domain.Horizons {
		var start time.Time
		if h == domain.HorizonAll {
			start = upTo[0].Timestamp
		} else {
			start = date.AddDays(-h.Days() + 1).Time()
		}

		ret, ok := windowSum(upTo, start, end)
		if !ok {
			continue // both fields stay NULL
		}

		roi := annualize(ret, h, firstDay, date)
		row.SetHorizon(h, &ret, &roi)
	}
	return row
}

// windowSum sums non-NULL diffs with timestamp in [start, end).
// ok is false when the window holds zero non-NULL observations.
func windowSum(obs []*domain.DifferentialObservation, start, end time.Time) (sum float64, ok bool) {
	for _, o := range obs {
		if o.Timestamp.Before(start) || !o.Timestamp.Before(end) || o.RateDiff == nil {
			continue
		}
		sum += *o.RateDiff
		ok = true
	}
	return sum, ok
}

// annualize scales a windowed return by 365 over the window length.
// Fixed horizons use their nominal day count; the all-time horizon uses
// the actual days elapsed since the pair's first observation, floored at
// one day so a pair observed only on `date` still annualizes.
func annualize(ret float64, h domain.Horizon, firstDay, date domain.Date) float64 {
	days := h.Days()
	if h == domain.HorizonAll {
		days = date.DaysSince(firstDay)
		if days < 1 {
			days = 1
		}
	}
	return ret * daysPerYear / float64(days)
}
