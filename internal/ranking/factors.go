package ranking

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"funding-arb-lab/internal/domain"
)

// factorWindowDays is the trailing lookback, in calendar days, feeding
// the derived indicators.
const factorWindowDays = 30

// stabilityEpsilon guards the inverse-volatility factor against a flat
// series.
const stabilityEpsilon = 1e-9

// maxSharpe caps the sharpe factor so a zero-volatility series gets a
// finite extreme instead of skewing Z-score normalization to infinity.
const maxSharpe = 1000.0

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// isDerivedIndicator reports whether name is computed from a pair's
// trailing daily ROI series rather than read off a single metric row.
func isDerivedIndicator(name string) bool {
	switch name {
	case domain.IndicatorTrend30D, domain.IndicatorSharpe30D,
		domain.IndicatorWinRate30D, domain.IndicatorStability30D:
		return true
	}
	return false
}

// hasDerivedIndicator reports whether any of names needs trailing rows.
func hasDerivedIndicator(names []string) bool {
	for _, name := range names {
		if isDerivedIndicator(name) {
			return true
		}
	}
	return false
}

// dailySeries holds a pair's non-NULL daily ROI values inside the
// factor window, oldest first, with day offsets for regression.
type dailySeries struct {
	offsets []float64
	values  []float64
}

func buildDailySeries(rows []*domain.ReturnMetricRow, date domain.Date) dailySeries {
	var s dailySeries
	for _, row := range rows {
		if row.ROI1D == nil || row.Date.After(date) {
			continue
		}
		s.offsets = append(s.offsets, float64(date.DaysSince(row.Date)))
		s.values = append(s.values, *row.ROI1D)
	}
	// DaysSince counts back from the ranking date; regression wants
	// time running forward.
	for i := range s.offsets {
		s.offsets[i] = -s.offsets[i]
	}
	return s
}

// computeFactor evaluates one derived indicator over a pair's trailing
// series. ok is false when the series is too short for the factor; the
// pair is then excluded from the day's ranking, same as a NULL row field.
func computeFactor(name string, s dailySeries) (value float64, ok bool) {
	switch name {
	case domain.IndicatorWinRate30D:
		if len(s.values) == 0 {
			return 0, false
		}
		wins := 0
		for _, v := range s.values {
			if v >= 0 {
				wins++
			}
		}
		return float64(wins) / float64(len(s.values)), true

	case domain.IndicatorSharpe30D:
		if len(s.values) < 2 {
			return 0, false
		}
		mean, std := stat.MeanStdDev(s.values, nil)
		if std == 0 {
			// A flat series still carries a sign: a constant gain must
			// outrank noise, a constant loss must rank below it.
			switch {
			case mean > 0:
				return maxSharpe, true
			case mean < 0:
				return -maxSharpe, true
			}
			return 0, true
		}
		return clamp(mean/std*math.Sqrt(365), -maxSharpe, maxSharpe), true

	case domain.IndicatorStability30D:
		if len(s.values) < 2 {
			return 0, false
		}
		return 1 / (stat.StdDev(s.values, nil) + stabilityEpsilon), true

	case domain.IndicatorTrend30D:
		if len(s.values) < 2 {
			return 0, false
		}
		_, slope := stat.LinearRegression(s.offsets, s.values, nil, false)
		if math.IsNaN(slope) {
			return 0, false
		}
		return slope, true
	}
	return 0, false
}
