package domain

// Horizon is a trailing aggregation window. HorizonAll spans from the
// pair's first observation to the row date.
type Horizon string

const (
	Horizon1D  Horizon = "1d"
	Horizon2D  Horizon = "2d"
	Horizon7D  Horizon = "7d"
	Horizon14D Horizon = "14d"
	Horizon30D Horizon = "30d"
	HorizonAll Horizon = "all"
)

// Horizons lists every supported window in ascending length,
// HorizonAll last.
var Horizons = []Horizon{Horizon1D, Horizon2D, Horizon7D, Horizon14D, Horizon30D, HorizonAll}

// Days returns the nominal window length in days, or 0 for HorizonAll
// (which annualizes by actual elapsed days instead).
func (h Horizon) Days() int {
	switch h {
	case Horizon1D:
		return 1
	case Horizon2D:
		return 2
	case Horizon7D:
		return 7
	case Horizon14D:
		return 14
	case Horizon30D:
		return 30
	default:
		return 0
	}
}

// ReturnMetricRow represents multi-horizon funding returns for one pair
// on one day. Corresponds to the return_metrics table. A nil return/ROI
// pair means the window held zero non-NULL observations (insufficient
// data, never zero-filled).
type ReturnMetricRow struct {
	TradingPair string
	Date        Date

	Return1D  *float64
	ROI1D     *float64
	Return2D  *float64
	ROI2D     *float64
	Return7D  *float64
	ROI7D     *float64
	Return14D *float64
	ROI14D    *float64
	Return30D *float64
	ROI30D    *float64
	ReturnAll *float64
	ROIAll    *float64
}

// Indicator names addressable from StrategyConfig components.
const (
	IndicatorReturn1D  = "return_1d"
	IndicatorROI1D     = "roi_1d"
	IndicatorReturn2D  = "return_2d"
	IndicatorROI2D     = "roi_2d"
	IndicatorReturn7D  = "return_7d"
	IndicatorROI7D     = "roi_7d"
	IndicatorReturn14D = "return_14d"
	IndicatorROI14D    = "roi_14d"
	IndicatorReturn30D = "return_30d"
	IndicatorROI30D    = "roi_30d"
	IndicatorReturnAll = "return_all"
	IndicatorROIAll    = "roi_all"
)

// Derived indicators computed by the ranking engine from a pair's
// trailing roi_1d series rather than read off a single row.
const (
	IndicatorTrend30D     = "trend_30d"     // OLS slope of daily ROI
	IndicatorSharpe30D    = "sharpe_30d"    // annualized mean/stdev of daily ROI
	IndicatorWinRate30D   = "win_rate_30d"  // fraction of non-negative days
	IndicatorStability30D = "stability_30d" // inverse stdev of daily ROI
)

// KnownIndicator reports whether name addresses a ReturnMetricRow field
// or a derived indicator the ranking engine can compute.
func KnownIndicator(name string) bool {
	switch name {
	case IndicatorReturn1D, IndicatorROI1D,
		IndicatorReturn2D, IndicatorROI2D,
		IndicatorReturn7D, IndicatorROI7D,
		IndicatorReturn14D, IndicatorROI14D,
		IndicatorReturn30D, IndicatorROI30D,
		IndicatorReturnAll, IndicatorROIAll,
		IndicatorTrend30D, IndicatorSharpe30D,
		IndicatorWinRate30D, IndicatorStability30D:
		return true
	}
	return false
}

// Indicator returns the named field. ok is false for unknown names;
// a nil value with ok=true means the indicator is NULL for this row.
func (r *ReturnMetricRow) Indicator(name string) (value *float64, ok bool) {
	switch name {
	case IndicatorReturn1D:
		return r.Return1D, true
	case IndicatorROI1D:
		return r.ROI1D, true
	case IndicatorReturn2D:
		return r.Return2D, true
	case IndicatorROI2D:
		return r.ROI2D, true
	case IndicatorReturn7D:
		return r.Return7D, true
	case IndicatorROI7D:
		return r.ROI7D, true
	case IndicatorReturn14D:
		return r.Return14D, true
	case IndicatorROI14D:
		return r.ROI14D, true
	case IndicatorReturn30D:
		return r.Return30D, true
	case IndicatorROI30D:
		return r.ROI30D, true
	case IndicatorReturnAll:
		return r.ReturnAll, true
	case IndicatorROIAll:
		return r.ROIAll, true
	}
	return nil, false
}

// SetHorizon assigns the return/ROI pair for one horizon.
func (r *ReturnMetricRow) SetHorizon(h Horizon, ret, roi *float64) {
	switch h {
	case Horizon1D:
		r.Return1D, r.ROI1D = ret, roi
	case Horizon2D:
		r.Return2D, r.ROI2D = ret, roi
	case Horizon7D:
		r.Return7D, r.ROI7D = ret, roi
	case Horizon14D:
		r.Return14D, r.ROI14D = ret, roi
	case Horizon30D:
		r.Return30D, r.ROI30D = ret, roi
	case HorizonAll:
		r.ReturnAll, r.ROIAll = ret, roi
	}
}
