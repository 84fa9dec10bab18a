package backtest

import (
	"math"
	"strings"
	"testing"

	"funding-arb-lab/internal/domain"
)

func reportConfig(t *testing.T, days int) *domain.BacktestConfig {
	t.Helper()
	start := mustDate(t, "2024-03-01")
	return &domain.BacktestConfig{
		StrategyName:   "report",
		StartDate:      start,
		EndDate:        start.AddDays(days - 1),
		InitialCapital: 10000,
		EntryTopN:      1,
		ExitThreshold:  1,
		MaxPositions:   1,
		SizingMode:     domain.SizingPercentage,
		PositionSize:   0.5,
	}
}

func equityCurve(t *testing.T, cfg *domain.BacktestConfig, totals ...float64) []*domain.EquityPoint {
	t.Helper()
	points := make([]*domain.EquityPoint, len(totals))
	prev := cfg.InitialCapital
	for i, total := range totals {
		points[i] = &domain.EquityPoint{
			Date:         cfg.StartDate.AddDays(i),
			TotalBalance: total,
			DailyPnL:     total - prev,
		}
		prev = total
	}
	return points
}

func TestFinalize_ReturnAndROI(t *testing.T) {
	cfg := reportConfig(t, 4)
	led := newLedger("bt", cfg.InitialCapital)
	led.total = 10400

	res := finalize(cfg, "bt", led, equityCurve(t, cfg, 10100, 10200, 10300, 10400))

	if math.Abs(res.TotalReturn-0.04) > tol {
		t.Errorf("total return = %v, want 0.04", res.TotalReturn)
	}
	// Four elapsed days annualize by 365/4.
	if math.Abs(res.ROI-0.04*365/4) > tol {
		t.Errorf("roi = %v, want %v", res.ROI, 0.04*365/4)
	}
	if res.FinalBalance != 10400 {
		t.Errorf("final balance = %v", res.FinalBalance)
	}
}

func TestFinalize_DayTalliesAndWinRate(t *testing.T) {
	cfg := reportConfig(t, 4)
	led := newLedger("bt", cfg.InitialCapital)
	led.total = 10150

	// Up, down, flat, up.
	res := finalize(cfg, "bt", led, equityCurve(t, cfg, 10100, 10050, 10050, 10150))

	if res.ProfitDays != 2 || res.LossDays != 1 || res.FlatDays != 1 {
		t.Errorf("tallies = %d/%d/%d", res.ProfitDays, res.LossDays, res.FlatDays)
	}
	// Flat days count as non-negative.
	if math.Abs(res.WinRate-0.75) > tol {
		t.Errorf("win rate = %v, want 0.75", res.WinRate)
	}
}

func TestFinalize_MaxDrawdown(t *testing.T) {
	cfg := reportConfig(t, 4)
	led := newLedger("bt", cfg.InitialCapital)
	led.total = 10500

	res := finalize(cfg, "bt", led, equityCurve(t, cfg, 11000, 9900, 10200, 10500))

	want := (11000.0 - 9900.0) / 11000.0
	if math.Abs(res.MaxDrawdown-want) > tol {
		t.Errorf("max drawdown = %v, want %v", res.MaxDrawdown, want)
	}
}

func TestFinalize_ConfigParamsSerialized(t *testing.T) {
	cfg := reportConfig(t, 1)
	led := newLedger("bt", cfg.InitialCapital)

	res := finalize(cfg, "bt", led, equityCurve(t, cfg, 10000))
	if !strings.Contains(res.ConfigParams, "strategy_name: report") {
		t.Errorf("config params missing strategy name:\n%s", res.ConfigParams)
	}
	if !strings.Contains(res.ConfigParams, "position_size: 0.5") {
		t.Errorf("config params missing position size:\n%s", res.ConfigParams)
	}
}

func TestSharpe(t *testing.T) {
	if got := sharpe(nil); got != 0 {
		t.Errorf("empty series: %v", got)
	}
	if got := sharpe([]float64{0.01}); got != 0 {
		t.Errorf("single day: %v", got)
	}
	if got := sharpe([]float64{0.01, 0.01, 0.01}); got != 0 {
		t.Errorf("zero variance: %v", got)
	}

	got := sharpe([]float64{0.01, 0.03})
	// mean 0.02, sample stdev sqrt(2)*0.01.
	want := 0.02 / (0.01 * math.Sqrt2) * math.Sqrt(365)
	if math.Abs(got-want) > tol {
		t.Errorf("sharpe = %v, want %v", got, want)
	}

	if got := sharpe([]float64{-0.01, -0.03}); got >= 0 {
		t.Errorf("losing series should score negative, got %v", got)
	}
}
