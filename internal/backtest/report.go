package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"funding-arb-lab/internal/domain"
)

const daysPerYear = 365.0

// finalize derives the result row from a finished ledger and its
// equity curve.
func finalize(cfg *domain.BacktestConfig, backtestID string, led *ledger, equity []*domain.EquityPoint) *domain.BacktestResult {
	res := &domain.BacktestResult{
		BacktestID:     backtestID,
		StrategyName:   cfg.StrategyName,
		StartDate:      cfg.StartDate,
		EndDate:        cfg.EndDate,
		InitialCapital: cfg.InitialCapital,
		FinalBalance:   led.total,
		AvgHoldDays:    led.avgHoldDays(),
		ConfigParams:   marshalConfig(cfg),
	}

	res.TotalReturn = (res.FinalBalance - res.InitialCapital) / res.InitialCapital
	elapsed := cfg.EndDate.DaysSince(cfg.StartDate) + 1
	res.ROI = res.TotalReturn * daysPerYear / float64(elapsed)

	for _, e := range led.events {
		if e.EventType == domain.EventEnterPosition {
			res.TotalTrades++
		}
	}

	dailyReturns := make([]float64, 0, len(equity))
	prev := cfg.InitialCapital
	peak := cfg.InitialCapital
	for _, point := range equity {
		if prev > 0 {
			dailyReturns = append(dailyReturns, point.DailyPnL/prev)
		}
		prev = point.TotalBalance

		if point.TotalBalance > peak {
			peak = point.TotalBalance
		}
		if dd := (peak - point.TotalBalance) / peak; dd > res.MaxDrawdown {
			res.MaxDrawdown = dd
		}

		switch {
		case point.DailyPnL > 0:
			res.ProfitDays++
		case point.DailyPnL < 0:
			res.LossDays++
		default:
			res.FlatDays++
		}
	}

	if len(equity) > 0 {
		res.WinRate = float64(res.ProfitDays+res.FlatDays) / float64(len(equity))
	}
	res.SharpeRatio = sharpe(dailyReturns)
	return res
}

// sharpe annualizes mean/stdev of daily returns. Degenerate series,
// fewer than two days or zero variance, score 0.
func sharpe(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(dailyReturns, nil)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(daysPerYear)
}

func marshalConfig(cfg *domain.BacktestConfig) string {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return ""
	}
	return string(raw)
}
