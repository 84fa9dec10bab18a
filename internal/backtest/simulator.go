// Package backtest simulates a day-stepped arbitrage portfolio over
// stored rankings and daily funding returns, maintaining a reconciled
// capital ledger.
package backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// Simulator runs backtests against stored rankings and return metrics.
// Runs share no mutable state, so independent configs may run
// concurrently.
type Simulator struct {
	metrics  storage.ReturnMetricStore
	rankings storage.RankingStore
}

// NewSimulator creates a simulator over metric and ranking stores.
func NewSimulator(metrics storage.ReturnMetricStore, rankings storage.RankingStore) *Simulator {
	return &Simulator{metrics: metrics, rankings: rankings}
}

// Outcome is one finished run: the result row, the full ledger and the
// daily equity curve.
type Outcome struct {
	Result *domain.BacktestResult
	Events []*domain.TradeEvent
	Equity []*domain.EquityPoint
}

// Run simulates cfg over [StartDate, EndDate]. Days step strictly in
// order; per day the fixed sequence is funding accrual, exits, entries,
// with the ledger reconciled after every event. A reconciliation
// failure aborts this run only.
func (s *Simulator) Run(ctx context.Context, cfg *domain.BacktestConfig) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backtestID := fmt.Sprintf("%s_%s_%s_%s", cfg.StrategyName, cfg.StartDate, cfg.EndDate, uuid.NewString()[:8])
	led := newLedger(backtestID, cfg.InitialCapital)
	var equity []*domain.EquityPoint

	for date := cfg.StartDate; !date.After(cfg.EndDate); date = date.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ranking, err := s.rankings.GetByStrategyDate(ctx, cfg.StrategyName, date)
		if err != nil {
			return nil, fmt.Errorf("load ranking %s %s: %w", cfg.StrategyName, date, err)
		}
		ranks := make(map[string]int, len(ranking))
		for _, row := range ranking {
			ranks[row.TradingPair] = row.RankPosition
		}

		dayStartTotal := led.total

		if err := s.accrueFunding(ctx, led, date, ranks); err != nil {
			return nil, err
		}
		if err := s.exitPositions(led, date, ranks, cfg); err != nil {
			return nil, err
		}
		if err := s.enterPositions(led, date, ranking, cfg); err != nil {
			return nil, err
		}

		equity = append(equity, &domain.EquityPoint{
			Date:          date,
			TotalBalance:  led.total,
			DailyPnL:      led.total - dayStartTotal,
			OpenPositions: len(led.positions),
		})
	}

	return &Outcome{
		Result: finalize(cfg, backtestID, led, equity),
		Events: led.events,
		Equity: equity,
	}, nil
}

// accrueFunding credits each open position with its daily funding
// return. Positions entered today earn nothing yet; a missing row or a
// NULL return_1d accrues nothing, it is not an error.
func (s *Simulator) accrueFunding(ctx context.Context, led *ledger, date domain.Date, ranks map[string]int) error {
	for _, pair := range led.openPairs() {
		pos := led.positions[pair]
		if !pos.EntryDate.Before(date) {
			continue
		}
		row, err := s.metrics.GetByPairDate(ctx, pair, date)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return fmt.Errorf("load daily return %s %s: %w", pair, date, err)
		}
		if row.Return1D == nil {
			continue
		}
		if err := led.accrue(date, pair, pos.Notional**row.Return1D, rankOf(ranks, pair)); err != nil {
			return err
		}
	}
	return nil
}

// exitPositions closes every open position that left the ranking or
// slipped below the exit threshold. On a day with no ranking at all,
// every position closes.
func (s *Simulator) exitPositions(led *ledger, date domain.Date, ranks map[string]int, cfg *domain.BacktestConfig) error {
	for _, pair := range led.openPairs() {
		rank, ranked := ranks[pair]
		if ranked && rank <= cfg.ExitThreshold {
			continue
		}
		fee := led.positions[pair].Notional * cfg.FeeRate
		if err := led.close(date, pair, fee, rankOf(ranks, pair)); err != nil {
			return err
		}
	}
	return nil
}

// enterPositions opens positions for top-ranked pairs. The entry
// notional is fixed from the total balance once, before any entry, so
// multiple same-day entries size identically.
func (s *Simulator) enterPositions(led *ledger, date domain.Date, ranking []*domain.RankingRow, cfg *domain.BacktestConfig) error {
	if len(ranking) == 0 {
		return nil
	}

	notional := cfg.FixedAmount
	if cfg.SizingMode == domain.SizingPercentage {
		notional = cfg.PositionSize * led.total
	}
	if notional <= 0 {
		return nil
	}

	for _, row := range ranking {
		if row.RankPosition > cfg.EntryTopN || len(led.positions) >= cfg.MaxPositions {
			break
		}
		if led.has(row.TradingPair) {
			continue
		}
		fee := notional * cfg.FeeRate
		if led.cash < notional+fee {
			break
		}
		rank := row.RankPosition
		if err := led.open(date, row.TradingPair, notional, fee, &rank); err != nil {
			return err
		}
	}
	return nil
}

func rankOf(ranks map[string]int, pair string) *int {
	if rank, ok := ranks[pair]; ok {
		return &rank
	}
	return nil
}

// Store persists a finished outcome: the result row plus its full
// ledger. The result lands first so trades always reference an
// existing run.
func Store(ctx context.Context, store storage.BacktestStore, out *Outcome) error {
	if err := store.InsertResult(ctx, out.Result); err != nil {
		return fmt.Errorf("store backtest result %s: %w", out.Result.BacktestID, err)
	}
	if err := store.InsertTrades(ctx, out.Events); err != nil {
		return fmt.Errorf("store backtest trades %s: %w", out.Result.BacktestID, err)
	}
	return nil
}
