package ranking

import (
	"context"
	"fmt"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// Runner ranks strategies over date ranges and persists the results.
// Each (strategy, date) ranking is replaced wholesale, so reruns are
// idempotent.
type Runner struct {
	engine *Engine
	store  storage.RankingStore

	// OnDayDone, when set, is called after each persisted (strategy,
	// date) ranking with the number of rows written.
	OnDayDone func(strategy string, date domain.Date, rows int)
}

// NewRunner creates a runner over an engine and a ranking store.
func NewRunner(engine *Engine, store storage.RankingStore) *Runner {
	return &Runner{engine: engine, store: store}
}

// Summary tallies one ranking run.
type Summary struct {
	DaysRanked  int // (strategy, date) rankings persisted
	EmptyDays   int // (strategy, date) cells with an empty universe
	RowsWritten int
}

// RunDay ranks one strategy on one date and persists the result. An
// empty universe still replaces the day, clearing any stale ranking.
func (r *Runner) RunDay(ctx context.Context, cfg *domain.StrategyConfig, date domain.Date) (int, error) {
	rows, err := r.engine.Rank(ctx, cfg, date)
	if err != nil {
		return 0, err
	}
	if err := r.store.ReplaceDay(ctx, cfg.Name, date, rows); err != nil {
		return 0, fmt.Errorf("persist ranking %s %s: %w", cfg.Name, date, err)
	}
	if r.OnDayDone != nil {
		r.OnDayDone(cfg.Name, date, len(rows))
	}
	return len(rows), nil
}

// RunRange ranks every strategy over every date in [from, to]. A
// strategy config error aborts the run immediately; storage errors do
// too, leaving already-persisted days in place.
func (r *Runner) RunRange(ctx context.Context, cfgs []*domain.StrategyConfig, from, to domain.Date) (*Summary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid date range: %s after %s", from, to)
	}

	// Validate everything before writing anything.
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	sum := &Summary{}
	for _, cfg := range cfgs {
		for date := from; !date.After(to); date = date.Next() {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			n, err := r.RunDay(ctx, cfg, date)
			if err != nil {
				return sum, err
			}
			sum.DaysRanked++
			sum.RowsWritten += n
			if n == 0 {
				sum.EmptyDays++
			}
		}
	}
	return sum, nil
}
