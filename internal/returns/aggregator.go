package returns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// epoch is the lower bound for full-history fetches. ClickHouse DateTime
// cannot represent times before 1970.
var epoch = time.Unix(0, 0).UTC()

// Summary tallies one aggregation run. Batch callers report it instead of
// failing the whole range on per-pair problems.
type Summary struct {
	RowsComputed int
	RowsSkipped  int // insufficient data, no row written
	PairsFailed  int
	failedPairs  map[string]error
}

// FailedPairs returns per-pair failures sorted by pair for deterministic
// reporting.
func (s *Summary) FailedPairs() []string {
	if len(s.failedPairs) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(s.failedPairs))
	for p := range s.failedPairs {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = fmt.Sprintf("%s: %v", p, s.failedPairs[p])
	}
	return out
}

// Aggregator computes and persists return metric rows.
type Aggregator struct {
	diffs   storage.DifferentialStore
	metrics storage.ReturnMetricStore

	// OnPairDone, when set, is called after each pair finishes a range
	// run. Used for progress reporting.
	OnPairDone func(pair string)
}

// NewAggregator creates a new return aggregator.
func NewAggregator(diffs storage.DifferentialStore, metrics storage.ReturnMetricStore) *Aggregator {
	return &Aggregator{diffs: diffs, metrics: metrics}
}

// Compute builds and upserts one (pair, date) row. Returns (nil, nil)
// when the pair has no history at or before date.
func (a *Aggregator) Compute(ctx context.Context, pair string, date domain.Date) (*domain.ReturnMetricRow, error) {
	history, err := a.diffs.GetByPairRange(ctx, pair, epoch, date.End())
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", pair, err)
	}

	row := ComputeRow(pair, date, history)
	if row == nil {
		return nil, nil
	}
	if err := a.metrics.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("upsert metrics %s %s: %w", pair, date, err)
	}
	return row, nil
}

// ComputeRange runs the aggregator over [from, to] for every pair,
// upserting one row per (pair, day) with history. Idempotent: re-running
// the same range over unchanged data rewrites identical rows.
//
// A failing pair does not abort the range; it is recorded in the Summary
// and the remaining pairs still run.
func (a *Aggregator) ComputeRange(ctx context.Context, pairs []string, from, to domain.Date) (*Summary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range %s..%s", from, to)
	}

	summary := &Summary{failedPairs: make(map[string]error)}
	days := domain.DateRange(from, to)

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := a.computePair(ctx, pair, days, summary); err != nil {
			summary.PairsFailed++
			summary.failedPairs[pair] = err
		}
		if a.OnPairDone != nil {
			a.OnPairDone(pair)
		}
	}
	return summary, nil
}

func (a *Aggregator) computePair(ctx context.Context, pair string, days []domain.Date, summary *Summary) error {
	// One full-history fetch serves every day in the range.
	last := days[len(days)-1]
	history, err := a.diffs.GetByPairRange(ctx, pair, epoch, last.End())
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	for _, day := range days {
		row := ComputeRow(pair, day, history)
		if row == nil {
			summary.RowsSkipped++
			continue
		}
		if err := a.metrics.Upsert(ctx, row); err != nil {
			return fmt.Errorf("upsert %s: %w", day, err)
		}
		summary.RowsComputed++
	}
	return nil
}
