// Package pipeline sequences the aggregate and ranking stages and
// verifies data completeness between them.
package pipeline

import (
	"context"
	"fmt"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/ranking"
	"funding-arb-lab/internal/returns"
	"funding-arb-lab/internal/storage"
)

// Pipeline runs aggregate → rank end to end. Each stage commits fully
// before the next stage reads, so rankings never see partial metrics.
type Pipeline struct {
	diffs      storage.DifferentialStore
	aggregator *returns.Aggregator
	runner     *ranking.Runner
	checker    *Checker
}

// New creates a pipeline over the given stores and stage drivers.
func New(diffs storage.DifferentialStore, aggregator *returns.Aggregator, runner *ranking.Runner, checker *Checker) *Pipeline {
	return &Pipeline{diffs: diffs, aggregator: aggregator, runner: runner, checker: checker}
}

// Result aggregates per-stage outcomes of one pipeline run.
type Result struct {
	Aggregate    *returns.Summary
	Ranking      *ranking.Summary
	Completeness *CompletenessResult
}

// Run executes both stages over [from, to] for the given strategies,
// then verifies completeness of what was written.
func (p *Pipeline) Run(ctx context.Context, cfgs []*domain.StrategyConfig, from, to domain.Date) (*Result, error) {
	pairs, err := p.diffs.ListPairs(ctx, to.End())
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}

	aggSummary, err := p.aggregator.ComputeRange(ctx, pairs, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate stage: %w", err)
	}

	rankSummary, err := p.runner.RunRange(ctx, cfgs, from, to)
	if err != nil {
		return nil, fmt.Errorf("ranking stage: %w", err)
	}

	completeness, err := p.checker.Check(ctx, strategyNames(cfgs), from, to)
	if err != nil {
		return nil, fmt.Errorf("completeness check: %w", err)
	}

	return &Result{Aggregate: aggSummary, Ranking: rankSummary, Completeness: completeness}, nil
}

// FillMissing recomputes only the cells a completeness check found
// absent: metric rows per (pair, date), then rankings per (strategy,
// date). Metrics fill first so refilled rankings see them.
func (p *Pipeline) FillMissing(ctx context.Context, cfgs []*domain.StrategyConfig, from, to domain.Date) (*Result, error) {
	byName := make(map[string]*domain.StrategyConfig, len(cfgs))
	for _, cfg := range cfgs {
		byName[cfg.Name] = cfg
	}

	completeness, err := p.checker.Check(ctx, strategyNames(cfgs), from, to)
	if err != nil {
		return nil, fmt.Errorf("completeness check: %w", err)
	}

	aggSummary := &returns.Summary{}
	for _, cell := range completeness.MissingMetrics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := p.aggregator.Compute(ctx, cell.Pair, cell.Date)
		if err != nil {
			return nil, fmt.Errorf("fill metrics %s %s: %w", cell.Pair, cell.Date, err)
		}
		if row == nil {
			aggSummary.RowsSkipped++
		} else {
			aggSummary.RowsComputed++
		}
	}

	rankSummary := &ranking.Summary{}
	for _, cell := range completeness.MissingRankings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cfg, ok := byName[cell.Strategy]
		if !ok {
			return nil, fmt.Errorf("fill ranking: %w: %q", ranking.ErrUnknownStrategy, cell.Strategy)
		}
		n, err := p.runner.RunDay(ctx, cfg, cell.Date)
		if err != nil {
			return nil, fmt.Errorf("fill ranking %s %s: %w", cell.Strategy, cell.Date, err)
		}
		rankSummary.DaysRanked++
		rankSummary.RowsWritten += n
		if n == 0 {
			rankSummary.EmptyDays++
		}
	}

	return &Result{Aggregate: aggSummary, Ranking: rankSummary, Completeness: completeness}, nil
}

func strategyNames(cfgs []*domain.StrategyConfig) []string {
	names := make([]string, len(cfgs))
	for i, cfg := range cfgs {
		names[i] = cfg.Name
	}
	return names
}
