package pipeline

import (
	"context"
	"fmt"
	"sort"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// CompletenessCheck is one data completeness criterion with a rendered
// threshold and actual value.
type CompletenessCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// MetricCell identifies one missing (pair, date) return metric row.
type MetricCell struct {
	Pair string
	Date domain.Date
}

// RankingCell identifies one missing (strategy, date) ranking.
type RankingCell struct {
	Strategy string
	Date     domain.Date
}

// CompletenessResult holds every check plus the concrete missing cells,
// so a fill pass can recompute exactly what is absent.
type CompletenessResult struct {
	Checks  []CompletenessCheck
	AllPass bool
	Errors  []string

	MissingMetrics  []MetricCell
	MissingRankings []RankingCell
}

// Checker verifies that downstream tables cover everything upstream
// data implies: every pair with differential history must hold a metric
// row per day, and every selected strategy must hold a ranking per day
// the metrics cover.
type Checker struct {
	diffs    storage.DifferentialStore
	metrics  storage.ReturnMetricStore
	rankings storage.RankingStore
}

// NewChecker creates a completeness checker.
func NewChecker(diffs storage.DifferentialStore, metrics storage.ReturnMetricStore, rankings storage.RankingStore) *Checker {
	return &Checker{diffs: diffs, metrics: metrics, rankings: rankings}
}

// Check runs both completeness checks over [from, to] for the given
// strategy names. Missing cells are reported, never repaired here.
func (c *Checker) Check(ctx context.Context, strategies []string, from, to domain.Date) (*CompletenessResult, error) {
	result := &CompletenessResult{AllPass: true}

	metricCheck, err := c.checkMetricCoverage(ctx, from, to, result)
	if err != nil {
		return nil, err
	}
	result.Checks = append(result.Checks, metricCheck)
	if !metricCheck.Pass {
		result.AllPass = false
	}

	rankingCheck, err := c.checkRankingCoverage(ctx, strategies, from, to, result)
	if err != nil {
		return nil, err
	}
	result.Checks = append(result.Checks, rankingCheck)
	if !rankingCheck.Pass {
		result.AllPass = false
	}

	return result, nil
}

// checkMetricCoverage: every pair with differential history at or
// before a date must hold a return metric row for that date.
func (c *Checker) checkMetricCoverage(ctx context.Context, from, to domain.Date, result *CompletenessResult) (CompletenessCheck, error) {
	checked := 0
	for date := from; !date.After(to); date = date.Next() {
		if err := ctx.Err(); err != nil {
			return CompletenessCheck{}, err
		}

		expected, err := c.diffs.ListPairs(ctx, date.End())
		if err != nil {
			return CompletenessCheck{}, fmt.Errorf("list pairs until %s: %w", date, err)
		}
		actual, err := c.metrics.ListPairsByDate(ctx, date)
		if err != nil {
			return CompletenessCheck{}, fmt.Errorf("list metric pairs %s: %w", date, err)
		}

		have := make(map[string]bool, len(actual))
		for _, pair := range actual {
			have[pair] = true
		}
		sort.Strings(expected)
		for _, pair := range expected {
			checked++
			if !have[pair] {
				result.MissingMetrics = append(result.MissingMetrics, MetricCell{Pair: pair, Date: date})
				result.Errors = append(result.Errors, fmt.Sprintf("no return metrics for %s on %s", pair, date))
			}
		}
	}

	missing := len(result.MissingMetrics)
	return CompletenessCheck{
		Name:      "Return metric coverage",
		Threshold: "= 0 missing",
		Actual:    fmt.Sprintf("%d missing of %d expected", missing, checked),
		Pass:      missing == 0,
	}, nil
}

// checkRankingCoverage: every (strategy, date) with metric rows on that
// date must hold a ranking. A day with zero metric rows needs none.
func (c *Checker) checkRankingCoverage(ctx context.Context, strategies []string, from, to domain.Date, result *CompletenessResult) (CompletenessCheck, error) {
	sorted := make([]string, len(strategies))
	copy(sorted, strategies)
	sort.Strings(sorted)

	checked := 0
	missing := 0
	for _, strategy := range sorted {
		for date := from; !date.After(to); date = date.Next() {
			if err := ctx.Err(); err != nil {
				return CompletenessCheck{}, err
			}

			pairs, err := c.metrics.ListPairsByDate(ctx, date)
			if err != nil {
				return CompletenessCheck{}, fmt.Errorf("list metric pairs %s: %w", date, err)
			}
			if len(pairs) == 0 {
				continue
			}
			checked++

			rows, err := c.rankings.GetByStrategyDate(ctx, strategy, date)
			if err != nil {
				return CompletenessCheck{}, fmt.Errorf("load ranking %s %s: %w", strategy, date, err)
			}
			if len(rows) == 0 {
				missing++
				result.MissingRankings = append(result.MissingRankings, RankingCell{Strategy: strategy, Date: date})
				result.Errors = append(result.Errors, fmt.Sprintf("no ranking for strategy %s on %s", strategy, date))
			}
		}
	}

	return CompletenessCheck{
		Name:      "Strategy ranking coverage",
		Threshold: "= 0 missing",
		Actual:    fmt.Sprintf("%d missing of %d expected", missing, checked),
		Pass:      missing == 0,
	}, nil
}
