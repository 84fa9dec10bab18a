// Package ranking scores trading pairs cross-sectionally under named
// strategy configs and assigns dense rank positions per day.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// Engine ranks the universe of pairs holding a return metric row on a
// date. A pair missing any indicator the strategy reads is excluded
// from that day's ranking rather than defaulted.
type Engine struct {
	metrics storage.ReturnMetricStore
}

// NewEngine creates a ranking engine over a return metric store.
func NewEngine(metrics storage.ReturnMetricStore) *Engine {
	return &Engine{metrics: metrics}
}

// candidate is one pair with every required indicator resolved.
type candidate struct {
	pair   string
	values map[string]float64
}

// Rank computes the full ranking for one strategy on one date. The
// result is ordered by rank position; an empty universe yields zero
// rows and no error. The config is validated before any data access.
func (e *Engine) Rank(ctx context.Context, cfg *domain.StrategyConfig, date domain.Date) ([]*domain.RankingRow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	universe, err := e.metrics.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load universe for %s: %w", date, err)
	}

	candidates, err := e.resolveCandidates(ctx, cfg, date, universe)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []*domain.RankingRow{}, nil
	}

	componentScores := scoreComponents(cfg, candidates)
	finalScores := combineFinal(cfg, componentScores, len(candidates))

	rows := make([]*domain.RankingRow, len(candidates))
	for i, cand := range candidates {
		scores := make([]domain.ComponentScore, len(cfg.Components))
		for j, comp := range cfg.Components {
			scores[j] = domain.ComponentScore{Name: comp.Name, Value: componentScores[comp.Name][i]}
		}
		rows[i] = &domain.RankingRow{
			StrategyName:      cfg.Name,
			TradingPair:       cand.pair,
			Date:              date,
			ComponentScores:   scores,
			FinalRankingScore: finalScores[i],
		}
	}

	// Higher score ranks first; ties break on pair name so reruns over
	// the same data always produce the same order.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FinalRankingScore != rows[j].FinalRankingScore {
			return rows[i].FinalRankingScore > rows[j].FinalRankingScore
		}
		return rows[i].TradingPair < rows[j].TradingPair
	})
	for i, row := range rows {
		row.RankPosition = i + 1
	}
	return rows, nil
}

// resolveCandidates gathers every required indicator per pair, dropping
// pairs with a NULL field or a trailing series too short for a derived
// factor. Trailing rows are fetched once per pair.
func (e *Engine) resolveCandidates(ctx context.Context, cfg *domain.StrategyConfig, date domain.Date, universe []*domain.ReturnMetricRow) ([]candidate, error) {
	required := cfg.RequiredIndicators()
	needsTrailing := hasDerivedIndicator(required)
	from := date.AddDays(-factorWindowDays + 1)

	var out []candidate
	for _, row := range universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var series dailySeries
		if needsTrailing {
			trailing, err := e.metrics.GetByPairRange(ctx, row.TradingPair, from, date)
			if err != nil {
				return nil, fmt.Errorf("load trailing rows for %s: %w", row.TradingPair, err)
			}
			series = buildDailySeries(trailing, date)
		}

		values := make(map[string]float64, len(required))
		complete := true
		for _, name := range required {
			if isDerivedIndicator(name) {
				v, ok := computeFactor(name, series)
				if !ok {
					complete = false
					break
				}
				values[name] = v
				continue
			}
			p, _ := row.Indicator(name)
			if p == nil {
				complete = false
				break
			}
			values[name] = *p
		}
		if complete {
			out = append(out, candidate{pair: row.TradingPair, values: values})
		}
	}
	return out, nil
}

// scoreComponents evaluates every component as a weighted sum of its
// indicators across the candidate set, Z-scoring each indicator column
// first when the component asks for normalization.
func scoreComponents(cfg *domain.StrategyConfig, candidates []candidate) map[string][]float64 {
	out := make(map[string][]float64, len(cfg.Components))
	for _, comp := range cfg.Components {
		scores := make([]float64, len(candidates))
		for k, name := range comp.Indicators {
			column := make([]float64, len(candidates))
			for i, cand := range candidates {
				column[i] = cand.values[name]
			}
			if comp.Normalize {
				column = zscores(column)
			}
			for i := range scores {
				scores[i] += comp.Weights[k] * column[i]
			}
		}
		out[comp.Name] = scores
	}
	return out
}

func combineFinal(cfg *domain.StrategyConfig, componentScores map[string][]float64, n int) []float64 {
	out := make([]float64, n)
	for k, name := range cfg.FinalCombination.Components {
		w := cfg.FinalCombination.Weights[k]
		for i, v := range componentScores[name] {
			out[i] += w * v
		}
	}
	return out
}

// zscores normalizes a column against its population mean and standard
// deviation. A degenerate column, where every pair carries the same
// value, maps to all zeros instead of dividing by zero.
func zscores(values []float64) []float64 {
	out := make([]float64, len(values))
	mean := stat.Mean(values, nil)
	std := stat.PopStdDev(values, nil)
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
