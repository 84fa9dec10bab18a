package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// Generator assembles reports from stored backtest runs.
type Generator struct {
	store storage.BacktestStore
	clock func() time.Time
}

// NewGenerator creates a generator over a backtest store.
func NewGenerator(store storage.BacktestStore) *Generator {
	return &Generator{
		store: store,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic output.
func (g *Generator) WithClock(clock func() time.Time) *Generator {
	g.clock = clock
	return g
}

// Generate builds a report from each strategy's most recent run,
// sorted best-first by annualized ROI.
func (g *Generator) Generate(ctx context.Context, strategies []string) (*Report, error) {
	report := &Report{
		GeneratedAt:   g.clock(),
		StrategyCount: len(strategies),
	}

	for _, strategy := range strategies {
		results, err := g.store.ListResultsByStrategy(ctx, strategy)
		if err != nil {
			return nil, fmt.Errorf("list results for %s: %w", strategy, err)
		}
		if len(results) == 0 {
			continue
		}
		report.Results = append(report.Results, results[0])
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		if report.Results[i].ROI != report.Results[j].ROI {
			return report.Results[i].ROI > report.Results[j].ROI
		}
		return report.Results[i].StrategyName < report.Results[j].StrategyName
	})
	return report, nil
}

// WriteFiles writes the report artifacts to outputDir:
//   - BACKTEST_REPORT.md
//   - backtest_results.csv
//   - backtest_trades.csv (every run's ledger, run by run)
func (g *Generator) WriteFiles(ctx context.Context, outputDir string, report *Report) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	md := RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(outputDir, "BACKTEST_REPORT.md"), []byte(md), 0644); err != nil {
		return err
	}

	resultsCSV := RenderResultsCSV(report.Results)
	if err := os.WriteFile(filepath.Join(outputDir, "backtest_results.csv"), []byte(resultsCSV), 0644); err != nil {
		return err
	}

	var events []*domain.TradeEvent
	for _, res := range report.Results {
		trades, err := g.store.GetTrades(ctx, res.BacktestID)
		if err != nil {
			return fmt.Errorf("load trades for %s: %w", res.BacktestID, err)
		}
		events = append(events, trades...)
	}
	tradesCSV := RenderTradesCSV(events)
	return os.WriteFile(filepath.Join(outputDir, "backtest_trades.csv"), []byte(tradesCSV), 0644)
}
