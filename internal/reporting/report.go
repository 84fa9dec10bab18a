// Package reporting renders backtest output as CSV and Markdown.
package reporting

import (
	"time"

	"funding-arb-lab/internal/domain"
)

// Report is the rendered view of one backtest batch.
type Report struct {
	GeneratedAt   time.Time
	StrategyCount int

	// Results sorted best-first by annualized ROI.
	Results []*domain.BacktestResult

	// DataQuality carries upstream completeness checks when the batch
	// ran through the pipeline.
	DataQuality DataQualitySection
}

// DataQualitySection holds completeness checks and integrity errors.
type DataQualitySection struct {
	Checks   []CheckRow
	Errors   []string
	AllPass  bool
	Verified bool // false when no checks ran
}

// CheckRow is one completeness criterion.
type CheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}
