package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies: %d | Runs: %d\n\n", r.StrategyCount, len(r.Results)))

	sb.WriteString("## Data Quality\n\n")
	if !r.DataQuality.Verified {
		sb.WriteString("No completeness checks performed for this batch.\n\n")
	} else {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")
		if r.DataQuality.AllPass {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Results below may cover incomplete data.\n\n")
		}
	}
	if len(r.DataQuality.Errors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range r.DataQuality.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Results\n\n")
	if len(r.Results) == 0 {
		sb.WriteString("No backtest runs in this batch.\n")
		return sb.String()
	}

	sb.WriteString("| Strategy | Period | Final Balance | Return | ROI (ann.) | Max DD | Sharpe | Win Rate | Trades | Avg Hold |\n")
	sb.WriteString("|----------|--------|---------------|--------|------------|--------|--------|----------|--------|----------|\n")
	for i, res := range r.Results {
		name := res.StrategyName
		if i == 0 && len(r.Results) > 1 {
			name += " (best)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s → %s | %.2f | %.2f%% | %.2f%% | %.2f%% | %.2f | %.1f%% | %d | %.1fd |\n",
			name,
			res.StartDate, res.EndDate,
			res.FinalBalance,
			res.TotalReturn*100,
			res.ROI*100,
			res.MaxDrawdown*100,
			res.SharpeRatio,
			res.WinRate*100,
			res.TotalTrades,
			res.AvgHoldDays,
		))
	}
	sb.WriteString("\n")

	sb.WriteString("## Run Details\n\n")
	for _, res := range r.Results {
		sb.WriteString(fmt.Sprintf("### %s\n\n", res.BacktestID))
		sb.WriteString(fmt.Sprintf("Profit/loss/flat days: %d/%d/%d\n\n", res.ProfitDays, res.LossDays, res.FlatDays))
		sb.WriteString("```yaml\n")
		sb.WriteString(res.ConfigParams)
		if !strings.HasSuffix(res.ConfigParams, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}

	return sb.String()
}
