package reporting

import (
	"fmt"
	"strings"

	"funding-arb-lab/internal/domain"
)

// RenderResultsCSV renders backtest results as a CSV string.
func RenderResultsCSV(results []*domain.BacktestResult) string {
	var sb strings.Builder

	sb.WriteString("backtest_id,strategy_name,start_date,end_date,initial_capital,final_balance,")
	sb.WriteString("total_return,roi,max_drawdown,sharpe_ratio,win_rate,")
	sb.WriteString("total_trades,avg_hold_days,profit_days,loss_days,flat_days\n")

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.2f,%.2f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%.2f,%d,%d,%d\n",
			r.BacktestID,
			r.StrategyName,
			r.StartDate,
			r.EndDate,
			r.InitialCapital,
			r.FinalBalance,
			r.TotalReturn,
			r.ROI,
			r.MaxDrawdown,
			r.SharpeRatio,
			r.WinRate,
			r.TotalTrades,
			r.AvgHoldDays,
			r.ProfitDays,
			r.LossDays,
			r.FlatDays,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders ledger events as a CSV string, in store order.
func RenderTradesCSV(events []*domain.TradeEvent) string {
	var sb strings.Builder

	sb.WriteString("backtest_id,date,trading_pair,event_type,amount,")
	sb.WriteString("cash_balance_after,position_balance_after,total_balance_after,rank_position\n")

	for _, e := range events {
		rank := ""
		if e.RankPosition != nil {
			rank = fmt.Sprintf("%d", *e.RankPosition)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.6f,%.2f,%.2f,%.2f,%s\n",
			e.BacktestID,
			e.Date,
			e.TradingPair,
			e.EventType,
			e.Amount,
			e.CashBalanceAfter,
			e.PositionBalanceAfter,
			e.TotalBalanceAfter,
			rank,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders a daily equity curve as a CSV string.
func RenderEquityCSV(points []*domain.EquityPoint) string {
	var sb strings.Builder

	sb.WriteString("date,total_balance,daily_pnl,open_positions\n")
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%s,%.2f,%.6f,%d\n",
			p.Date, p.TotalBalance, p.DailyPnL, p.OpenPositions))
	}

	return sb.String()
}
