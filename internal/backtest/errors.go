package backtest

import (
	"fmt"

	"funding-arb-lab/internal/domain"
)

// reconcileTolerance bounds the drift allowed between cash+position and
// the running total after any ledger event.
const reconcileTolerance = 0.01

// ReconciliationError reports a ledger that stopped balancing. It aborts
// the run it occurred in and carries the last consistent balances so the
// ledger can be inspected postmortem.
type ReconciliationError struct {
	BacktestID  string
	Date        domain.Date
	TradingPair string
	EventType   string

	// Balances before the event that broke the invariant.
	Cash     float64
	Position float64
	Total    float64
	Drift    float64
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("backtest %s: ledger out of balance on %s (%s %s): drift %.6f exceeds %.2f",
		e.BacktestID, e.Date, e.EventType, e.TradingPair, e.Drift, reconcileTolerance)
}
