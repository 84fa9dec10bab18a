package backtest

import (
	"math"
	"sort"

	"funding-arb-lab/internal/domain"
)

// ledger tracks one run's balances, open positions and event history.
// Every mutation records a trade event and re-checks the balance
// invariant; a failed check surfaces as ReconciliationError with the
// balances as they stood before the offending event.
type ledger struct {
	backtestID string

	cash     float64
	position float64
	total    float64

	positions map[string]*domain.Position
	events    []*domain.TradeEvent

	// Holding-period stats, accumulated on close.
	closedPositions int
	closedHoldDays  int
}

func newLedger(backtestID string, initialCapital float64) *ledger {
	return &ledger{
		backtestID: backtestID,
		cash:       initialCapital,
		total:      initialCapital,
		positions:  make(map[string]*domain.Position),
	}
}

func (l *ledger) has(pair string) bool {
	_, ok := l.positions[pair]
	return ok
}

// openPairs returns open position pairs sorted ascending, so day steps
// visit positions in a stable order.
func (l *ledger) openPairs() []string {
	pairs := make([]string, 0, len(l.positions))
	for pair := range l.positions {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

// open enters a position: notional moves cash→position, the fee leaves
// the ledger entirely.
func (l *ledger) open(date domain.Date, pair string, notional, fee float64, rank *int) error {
	snapshot := l.snapshot(date, pair, domain.EventEnterPosition)

	l.cash -= notional + fee
	l.position += notional
	l.total -= fee
	l.positions[pair] = &domain.Position{TradingPair: pair, EntryDate: date, Notional: notional}

	l.record(date, pair, domain.EventEnterPosition, notional, rank)
	return l.reconcile(snapshot)
}

// close exits a position: notional moves position→cash minus the fee.
func (l *ledger) close(date domain.Date, pair string, fee float64, rank *int) error {
	snapshot := l.snapshot(date, pair, domain.EventExitPosition)
	pos := l.positions[pair]

	l.position -= pos.Notional
	l.cash += pos.Notional - fee
	l.total -= fee
	delete(l.positions, pair)

	l.closedPositions++
	l.closedHoldDays += date.DaysSince(pos.EntryDate)

	l.record(date, pair, domain.EventExitPosition, pos.Notional, rank)
	return l.reconcile(snapshot)
}

// accrue credits a day's funding P&L to cash.
func (l *ledger) accrue(date domain.Date, pair string, pnl float64, rank *int) error {
	snapshot := l.snapshot(date, pair, domain.EventFundingAccrual)

	l.cash += pnl
	l.total += pnl

	l.record(date, pair, domain.EventFundingAccrual, pnl, rank)
	return l.reconcile(snapshot)
}

func (l *ledger) record(date domain.Date, pair, eventType string, amount float64, rank *int) {
	l.events = append(l.events, &domain.TradeEvent{
		BacktestID:           l.backtestID,
		Date:                 date,
		TradingPair:          pair,
		EventType:            eventType,
		Amount:               amount,
		CashBalanceAfter:     l.cash,
		PositionBalanceAfter: l.position,
		TotalBalanceAfter:    l.total,
		RankPosition:         rank,
	})
}

func (l *ledger) snapshot(date domain.Date, pair, eventType string) *ReconciliationError {
	return &ReconciliationError{
		BacktestID:  l.backtestID,
		Date:        date,
		TradingPair: pair,
		EventType:   eventType,
		Cash:        l.cash,
		Position:    l.position,
		Total:       l.total,
	}
}

func (l *ledger) reconcile(snapshot *ReconciliationError) error {
	drift := math.Abs(l.cash + l.position - l.total)
	if drift < reconcileTolerance {
		return nil
	}
	snapshot.Drift = drift
	return snapshot
}

// avgHoldDays is the mean holding period of closed positions, 0 when
// nothing ever closed.
func (l *ledger) avgHoldDays() float64 {
	if l.closedPositions == 0 {
		return 0
	}
	return float64(l.closedHoldDays) / float64(l.closedPositions)
}
