package domain

import (
	"fmt"
	"strings"
	"time"
)

// DifferentialObservation represents one hourly funding-rate differential
// between two exchanges for the same symbol. Corresponds to the
// funding_rate_diff table in ClickHouse. Immutable once written.
type DifferentialObservation struct {
	Symbol    string    // underlying symbol, e.g. "BTCUSDT"
	ExchangeA string    // long-funding side
	ExchangeB string    // short-funding side
	Timestamp time.Time // hour-aligned, UTC
	RateDiff  *float64  // signed differential, NULL when one side is unobserved
}

// TradingPair returns the {symbol}_{exchangeA}_{exchangeB} identifier.
func (o *DifferentialObservation) TradingPair() string {
	return MakeTradingPair(o.Symbol, o.ExchangeA, o.ExchangeB)
}

// MakeTradingPair builds the canonical cross-exchange pair identifier.
func MakeTradingPair(symbol, exchangeA, exchangeB string) string {
	return symbol + "_" + exchangeA + "_" + exchangeB
}

// SplitTradingPair decomposes a {symbol}_{exchangeA}_{exchangeB} identifier.
// The symbol itself never contains underscores.
func SplitTradingPair(pair string) (symbol, exchangeA, exchangeB string, err error) {
	parts := strings.Split(pair, "_")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed trading pair %q", pair)
	}
	return parts[0], parts[1], parts[2], nil
}
