package storage

import (
	"context"
	"time"

	"funding-arb-lab/internal/domain"
)

// DifferentialStore provides access to funding_rate_diff storage.
// Observations are immutable once written.
type DifferentialStore interface {
	// InsertBulk adds observations. Fails the entire batch on any
	// duplicate (symbol, exchange_a, exchange_b, timestamp).
	InsertBulk(ctx context.Context, obs []*domain.DifferentialObservation) error

	// GetByPairRange retrieves a pair's observations with timestamp in
	// [from, to), ordered by timestamp ASC. NULL rate diffs are returned
	// as nil, not filtered.
	GetByPairRange(ctx context.Context, pair string, from, to time.Time) ([]*domain.DifferentialObservation, error)

	// FirstTimestamp returns the pair's earliest observation timestamp.
	// Returns ErrNotFound if the pair has no history.
	FirstTimestamp(ctx context.Context, pair string) (time.Time, error)

	// DailyReturn sums the pair's non-NULL diffs stamped within day.
	// Returns nil (no error) when the day holds zero non-NULL observations.
	DailyReturn(ctx context.Context, pair string, day domain.Date) (*float64, error)

	// ListPairs returns every distinct trading pair with at least one
	// observation strictly before until, sorted ascending. Callers pass
	// a day's exclusive end bound, so a pair whose history starts at
	// hour 0 of day N is listed from day N onward, not earlier.
	ListPairs(ctx context.Context, until time.Time) ([]string, error)

	// LatestTimestamp returns the newest observation timestamp across all
	// pairs. Returns ErrNotFound on an empty store.
	LatestTimestamp(ctx context.Context) (time.Time, error)
}

// ReturnMetricStore provides access to return_metrics storage.
type ReturnMetricStore interface {
	// Upsert writes a row, overwriting any existing (trading_pair, date)
	// row. Last writer wins.
	Upsert(ctx context.Context, row *domain.ReturnMetricRow) error

	// GetByPairDate retrieves one row. Returns ErrNotFound if not exists.
	GetByPairDate(ctx context.Context, pair string, date domain.Date) (*domain.ReturnMetricRow, error)

	// GetByDate retrieves every pair's row for a date, ordered by
	// trading_pair ASC. Empty slice when no rows exist.
	GetByDate(ctx context.Context, date domain.Date) ([]*domain.ReturnMetricRow, error)

	// ListPairsByDate returns the trading pairs holding a row for date,
	// sorted ascending.
	ListPairsByDate(ctx context.Context, date domain.Date) ([]string, error)

	// GetByPairRange retrieves one pair's rows with from <= date <= to,
	// ordered by date ASC. Empty slice when no rows exist.
	GetByPairRange(ctx context.Context, pair string, from, to domain.Date) ([]*domain.ReturnMetricRow, error)
}

// RankingStore provides access to strategy_ranking storage.
type RankingStore interface {
	// ReplaceDay atomically deletes and rewrites all rows for
	// (strategy, date). Rankings are never partially updated.
	ReplaceDay(ctx context.Context, strategy string, date domain.Date, rows []*domain.RankingRow) error

	// GetByStrategyDate retrieves a day's ranking ordered by
	// rank_position ASC. Empty slice when no ranking exists for the day.
	GetByStrategyDate(ctx context.Context, strategy string, date domain.Date) ([]*domain.RankingRow, error)

	// GetRank retrieves one pair's row. Returns ErrNotFound if the pair
	// was not ranked under (strategy, date).
	GetRank(ctx context.Context, strategy, pair string, date domain.Date) (*domain.RankingRow, error)
}

// BacktestStore provides access to backtest_results and backtest_trades
// storage. Both tables are append-only.
type BacktestStore interface {
	// InsertResult adds a finished run. Returns ErrDuplicateKey if
	// backtest_id exists.
	InsertResult(ctx context.Context, res *domain.BacktestResult) error

	// InsertTrades adds ledger events atomically. Order within the batch
	// is preserved on read.
	InsertTrades(ctx context.Context, events []*domain.TradeEvent) error

	// GetResult retrieves a run by ID. Returns ErrNotFound if not exists.
	GetResult(ctx context.Context, backtestID string) (*domain.BacktestResult, error)

	// GetTrades retrieves a run's ledger ordered by date ASC, insertion
	// order within a date.
	GetTrades(ctx context.Context, backtestID string) ([]*domain.TradeEvent, error)

	// ListResultsByStrategy retrieves runs for a strategy, newest first.
	ListResultsByStrategy(ctx context.Context, strategy string) ([]*domain.BacktestResult, error)
}
