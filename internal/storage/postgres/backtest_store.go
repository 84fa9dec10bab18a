package postgres

import (
	"context"
	"fmt"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// BacktestStore implements storage.BacktestStore using PostgreSQL.
type BacktestStore struct {
	pool *Pool
}

// NewBacktestStore creates a new BacktestStore.
func NewBacktestStore(pool *Pool) *BacktestStore {
	return &BacktestStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestStore = (*BacktestStore)(nil)

const resultColumns = `
	backtest_id, strategy_name, start_date, end_date,
	initial_capital, final_balance, total_return, roi,
	max_drawdown, sharpe_ratio, win_rate, total_trades,
	avg_hold_days, profit_days, loss_days, flat_days, config_params
`

// InsertResult adds a finished run. Returns ErrDuplicateKey if backtest_id exists.
func (s *BacktestStore) InsertResult(ctx context.Context, res *domain.BacktestResult) error {
	if res == nil || res.BacktestID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_results (` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.pool.Exec(ctx, query,
		res.BacktestID, res.StrategyName, res.StartDate.Time(), res.EndDate.Time(),
		res.InitialCapital, res.FinalBalance, res.TotalReturn, res.ROI,
		res.MaxDrawdown, res.SharpeRatio, res.WinRate, res.TotalTrades,
		res.AvgHoldDays, res.ProfitDays, res.LossDays, res.FlatDays, res.ConfigParams,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest result %s: %w", res.BacktestID, err)
	}
	return nil
}

// InsertTrades adds ledger events atomically.
func (s *BacktestStore) InsertTrades(ctx context.Context, events []*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.BacktestID == "" || e.EventType == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest_trades (
			backtest_id, date, trading_pair, event_type, amount,
			cash_balance_after, position_balance_after, total_balance_after, rank_position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.BacktestID, e.Date.Time(), e.TradingPair, e.EventType, e.Amount,
			e.CashBalanceAfter, e.PositionBalanceAfter, e.TotalBalanceAfter, e.RankPosition,
		)
		if err != nil {
			return fmt.Errorf("insert trade event %s %s: %w", e.BacktestID, e.Date, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetResult retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *BacktestStore) GetResult(ctx context.Context, backtestID string) (*domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM backtest_results WHERE backtest_id = $1`

	res, err := scanResultRow(s.pool.QueryRow(ctx, query, backtestID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest result %s: %w", backtestID, err)
	}
	return res, nil
}

// GetTrades retrieves a run's ledger ordered by date ASC, insertion order
// within a date.
func (s *BacktestStore) GetTrades(ctx context.Context, backtestID string) ([]*domain.TradeEvent, error) {
	query := `
		SELECT backtest_id, date, trading_pair, event_type, amount,
		       cash_balance_after, position_balance_after, total_balance_after, rank_position
		FROM backtest_trades
		WHERE backtest_id = $1
		ORDER BY date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, backtestID)
	if err != nil {
		return nil, fmt.Errorf("query backtest trades %s: %w", backtestID, err)
	}
	defer rows.Close()

	out := make([]*domain.TradeEvent, 0)
	for rows.Next() {
		var e domain.TradeEvent
		var date time.Time
		err := rows.Scan(
			&e.BacktestID, &date, &e.TradingPair, &e.EventType, &e.Amount,
			&e.CashBalanceAfter, &e.PositionBalanceAfter, &e.TotalBalanceAfter, &e.RankPosition,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade event: %w", err)
		}
		e.Date = domain.DateOf(date)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade events: %w", err)
	}
	return out, nil
}

// ListResultsByStrategy retrieves runs for a strategy, newest first.
func (s *BacktestStore) ListResultsByStrategy(ctx context.Context, strategy string) ([]*domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + `
		FROM backtest_results
		WHERE strategy_name = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, strategy)
	if err != nil {
		return nil, fmt.Errorf("query backtest results %s: %w", strategy, err)
	}
	defer rows.Close()

	var out []*domain.BacktestResult
	for rows.Next() {
		res, err := scanResultRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest result: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest results: %w", err)
	}
	return out, nil
}

func scanResultRow(sc rowScanner) (*domain.BacktestResult, error) {
	var res domain.BacktestResult
	var start, end time.Time
	err := sc.Scan(
		&res.BacktestID, &res.StrategyName, &start, &end,
		&res.InitialCapital, &res.FinalBalance, &res.TotalReturn, &res.ROI,
		&res.MaxDrawdown, &res.SharpeRatio, &res.WinRate, &res.TotalTrades,
		&res.AvgHoldDays, &res.ProfitDays, &res.LossDays, &res.FlatDays, &res.ConfigParams,
	)
	if err != nil {
		return nil, err
	}
	res.StartDate = domain.DateOf(start)
	res.EndDate = domain.DateOf(end)
	return &res, nil
}
