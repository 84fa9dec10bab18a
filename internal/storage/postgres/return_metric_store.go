package postgres

import (
	"context"
	"fmt"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// ReturnMetricStore implements storage.ReturnMetricStore using PostgreSQL.
type ReturnMetricStore struct {
	pool *Pool
}

// NewReturnMetricStore creates a new ReturnMetricStore.
func NewReturnMetricStore(pool *Pool) *ReturnMetricStore {
	return &ReturnMetricStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReturnMetricStore = (*ReturnMetricStore)(nil)

const metricColumns = `
	trading_pair, date,
	return_1d, roi_1d, return_2d, roi_2d, return_7d, roi_7d,
	return_14d, roi_14d, return_30d, roi_30d, return_all, roi_all
`

// Upsert writes a row, overwriting any existing (trading_pair, date) row.
func (s *ReturnMetricStore) Upsert(ctx context.Context, row *domain.ReturnMetricRow) error {
	if row == nil || row.TradingPair == "" || row.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO return_metrics (` + metricColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (trading_pair, date) DO UPDATE SET
			return_1d = EXCLUDED.return_1d, roi_1d = EXCLUDED.roi_1d,
			return_2d = EXCLUDED.return_2d, roi_2d = EXCLUDED.roi_2d,
			return_7d = EXCLUDED.return_7d, roi_7d = EXCLUDED.roi_7d,
			return_14d = EXCLUDED.return_14d, roi_14d = EXCLUDED.roi_14d,
			return_30d = EXCLUDED.return_30d, roi_30d = EXCLUDED.roi_30d,
			return_all = EXCLUDED.return_all, roi_all = EXCLUDED.roi_all
	`

	_, err := s.pool.Exec(ctx, query,
		row.TradingPair, row.Date.Time(),
		row.Return1D, row.ROI1D, row.Return2D, row.ROI2D, row.Return7D, row.ROI7D,
		row.Return14D, row.ROI14D, row.Return30D, row.ROI30D, row.ReturnAll, row.ROIAll,
	)
	if err != nil {
		return fmt.Errorf("upsert return metrics %s %s: %w", row.TradingPair, row.Date, err)
	}
	return nil
}

// GetByPairDate retrieves one row. Returns ErrNotFound if not exists.
func (s *ReturnMetricStore) GetByPairDate(ctx context.Context, pair string, date domain.Date) (*domain.ReturnMetricRow, error) {
	query := `SELECT ` + metricColumns + ` FROM return_metrics WHERE trading_pair = $1 AND date = $2`

	row, err := scanMetricRow(s.pool.QueryRow(ctx, query, pair, date.Time()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get return metrics %s %s: %w", pair, date, err)
	}
	return row, nil
}

// GetByDate retrieves every pair's row for a date, ordered by trading_pair ASC.
func (s *ReturnMetricStore) GetByDate(ctx context.Context, date domain.Date) ([]*domain.ReturnMetricRow, error) {
	query := `SELECT ` + metricColumns + ` FROM return_metrics WHERE date = $1 ORDER BY trading_pair ASC`

	rows, err := s.pool.Query(ctx, query, date.Time())
	if err != nil {
		return nil, fmt.Errorf("query return metrics by date %s: %w", date, err)
	}
	defer rows.Close()

	out := make([]*domain.ReturnMetricRow, 0)
	for rows.Next() {
		row, err := scanMetricRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return metrics row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return metrics rows: %w", err)
	}
	return out, nil
}

// ListPairsByDate returns pairs holding a row for date, sorted ASC.
func (s *ReturnMetricStore) ListPairsByDate(ctx context.Context, date domain.Date) ([]string, error) {
	query := `SELECT trading_pair FROM return_metrics WHERE date = $1 ORDER BY trading_pair ASC`

	rows, err := s.pool.Query(ctx, query, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list pairs by date %s: %w", date, err)
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var pair string
		if err := rows.Scan(&pair); err != nil {
			return nil, fmt.Errorf("scan trading pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trading pairs: %w", err)
	}
	return pairs, nil
}

// GetByPairRange retrieves one pair's rows with from <= date <= to, ordered by date ASC.
func (s *ReturnMetricStore) GetByPairRange(ctx context.Context, pair string, from, to domain.Date) ([]*domain.ReturnMetricRow, error) {
	query := `SELECT ` + metricColumns + ` FROM return_metrics
		WHERE trading_pair = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`

	rows, err := s.pool.Query(ctx, query, pair, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query return metrics range %s [%s, %s]: %w", pair, from, to, err)
	}
	defer rows.Close()

	out := make([]*domain.ReturnMetricRow, 0)
	for rows.Next() {
		row, err := scanMetricRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return metrics row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return metrics rows: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetricRow(sc rowScanner) (*domain.ReturnMetricRow, error) {
	var row domain.ReturnMetricRow
	var date time.Time
	err := sc.Scan(
		&row.TradingPair, &date,
		&row.Return1D, &row.ROI1D, &row.Return2D, &row.ROI2D, &row.Return7D, &row.ROI7D,
		&row.Return14D, &row.ROI14D, &row.Return30D, &row.ROI30D, &row.ReturnAll, &row.ROIAll,
	)
	if err != nil {
		return nil, err
	}
	row.Date = domain.DateOf(date)
	return &row, nil
}
