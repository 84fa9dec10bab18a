package clickhouse

import (
	"context"
	"fmt"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// DifferentialStore implements storage.DifferentialStore using ClickHouse.
// MergeTree enforces no uniqueness at insert time; duplicates are detected
// by explicit existence checks before the batch, and ReplacingMergeTree
// collapses anything that slips through on merge.
type DifferentialStore struct {
	conn *Conn
}

// NewDifferentialStore creates a new DifferentialStore.
func NewDifferentialStore(conn *Conn) *DifferentialStore {
	return &DifferentialStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DifferentialStore = (*DifferentialStore)(nil)

// InsertBulk adds observations. Fails entire batch on any duplicate.
func (s *DifferentialStore) InsertBulk(ctx context.Context, obs []*domain.DifferentialObservation) error {
	if len(obs) == 0 {
		return nil
	}

	type key struct {
		symbol, exchangeA, exchangeB string
		ts                           int64
	}
	seen := make(map[key]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.Symbol == "" || o.ExchangeA == "" || o.ExchangeB == "" {
			return storage.ErrInvalidInput
		}
		k := key{o.Symbol, o.ExchangeA, o.ExchangeB, o.Timestamp.UTC().Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, o := range obs {
		exists, err := s.exists(ctx, o)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO funding_rate_diff (symbol, exchange_a, exchange_b, timestamp, rate_diff)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		if err := batch.Append(o.Symbol, o.ExchangeA, o.ExchangeB, o.Timestamp.UTC(), o.RateDiff); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *DifferentialStore) exists(ctx context.Context, o *domain.DifferentialObservation) (bool, error) {
	query := `
		SELECT count()
		FROM funding_rate_diff
		WHERE symbol = ? AND exchange_a = ? AND exchange_b = ? AND timestamp = ?
	`
	var count uint64
	err := s.conn.QueryRow(ctx, query, o.Symbol, o.ExchangeA, o.ExchangeB, o.Timestamp.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByPairRange retrieves a pair's observations with timestamp in
// [from, to), ordered by timestamp ASC.
func (s *DifferentialStore) GetByPairRange(ctx context.Context, pair string, from, to time.Time) ([]*domain.DifferentialObservation, error) {
	symbol, exchangeA, exchangeB, err := domain.SplitTradingPair(pair)
	if err != nil {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT symbol, exchange_a, exchange_b, timestamp, rate_diff
		FROM funding_rate_diff
		WHERE symbol = ? AND exchange_a = ? AND exchange_b = ?
		  AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, exchangeA, exchangeB, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query observations by range: %w", err)
	}
	defer rows.Close()

	var out []*domain.DifferentialObservation
	for rows.Next() {
		var o domain.DifferentialObservation
		var ts time.Time
		if err := rows.Scan(&o.Symbol, &o.ExchangeA, &o.ExchangeB, &ts, &o.RateDiff); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Timestamp = ts.UTC()
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// FirstTimestamp returns the pair's earliest observation timestamp.
func (s *DifferentialStore) FirstTimestamp(ctx context.Context, pair string) (time.Time, error) {
	symbol, exchangeA, exchangeB, err := domain.SplitTradingPair(pair)
	if err != nil {
		return time.Time{}, storage.ErrInvalidInput
	}

	query := `
		SELECT min(timestamp), count()
		FROM funding_rate_diff
		WHERE symbol = ? AND exchange_a = ? AND exchange_b = ?
	`
	var first time.Time
	var count uint64
	if err := s.conn.QueryRow(ctx, query, symbol, exchangeA, exchangeB).Scan(&first, &count); err != nil {
		return time.Time{}, fmt.Errorf("query first timestamp: %w", err)
	}
	if count == 0 {
		return time.Time{}, storage.ErrNotFound
	}
	return first.UTC(), nil
}

// DailyReturn sums the pair's non-NULL diffs stamped within day.
func (s *DifferentialStore) DailyReturn(ctx context.Context, pair string, day domain.Date) (*float64, error) {
	symbol, exchangeA, exchangeB, err := domain.SplitTradingPair(pair)
	if err != nil {
		return nil, storage.ErrInvalidInput
	}

	// count(rate_diff) counts only non-NULL values.
	query := `
		SELECT sum(rate_diff), count(rate_diff)
		FROM funding_rate_diff
		WHERE symbol = ? AND exchange_a = ? AND exchange_b = ?
		  AND timestamp >= ? AND timestamp < ?
	`
	var sum *float64
	var nonNull uint64
	err = s.conn.QueryRow(ctx, query, symbol, exchangeA, exchangeB, day.Time(), day.End()).Scan(&sum, &nonNull)
	if err != nil {
		return nil, fmt.Errorf("query daily return: %w", err)
	}
	if nonNull == 0 {
		return nil, nil
	}
	return sum, nil
}

// ListPairs returns distinct pairs observed strictly before until, sorted ASC.
func (s *DifferentialStore) ListPairs(ctx context.Context, until time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT symbol, exchange_a, exchange_b
		FROM funding_rate_diff
		WHERE timestamp < ?
		ORDER BY symbol, exchange_a, exchange_b
	`

	rows, err := s.conn.Query(ctx, query, until.UTC())
	if err != nil {
		return nil, fmt.Errorf("query distinct pairs: %w", err)
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var symbol, exchangeA, exchangeB string
		if err := rows.Scan(&symbol, &exchangeA, &exchangeB); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, domain.MakeTradingPair(symbol, exchangeA, exchangeB))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pairs: %w", err)
	}
	return pairs, nil
}

// LatestTimestamp returns the newest observation timestamp.
func (s *DifferentialStore) LatestTimestamp(ctx context.Context) (time.Time, error) {
	var latest time.Time
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT max(timestamp), count() FROM funding_rate_diff`).Scan(&latest, &count)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest timestamp: %w", err)
	}
	if count == 0 {
		return time.Time{}, storage.ErrNotFound
	}
	return latest.UTC(), nil
}
