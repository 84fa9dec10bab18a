package memory

import (
	"context"
	"sort"
	"sync"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// ReturnMetricStore is an in-memory implementation of storage.ReturnMetricStore.
type ReturnMetricStore struct {
	mu   sync.RWMutex
	data map[metricKey]*domain.ReturnMetricRow
}

type metricKey struct {
	pair string
	date domain.Date
}

// NewReturnMetricStore creates a new in-memory return metric store.
func NewReturnMetricStore() *ReturnMetricStore {
	return &ReturnMetricStore{
		data: make(map[metricKey]*domain.ReturnMetricRow),
	}
}

func copyMetricRow(r *domain.ReturnMetricRow) *domain.ReturnMetricRow {
	cp := *r
	cp.Return1D, cp.ROI1D = copyFloat(r.Return1D), copyFloat(r.ROI1D)
	cp.Return2D, cp.ROI2D = copyFloat(r.Return2D), copyFloat(r.ROI2D)
	cp.Return7D, cp.ROI7D = copyFloat(r.Return7D), copyFloat(r.ROI7D)
	cp.Return14D, cp.ROI14D = copyFloat(r.Return14D), copyFloat(r.ROI14D)
	cp.Return30D, cp.ROI30D = copyFloat(r.Return30D), copyFloat(r.ROI30D)
	cp.ReturnAll, cp.ROIAll = copyFloat(r.ReturnAll), copyFloat(r.ROIAll)
	return &cp
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// Upsert writes a row, overwriting any existing (trading_pair, date) row.
func (s *ReturnMetricStore) Upsert(_ context.Context, row *domain.ReturnMetricRow) error {
	if row == nil || row.TradingPair == "" || row.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[metricKey{pair: row.TradingPair, date: row.Date}] = copyMetricRow(row)
	return nil
}

// GetByPairDate retrieves one row. Returns ErrNotFound if not exists.
func (s *ReturnMetricStore) GetByPairDate(_ context.Context, pair string, date domain.Date) (*domain.ReturnMetricRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.data[metricKey{pair: pair, date: date}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyMetricRow(row), nil
}

// GetByDate retrieves every pair's row for a date, ordered by trading_pair ASC.
func (s *ReturnMetricStore) GetByDate(_ context.Context, date domain.Date) ([]*domain.ReturnMetricRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ReturnMetricRow, 0)
	for key, row := range s.data {
		if key.date == date {
			out = append(out, copyMetricRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradingPair < out[j].TradingPair })
	return out, nil
}

// ListPairsByDate returns pairs holding a row for date, sorted ASC.
func (s *ReturnMetricStore) ListPairsByDate(_ context.Context, date domain.Date) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pairs []string
	for key := range s.data {
		if key.date == date {
			pairs = append(pairs, key.pair)
		}
	}
	sort.Strings(pairs)
	return pairs, nil
}

// GetByPairRange retrieves one pair's rows with from <= date <= to, ordered by date ASC.
func (s *ReturnMetricStore) GetByPairRange(_ context.Context, pair string, from, to domain.Date) ([]*domain.ReturnMetricRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ReturnMetricRow, 0)
	for key, row := range s.data {
		if key.pair != pair {
			continue
		}
		if key.date.Before(from) || key.date.After(to) {
			continue
		}
		out = append(out, copyMetricRow(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

var _ storage.ReturnMetricStore = (*ReturnMetricStore)(nil)
