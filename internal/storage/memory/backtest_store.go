package memory

import (
	"context"
	"sort"
	"sync"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// BacktestStore is an in-memory implementation of storage.BacktestStore.
type BacktestStore struct {
	mu      sync.RWMutex
	results map[string]*domain.BacktestResult
	trades  map[string][]*domain.TradeEvent // insertion order preserved
	order   []string                        // result insertion order, newest last
}

// NewBacktestStore creates a new in-memory backtest store.
func NewBacktestStore() *BacktestStore {
	return &BacktestStore{
		results: make(map[string]*domain.BacktestResult),
		trades:  make(map[string][]*domain.TradeEvent),
	}
}

func copyTradeEvent(e *domain.TradeEvent) *domain.TradeEvent {
	cp := *e
	if e.RankPosition != nil {
		v := *e.RankPosition
		cp.RankPosition = &v
	}
	return &cp
}

// InsertResult adds a finished run. Returns ErrDuplicateKey if backtest_id exists.
func (s *BacktestStore) InsertResult(_ context.Context, res *domain.BacktestResult) error {
	if res == nil || res.BacktestID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[res.BacktestID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *res
	s.results[res.BacktestID] = &cp
	s.order = append(s.order, res.BacktestID)
	return nil
}

// InsertTrades adds ledger events atomically.
func (s *BacktestStore) InsertTrades(_ context.Context, events []*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.BacktestID == "" || e.EventType == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.trades[e.BacktestID] = append(s.trades[e.BacktestID], copyTradeEvent(e))
	}
	return nil
}

// GetResult retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *BacktestStore) GetResult(_ context.Context, backtestID string) (*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[backtestID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

// GetTrades retrieves a run's ledger ordered by date ASC, insertion order
// within a date.
func (s *BacktestStore) GetTrades(_ context.Context, backtestID string) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.trades[backtestID]
	out := make([]*domain.TradeEvent, len(events))
	for i, e := range events {
		out[i] = copyTradeEvent(e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListResultsByStrategy retrieves runs for a strategy, newest first.
func (s *BacktestStore) ListResultsByStrategy(_ context.Context, strategy string) ([]*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.BacktestResult
	for i := len(s.order) - 1; i >= 0; i-- {
		res := s.results[s.order[i]]
		if res.StrategyName == strategy {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ storage.BacktestStore = (*BacktestStore)(nil)
