package memory

import (
	"context"
	"sort"
	"sync"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// RankingStore is an in-memory implementation of storage.RankingStore.
type RankingStore struct {
	mu   sync.RWMutex
	data map[rankingDayKey][]*domain.RankingRow // rows kept sorted by rank ASC
}

type rankingDayKey struct {
	strategy string
	date     domain.Date
}

// NewRankingStore creates a new in-memory ranking store.
func NewRankingStore() *RankingStore {
	return &RankingStore{
		data: make(map[rankingDayKey][]*domain.RankingRow),
	}
}

func copyRankingRow(r *domain.RankingRow) *domain.RankingRow {
	cp := *r
	cp.ComponentScores = make([]domain.ComponentScore, len(r.ComponentScores))
	copy(cp.ComponentScores, r.ComponentScores)
	return &cp
}

// ReplaceDay atomically rewrites all rows for (strategy, date).
func (s *RankingStore) ReplaceDay(_ context.Context, strategy string, date domain.Date, rows []*domain.RankingRow) error {
	if strategy == "" || date.IsZero() {
		return storage.ErrInvalidInput
	}
	for _, r := range rows {
		if r == nil || r.StrategyName != strategy || !r.Date.Equal(date) {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rankingDayKey{strategy: strategy, date: date}
	if len(rows) == 0 {
		delete(s.data, key)
		return nil
	}
	stored := make([]*domain.RankingRow, len(rows))
	for i, r := range rows {
		stored[i] = copyRankingRow(r)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].RankPosition < stored[j].RankPosition })
	s.data[key] = stored
	return nil
}

// GetByStrategyDate retrieves a day's ranking ordered by rank_position ASC.
func (s *RankingStore) GetByStrategyDate(_ context.Context, strategy string, date domain.Date) ([]*domain.RankingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[rankingDayKey{strategy: strategy, date: date}]
	out := make([]*domain.RankingRow, len(rows))
	for i, r := range rows {
		out[i] = copyRankingRow(r)
	}
	return out, nil
}

// GetRank retrieves one pair's row. Returns ErrNotFound if not ranked.
func (s *RankingStore) GetRank(_ context.Context, strategy, pair string, date domain.Date) (*domain.RankingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data[rankingDayKey{strategy: strategy, date: date}] {
		if r.TradingPair == pair {
			return copyRankingRow(r), nil
		}
	}
	return nil, storage.ErrNotFound
}

var _ storage.RankingStore = (*RankingStore)(nil)
