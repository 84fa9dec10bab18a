package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// DifferentialStore is an in-memory implementation of storage.DifferentialStore.
type DifferentialStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DifferentialObservation // keyed by composite key
}

// NewDifferentialStore creates a new in-memory differential store.
func NewDifferentialStore() *DifferentialStore {
	return &DifferentialStore{
		data: make(map[string]*domain.DifferentialObservation),
	}
}

// obsKey generates a unique key for an observation.
func obsKey(symbol, exchangeA, exchangeB string, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", symbol, exchangeA, exchangeB, ts.UTC().Unix())
}

// InsertBulk adds observations. Fails entire batch on any duplicate.
func (s *DifferentialStore) InsertBulk(_ context.Context, obs []*domain.DifferentialObservation) error {
	if len(obs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.Symbol == "" || o.ExchangeA == "" || o.ExchangeB == "" {
			return storage.ErrInvalidInput
		}
		key := obsKey(o.Symbol, o.ExchangeA, o.ExchangeB, o.Timestamp)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, o := range obs {
		cp := *o
		if o.RateDiff != nil {
			v := *o.RateDiff
			cp.RateDiff = &v
		}
		s.data[obsKey(o.Symbol, o.ExchangeA, o.ExchangeB, o.Timestamp)] = &cp
	}
	return nil
}

// GetByPairRange retrieves observations with timestamp in [from, to),
// ordered by timestamp ASC.
func (s *DifferentialStore) GetByPairRange(_ context.Context, pair string, from, to time.Time) ([]*domain.DifferentialObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.DifferentialObservation
	for _, o := range s.data {
		if o.TradingPair() != pair {
			continue
		}
		if o.Timestamp.Before(from) || !o.Timestamp.Before(to) {
			continue
		}
		cp := *o
		if o.RateDiff != nil {
			v := *o.RateDiff
			cp.RateDiff = &v
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// FirstTimestamp returns the pair's earliest observation timestamp.
func (s *DifferentialStore) FirstTimestamp(_ context.Context, pair string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first time.Time
	found := false
	for _, o := range s.data {
		if o.TradingPair() != pair {
			continue
		}
		if !found || o.Timestamp.Before(first) {
			first = o.Timestamp
			found = true
		}
	}
	if !found {
		return time.Time{}, storage.ErrNotFound
	}
	return first, nil
}

// DailyReturn sums the pair's non-NULL diffs stamped within day.
func (s *DifferentialStore) DailyReturn(_ context.Context, pair string, day domain.Date) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := day.Time(), day.End()
	var sum float64
	seen := false
	for _, o := range s.data {
		if o.TradingPair() != pair || o.RateDiff == nil {
			continue
		}
		if o.Timestamp.Before(start) || !o.Timestamp.Before(end) {
			continue
		}
		sum += *o.RateDiff
		seen = true
	}
	if !seen {
		return nil, nil
	}
	return &sum, nil
}

// ListPairs returns distinct pairs observed strictly before until, sorted ASC.
func (s *DifferentialStore) ListPairs(_ context.Context, until time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, o := range s.data {
		if !o.Timestamp.Before(until) {
			continue
		}
		set[o.TradingPair()] = struct{}{}
	}
	pairs := make([]string, 0, len(set))
	for p := range set {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs, nil
}

// LatestTimestamp returns the newest observation timestamp.
func (s *DifferentialStore) LatestTimestamp(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	for _, o := range s.data {
		if !found || o.Timestamp.After(latest) {
			latest = o.Timestamp
			found = true
		}
	}
	if !found {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

var _ storage.DifferentialStore = (*DifferentialStore)(nil)
