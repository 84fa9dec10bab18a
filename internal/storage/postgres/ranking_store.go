package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// RankingStore implements storage.RankingStore using PostgreSQL.
// Component scores persist as an ordered JSONB list (schema version 1)
// so user-defined strategies need no DDL changes.
type RankingStore struct {
	pool *Pool
}

// NewRankingStore creates a new RankingStore.
func NewRankingStore(pool *Pool) *RankingStore {
	return &RankingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RankingStore = (*RankingStore)(nil)

// componentScoreDoc is the persisted JSONB shape.
type componentScoreDoc struct {
	Version int                      `json:"version"`
	Scores  []domain.ComponentScore  `json:"scores"`
}

const componentScoreSchemaVersion = 1

func marshalScores(scores []domain.ComponentScore) ([]byte, error) {
	return json.Marshal(componentScoreDoc{Version: componentScoreSchemaVersion, Scores: scores})
}

func unmarshalScores(data []byte) ([]domain.ComponentScore, error) {
	var doc componentScoreDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version != componentScoreSchemaVersion {
		return nil, fmt.Errorf("unsupported component score schema version %d", doc.Version)
	}
	return doc.Scores, nil
}

// ReplaceDay atomically deletes and rewrites all rows for (strategy, date).
func (s *RankingStore) ReplaceDay(ctx context.Context, strategy string, date domain.Date, rows []*domain.RankingRow) error {
	if strategy == "" || date.IsZero() {
		return storage.ErrInvalidInput
	}
	for _, r := range rows {
		if r == nil || r.StrategyName != strategy || !r.Date.Equal(date) {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM strategy_ranking WHERE strategy_name = $1 AND date = $2`,
		strategy, date.Time(),
	)
	if err != nil {
		return fmt.Errorf("delete ranking day %s %s: %w", strategy, date, err)
	}

	query := `
		INSERT INTO strategy_ranking (
			strategy_name, trading_pair, date,
			final_ranking_score, rank_position, component_scores
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, r := range rows {
		scores, err := marshalScores(r.ComponentScores)
		if err != nil {
			return fmt.Errorf("marshal component scores %s: %w", r.TradingPair, err)
		}
		_, err = tx.Exec(ctx, query,
			r.StrategyName, r.TradingPair, r.Date.Time(),
			r.FinalRankingScore, r.RankPosition, scores,
		)
		if err != nil {
			return fmt.Errorf("insert ranking row %s %s: %w", r.TradingPair, date, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const rankingColumns = `
	strategy_name, trading_pair, date,
	final_ranking_score, rank_position, component_scores
`

// GetByStrategyDate retrieves a day's ranking ordered by rank_position ASC.
func (s *RankingStore) GetByStrategyDate(ctx context.Context, strategy string, date domain.Date) ([]*domain.RankingRow, error) {
	query := `SELECT ` + rankingColumns + `
		FROM strategy_ranking
		WHERE strategy_name = $1 AND date = $2
		ORDER BY rank_position ASC`

	rows, err := s.pool.Query(ctx, query, strategy, date.Time())
	if err != nil {
		return nil, fmt.Errorf("query ranking %s %s: %w", strategy, date, err)
	}
	defer rows.Close()

	out := make([]*domain.RankingRow, 0)
	for rows.Next() {
		row, err := scanRankingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranking rows: %w", err)
	}
	return out, nil
}

// GetRank retrieves one pair's row. Returns ErrNotFound if not ranked.
func (s *RankingStore) GetRank(ctx context.Context, strategy, pair string, date domain.Date) (*domain.RankingRow, error) {
	query := `SELECT ` + rankingColumns + `
		FROM strategy_ranking
		WHERE strategy_name = $1 AND trading_pair = $2 AND date = $3`

	row, err := scanRankingRow(s.pool.QueryRow(ctx, query, strategy, pair, date.Time()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get rank %s %s %s: %w", strategy, pair, date, err)
	}
	return row, nil
}

func scanRankingRow(sc rowScanner) (*domain.RankingRow, error) {
	var row domain.RankingRow
	var date time.Time
	var scores []byte
	err := sc.Scan(
		&row.StrategyName, &row.TradingPair, &date,
		&row.FinalRankingScore, &row.RankPosition, &scores,
	)
	if err != nil {
		return nil, err
	}
	row.Date = domain.DateOf(date)
	row.ComponentScores, err = unmarshalScores(scores)
	if err != nil {
		return nil, fmt.Errorf("unmarshal component scores: %w", err)
	}
	return &row, nil
}
