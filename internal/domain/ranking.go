package domain

// ComponentScore is one named component's score for a ranked pair.
// Scores persist as an ordered list, schema version 1, so user-defined
// strategies need no DDL changes.
type ComponentScore struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RankingRow represents one pair's score and position under a strategy
// on a date. Corresponds to the strategy_ranking table. Rankings are
// fully recomputed and overwritten per (strategy, date), never patched.
type RankingRow struct {
	StrategyName      string
	TradingPair       string
	Date              Date
	ComponentScores   []ComponentScore
	FinalRankingScore float64
	RankPosition      int // 1 = best; dense, strict, gapless
}
