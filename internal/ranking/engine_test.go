package ranking

import (
	"context"
	"errors"
	"math"
	"testing"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage/memory"
)

func f(v float64) *float64 { return &v }

func mustDate(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

// rawROI7Strategy ranks on roi_7d alone, no normalization.
func rawROI7Strategy() *domain.StrategyConfig {
	return &domain.StrategyConfig{
		Name: "raw_roi_7d",
		Components: []domain.Component{
			{Name: "roi", Indicators: []string{domain.IndicatorROI7D}, Weights: []float64{1}},
		},
		FinalCombination: domain.FinalCombination{Components: []string{"roi"}, Weights: []float64{1}},
	}
}

func seedRow(t *testing.T, store *memory.ReturnMetricStore, pair string, date domain.Date, roi7d *float64) {
	t.Helper()
	row := &domain.ReturnMetricRow{TradingPair: pair, Date: date, ROI7D: roi7d}
	if err := store.Upsert(context.Background(), row); err != nil {
		t.Fatalf("seed %s: %v", pair, err)
	}
}

func TestRank_OrdersByScoreDescending(t *testing.T) {
	store := memory.NewReturnMetricStore()
	date := mustDate(t, "2024-03-10")
	seedRow(t, store, "ETH_binance_bybit", date, f(0.4))
	seedRow(t, store, "BTC_binance_bybit", date, f(0.9))
	seedRow(t, store, "SOL_binance_okx", date, f(-0.2))

	rows, err := NewEngine(store).Rank(context.Background(), rawROI7Strategy(), date)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	wantOrder := []string{"BTC_binance_bybit", "ETH_binance_bybit", "SOL_binance_okx"}
	for i, want := range wantOrder {
		if rows[i].TradingPair != want {
			t.Errorf("rank %d: got %s, want %s", i+1, rows[i].TradingPair, want)
		}
		if rows[i].RankPosition != i+1 {
			t.Errorf("rank %d: position %d", i+1, rows[i].RankPosition)
		}
	}
	if rows[0].FinalRankingScore != 0.9 {
		t.Errorf("top score = %v, want 0.9", rows[0].FinalRankingScore)
	}
}

func TestRank_TieBreaksOnPairName(t *testing.T) {
	store := memory.NewReturnMetricStore()
	date := mustDate(t, "2024-03-10")
	seedRow(t, store, "ZEC_binance_bybit", date, f(0.5))
	seedRow(t, store, "ADA_binance_bybit", date, f(0.5))
	seedRow(t, store, "LTC_binance_bybit", date, f(0.5))

	rows, err := NewEngine(store).Rank(context.Background(), rawROI7Strategy(), date)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	wantOrder := []string{"ADA_binance_bybit", "LTC_binance_bybit", "ZEC_binance_bybit"}
	for i, want := range wantOrder {
		if rows[i].TradingPair != want {
			t.Errorf("rank %d: got %s, want %s", i+1, rows[i].TradingPair, want)
		}
	}
}

func TestRank_ExcludesPairsMissingIndicators(t *testing.T) {
	store := memory.NewReturnMetricStore()
	date := mustDate(t, "2024-03-10")
	seedRow(t, store, "BTC_binance_bybit", date, f(0.9))
	seedRow(t, store, "NEW_binance_bybit", date, nil) // too young for a 7d window

	rows, err := NewEngine(store).Rank(context.Background(), rawROI7Strategy(), date)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(rows) != 1 || rows[0].TradingPair != "BTC_binance_bybit" {
		t.Fatalf("got %+v, want only BTC_binance_bybit", rows)
	}
}

func TestRank_EmptyUniverse(t *testing.T) {
	store := memory.NewReturnMetricStore()
	rows, err := NewEngine(store).Rank(context.Background(), rawROI7Strategy(), mustDate(t, "2024-03-10"))
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}

func TestRank_InvalidConfigFailsFast(t *testing.T) {
	cfg := &domain.StrategyConfig{
		Name: "broken",
		Components: []domain.Component{
			{Name: "c", Indicators: []string{"no_such_indicator"}, Weights: []float64{1}},
		},
		FinalCombination: domain.FinalCombination{Components: []string{"c"}, Weights: []float64{1}},
	}
	_, err := NewEngine(memory.NewReturnMetricStore()).Rank(context.Background(), cfg, mustDate(t, "2024-03-10"))
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigError", err)
	}
	if cfgErr.Strategy != "broken" {
		t.Errorf("ConfigError.Strategy = %q", cfgErr.Strategy)
	}
}

func TestRank_DegenerateColumnNormalizesToZero(t *testing.T) {
	store := memory.NewReturnMetricStore()
	date := mustDate(t, "2024-03-10")
	// Every pair carries the same roi_7d, so the z-scored column, and
	// with it the final score, must be exactly zero for all pairs.
	seedRow(t, store, "BTC_binance_bybit", date, f(0.3))
	seedRow(t, store, "ETH_binance_bybit", date, f(0.3))

	cfg := rawROI7Strategy()
	cfg.Components[0].Normalize = true

	rows, err := NewEngine(store).Rank(context.Background(), cfg, date)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for _, row := range rows {
		if row.FinalRankingScore != 0 {
			t.Errorf("%s: score = %v, want exactly 0", row.TradingPair, row.FinalRankingScore)
		}
	}
	if rows[0].TradingPair != "BTC_binance_bybit" {
		t.Errorf("tie-break order wrong: %s first", rows[0].TradingPair)
	}
}

func TestRank_ComponentScoresCoverAllComponents(t *testing.T) {
	store := memory.NewReturnMetricStore()
	date := mustDate(t, "2024-03-10")
	row := &domain.ReturnMetricRow{
		TradingPair: "BTC_binance_bybit", Date: date,
		ROI1D: f(0.1), ROI7D: f(0.2),
	}
	if err := store.Upsert(context.Background(), row); err != nil {
		t.Fatal(err)
	}

	cfg := &domain.StrategyConfig{
		Name: "two_comp",
		Components: []domain.Component{
			{Name: "fast", Indicators: []string{domain.IndicatorROI1D}, Weights: []float64{2}},
			{Name: "slow", Indicators: []string{domain.IndicatorROI7D}, Weights: []float64{1}},
		},
		FinalCombination: domain.FinalCombination{Components: []string{"fast", "slow"}, Weights: []float64{0.5, 0.5}},
	}

	rows, err := NewEngine(store).Rank(context.Background(), cfg, date)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	scores := rows[0].ComponentScores
	if len(scores) != 2 || scores[0].Name != "fast" || scores[1].Name != "slow" {
		t.Fatalf("component scores = %+v", scores)
	}
	if math.Abs(scores[0].Value-0.2) > 1e-12 || math.Abs(scores[1].Value-0.2) > 1e-12 {
		t.Errorf("component values = %+v, want 0.2 each", scores)
	}
	if math.Abs(rows[0].FinalRankingScore-0.2) > 1e-12 {
		t.Errorf("final score = %v, want 0.2", rows[0].FinalRankingScore)
	}
}

// Five days of daily ROI history for three pairs: a steady earner, a
// choppy one and a steady loser. Ranking on normalized sharpe plus win
// rate on the fifth day must order them steady > choppy > loser.
func TestRank_SharpeWinrateOrdersByQuality(t *testing.T) {
	store := memory.NewReturnMetricStore()
	ctx := context.Background()

	series := map[string][]float64{
		"AAA_binance_bybit": {0.010, 0.012, 0.011, 0.013, 0.012},
		"BBB_binance_bybit": {0.020, -0.010, 0.015, -0.005, 0.010},
		"CCC_binance_bybit": {-0.010, -0.012, 0.001, -0.008, -0.011},
	}
	start := mustDate(t, "2024-03-06")
	last := start.AddDays(4)
	for pair, rois := range series {
		for i, roi := range rois {
			row := &domain.ReturnMetricRow{TradingPair: pair, Date: start.AddDays(i), ROI1D: f(roi)}
			if err := store.Upsert(ctx, row); err != nil {
				t.Fatal(err)
			}
		}
	}

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cfg, err := reg.Get("sharpe_winrate")
	if err != nil {
		t.Fatal(err)
	}

	rows, err := NewEngine(store).Rank(ctx, cfg, last)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	wantOrder := []string{"AAA_binance_bybit", "BBB_binance_bybit", "CCC_binance_bybit"}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, want := range wantOrder {
		if rows[i].TradingPair != want {
			t.Errorf("rank %d: got %s, want %s", i+1, rows[i].TradingPair, want)
		}
	}
	if rows[0].FinalRankingScore <= rows[1].FinalRankingScore ||
		rows[1].FinalRankingScore <= rows[2].FinalRankingScore {
		t.Errorf("scores not strictly ordered: %v %v %v",
			rows[0].FinalRankingScore, rows[1].FinalRankingScore, rows[2].FinalRankingScore)
	}
}

// Zero-volatility series keep their sign in the sharpe factor: a pair
// earning a constant +0.002 ranks above an alternating one, which in
// turn ranks above a pair losing a constant -0.0003. Were the flat
// series scored 0, the constant loser's sharpe would beat the
// alternator's genuine negative sharpe and invert the bottom of the
// board.
func TestRank_SharpeWinrateConstantSeries(t *testing.T) {
	store := memory.NewReturnMetricStore()
	ctx := context.Background()

	series := map[string][]float64{
		"AAA_binance_bybit": {0.002, 0.002, 0.002, 0.002, 0.002},
		"BBB_binance_bybit": {0.0005, -0.0018, 0.0005, -0.0018, 0.0005},
		"CCC_binance_bybit": {-0.0003, -0.0003, -0.0003, -0.0003, -0.0003},
	}
	start := mustDate(t, "2024-03-06")
	last := start.AddDays(4)
	for pair, rois := range series {
		for i, roi := range rois {
			row := &domain.ReturnMetricRow{TradingPair: pair, Date: start.AddDays(i), ROI1D: f(roi)}
			if err := store.Upsert(ctx, row); err != nil {
				t.Fatal(err)
			}
		}
	}

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cfg, err := reg.Get("sharpe_winrate")
	if err != nil {
		t.Fatal(err)
	}

	rows, err := NewEngine(store).Rank(ctx, cfg, last)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	wantOrder := []string{"AAA_binance_bybit", "BBB_binance_bybit", "CCC_binance_bybit"}
	for i, want := range wantOrder {
		if rows[i].TradingPair != want {
			t.Errorf("rank %d: got %s, want %s", i+1, rows[i].TradingPair, want)
		}
		if rows[i].RankPosition != i+1 {
			t.Errorf("rank %d: position %d", i+1, rows[i].RankPosition)
		}
	}
}

func TestRank_DerivedFactorNeedsHistory(t *testing.T) {
	store := memory.NewReturnMetricStore()
	ctx := context.Background()
	date := mustDate(t, "2024-03-10")

	// Two days of history ranks; a single day cannot carry a sharpe.
	for i := 0; i < 2; i++ {
		row := &domain.ReturnMetricRow{TradingPair: "OLD_binance_bybit", Date: date.AddDays(-i), ROI1D: f(0.01)}
		if err := store.Upsert(ctx, row); err != nil {
			t.Fatal(err)
		}
	}
	row := &domain.ReturnMetricRow{TradingPair: "NEW_binance_bybit", Date: date, ROI1D: f(0.05)}
	if err := store.Upsert(ctx, row); err != nil {
		t.Fatal(err)
	}

	cfg := &domain.StrategyConfig{
		Name: "sharpe_only",
		Components: []domain.Component{
			{Name: "sharpe", Indicators: []string{domain.IndicatorSharpe30D}, Weights: []float64{1}},
		},
		FinalCombination: domain.FinalCombination{Components: []string{"sharpe"}, Weights: []float64{1}},
	}

	rows, err := NewEngine(store).Rank(ctx, cfg, date)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(rows) != 1 || rows[0].TradingPair != "OLD_binance_bybit" {
		t.Fatalf("got %+v, want only OLD_binance_bybit", rows)
	}
}

func TestRank_Deterministic(t *testing.T) {
	store := memory.NewReturnMetricStore()
	date := mustDate(t, "2024-03-10")
	pairs := []string{"BTC_binance_bybit", "ETH_binance_bybit", "SOL_binance_okx", "XRP_binance_bybit"}
	for i, pair := range pairs {
		seedRow(t, store, pair, date, f(float64(i)*0.1))
	}

	engine := NewEngine(store)
	first, err := engine.Rank(context.Background(), rawROI7Strategy(), date)
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 5; run++ {
		again, err := engine.Rank(context.Background(), rawROI7Strategy(), date)
		if err != nil {
			t.Fatal(err)
		}
		for i := range first {
			if again[i].TradingPair != first[i].TradingPair || again[i].RankPosition != first[i].RankPosition {
				t.Fatalf("run %d: rank order changed at %d", run, i)
			}
		}
	}
}
