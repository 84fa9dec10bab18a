package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"funding-arb-lab/internal/backtest"
	"funding-arb-lab/internal/config"
	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/logging"
	"funding-arb-lab/internal/observability"
	"funding-arb-lab/internal/ranking"
	"funding-arb-lab/internal/reporting"
	"funding-arb-lab/internal/storage"
	"funding-arb-lab/internal/storage/memory"
	"funding-arb-lab/internal/storage/migrations"
	pgstore "funding-arb-lab/internal/storage/postgres"
)

func main() {
	startDate := flag.String("start-date", "", "First simulated day (YYYY-MM-DD, required)")
	endDate := flag.String("end-date", "yesterday", "Last simulated day (YYYY-MM-DD or 'yesterday')")
	strategies := flag.String("strategies", "all", "Comma-separated strategy names, or 'all'")
	strategiesFile := flag.String("strategies-file", "", "YAML file with additional strategy configs")
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	outputDir := flag.String("output-dir", "", "Report output directory (overrides config)")
	noReport := flag.Bool("no-report", false, "Skip report generation")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	initialCapital := flag.Float64("initial-capital", 0, "Starting cash (overrides config)")
	entryTopN := flag.Int("entry-top-n", 0, "Enter pairs ranked 1..N (overrides config)")
	exitThreshold := flag.Int("exit-threshold", 0, "Exit pairs ranked below this (overrides config)")
	maxPositions := flag.Int("max-positions", 0, "Concurrent position cap (overrides config)")
	sizingMode := flag.String("sizing-mode", "", "Position sizing: percentage or fixed_amount (overrides config)")
	positionSize := flag.Float64("position-size", 0, "Fraction of total balance per entry (overrides config)")
	fixedAmount := flag.Float64("fixed-amount", 0, "Fixed notional per entry (overrides config)")
	feeRate := flag.Float64("fee-rate", -1, "Fee rate per trade side (overrides config)")

	flag.Parse()

	logging.Init(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *strategiesFile == "" {
		*strategiesFile = cfg.StrategiesFile
	}
	applyOverrides(&cfg.Backtest, *initialCapital, *entryTopN, *exitThreshold, *maxPositions, *sizingMode, *positionSize, *fixedAmount, *feeRate)

	if *startDate == "" {
		fmt.Fprintln(os.Stderr, "--start-date is required")
		flag.Usage()
		os.Exit(2)
	}

	registry, err := buildRegistry(*strategiesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("build strategy registry")
	}
	cfgs, err := registry.Resolve(ranking.ParseSelector(*strategies))
	if err != nil {
		log.Fatal().Err(err).Str("strategies", *strategies).Msg("resolve strategies")
	}

	ctx, cancel := signalContext()
	defer cancel()

	stores, cleanup, err := buildStores(ctx, cfg, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("connect storage")
	}
	defer cleanup()

	start, err := resolveDate(*startDate)
	if err != nil {
		log.Fatal().Err(err).Str("start-date", *startDate).Msg("resolve start date")
	}
	end, err := resolveDate(*endDate)
	if err != nil {
		log.Fatal().Err(err).Str("end-date", *endDate).Msg("resolve end date")
	}

	sim := backtest.NewSimulator(stores.metrics, stores.rankings)
	failed := 0
	ran := make([]string, 0, len(cfgs))
	for _, sc := range cfgs {
		btCfg := cfg.BacktestConfig(sc.Name, start, end)
		log.Info().
			Str("strategy", sc.Name).
			Str("start", start.String()).
			Str("end", end.String()).
			Float64("initial_capital", btCfg.InitialCapital).
			Msg("running backtest")

		out, err := sim.Run(ctx, btCfg)
		if err != nil {
			var recErr *backtest.ReconciliationError
			if errors.As(err, &recErr) {
				observability.RecordReconciliationFailure()
				log.Error().
					Str("strategy", sc.Name).
					Str("date", recErr.Date.String()).
					Str("pair", recErr.TradingPair).
					Float64("drift", recErr.Drift).
					Msg("ledger reconciliation failed, run discarded")
			} else {
				log.Error().Err(err).Str("strategy", sc.Name).Msg("backtest failed")
			}
			observability.RecordBacktestRun(sc.Name, "error", 0)
			failed++
			continue
		}

		if err := backtest.Store(ctx, stores.backtests, out); err != nil {
			log.Error().Err(err).Str("strategy", sc.Name).Msg("persist backtest")
			failed++
			continue
		}
		observability.RecordBacktestRun(sc.Name, "ok", len(out.Events))
		ran = append(ran, sc.Name)

		log.Info().
			Str("strategy", sc.Name).
			Str("backtest_id", out.Result.BacktestID).
			Float64("total_return", out.Result.TotalReturn).
			Float64("roi", out.Result.ROI).
			Float64("sharpe", out.Result.SharpeRatio).
			Float64("win_rate", out.Result.WinRate).
			Int("trades", out.Result.TotalTrades).
			Msg("backtest finished")
	}

	if !*noReport && len(ran) > 0 {
		gen := reporting.NewGenerator(stores.backtests)
		report, err := gen.Generate(ctx, ran)
		if err != nil {
			log.Fatal().Err(err).Msg("generate report")
		}
		if err := gen.WriteFiles(ctx, cfg.OutputDir, report); err != nil {
			log.Fatal().Err(err).Msg("write report files")
		}
		log.Info().Str("dir", cfg.OutputDir).Msg("report written")
	}

	if failed > 0 {
		log.Error().Int("failed", failed).Int("total", len(cfgs)).Msg("some backtests failed")
		os.Exit(1)
	}
}

type backtestStores struct {
	metrics   storage.ReturnMetricStore
	rankings  storage.RankingStore
	backtests storage.BacktestStore
}

func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (*backtestStores, func(), error) {
	if useMemory {
		return &backtestStores{
			metrics:   memory.NewReturnMetricStore(),
			rankings:  memory.NewRankingStore(),
			backtests: memory.NewBacktestStore(),
		}, func() {}, nil
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return &backtestStores{
		metrics:   pgstore.NewReturnMetricStore(pool),
		rankings:  pgstore.NewRankingStore(pool),
		backtests: pgstore.NewBacktestStore(pool),
	}, pool.Close, nil
}

// applyOverrides layers non-zero flag values over the config defaults.
// fee-rate uses -1 as its unset sentinel since 0 is a legal rate.
func applyOverrides(d *config.BacktestDefaults, capital float64, topN, exit, maxPos int, sizing string, size, fixed, fee float64) {
	if capital > 0 {
		d.InitialCapital = capital
	}
	if topN > 0 {
		d.EntryTopN = topN
	}
	if exit > 0 {
		d.ExitThreshold = exit
	}
	if maxPos > 0 {
		d.MaxPositions = maxPos
	}
	if sizing != "" {
		d.SizingMode = sizing
	}
	if size > 0 {
		d.PositionSize = size
	}
	if fixed > 0 {
		d.FixedAmount = fixed
	}
	if fee >= 0 {
		d.FeeRate = fee
	}
}

func buildRegistry(strategiesFile string) (*ranking.Registry, error) {
	var extra []domain.StrategyConfig
	if strategiesFile != "" {
		loaded, err := ranking.LoadStrategiesFile(strategiesFile)
		if err != nil {
			return nil, err
		}
		extra = loaded
	}
	return ranking.NewRegistry(extra...)
}

func resolveDate(arg string) (domain.Date, error) {
	if arg == "yesterday" {
		return domain.Today().AddDays(-1), nil
	}
	return domain.ParseDate(arg)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		<-sigCh
		log.Warn().Msg("forced shutdown")
		os.Exit(1)
	}()
	return ctx, cancel
}
