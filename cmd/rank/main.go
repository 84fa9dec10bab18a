package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"funding-arb-lab/internal/config"
	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/logging"
	"funding-arb-lab/internal/observability"
	"funding-arb-lab/internal/ranking"
	"funding-arb-lab/internal/storage"
	"funding-arb-lab/internal/storage/memory"
	"funding-arb-lab/internal/storage/migrations"
	pgstore "funding-arb-lab/internal/storage/postgres"
)

func main() {
	startDate := flag.String("start-date", "", "First date to rank (YYYY-MM-DD, default: end date)")
	endDate := flag.String("end-date", "yesterday", "Last date to rank (YYYY-MM-DD or 'yesterday')")
	strategies := flag.String("strategies", "all", "Comma-separated strategy names, or 'all'")
	strategiesFile := flag.String("strategies-file", "", "YAML file with additional strategy configs")
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	flag.Parse()

	logging.Init(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *strategiesFile == "" {
		*strategiesFile = cfg.StrategiesFile
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

	metrics, rankings, cleanup, err := buildStores(ctx, cfg, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("connect storage")
	}
	defer cleanup()

	end, err := resolveDate(*endDate)
	if err != nil {
		log.Fatal().Err(err).Str("end-date", *endDate).Msg("resolve end date")
	}
	start := end
	if *startDate != "" {
		if start, err = resolveDate(*startDate); err != nil {
			log.Fatal().Err(err).Str("start-date", *startDate).Msg("resolve start date")
		}
	}

	log.Info().
		Strs("strategies", names(cfgs)).
		Str("start", start.String()).
		Str("end", end.String()).
		Msg("ranking trading pairs")

	runner := ranking.NewRunner(ranking.NewEngine(metrics), rankings)
	runner.OnDayDone = func(strategy string, date domain.Date, rows int) {
		log.Debug().Str("strategy", strategy).Str("date", date.String()).Int("rows", rows).Msg("ranking persisted")
	}

	summary, err := runner.RunRange(ctx, cfgs, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("ranking aborted")
	}

	observability.RecordRankingSummary(summary.DaysRanked, summary.RowsWritten, summary.EmptyDays)

	log.Info().
		Int("days_ranked", summary.DaysRanked).
		Int("empty_days", summary.EmptyDays).
		Int("rows_written", summary.RowsWritten).
		Msg("ranking finished")
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

func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (storage.ReturnMetricStore, storage.RankingStore, func(), error) {
	if useMemory {
		return memory.NewReturnMetricStore(), memory.NewRankingStore(), func() {}, nil
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pgstore.NewReturnMetricStore(pool), pgstore.NewRankingStore(pool), pool.Close, nil
}

func resolveDate(arg string) (domain.Date, error) {
	if arg == "yesterday" {
		return domain.Today().AddDays(-1), nil
	}
	return domain.ParseDate(arg)
}

func names(cfgs []*domain.StrategyConfig) []string {
	out := make([]string, len(cfgs))
	for i, c := range cfgs {
		out[i] = c.Name
	}
	return out
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
