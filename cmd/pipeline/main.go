package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"funding-arb-lab/internal/config"
	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/logging"
	"funding-arb-lab/internal/observability"
	"funding-arb-lab/internal/pipeline"
	"funding-arb-lab/internal/ranking"
	"funding-arb-lab/internal/returns"
	"funding-arb-lab/internal/storage"
	chstore "funding-arb-lab/internal/storage/clickhouse"
	"funding-arb-lab/internal/storage/memory"
	"funding-arb-lab/internal/storage/migrations"
	pgstore "funding-arb-lab/internal/storage/postgres"
)

func main() {
	startDate := flag.String("start-date", "", "First date to process (YYYY-MM-DD, default: end date)")
	endDate := flag.String("end-date", "yesterday", "Last date to process (YYYY-MM-DD, 'yesterday', or 'latest')")
	strategies := flag.String("strategies", "all", "Comma-separated strategy names, or 'all'")
	strategiesFile := flag.String("strategies-file", "", "YAML file with additional strategy configs")
	fillMissing := flag.Bool("fill-missing", false, "Only recompute cells the completeness check reports missing")
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	useFixtures := flag.Bool("use-fixtures", false, "Seed synthetic observations (requires --use-memory)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
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
	if *clickhouseDSN != "" {
		cfg.ClickhouseDSN = *clickhouseDSN
	}
	if *strategiesFile == "" {
		*strategiesFile = cfg.StrategiesFile
	}
	if *useFixtures && !*useMemory {
		fmt.Fprintln(os.Stderr, "--use-fixtures requires --use-memory")
		os.Exit(2)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
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

	end, err := resolveDate(ctx, stores.diffs, *endDate)
	if err != nil {
		log.Fatal().Err(err).Str("end-date", *endDate).Msg("resolve end date")
	}
	if *useFixtures {
		if err := pipeline.LoadFixtures(ctx, stores.diffs, end); err != nil {
			log.Fatal().Err(err).Msg("load fixtures")
		}
		log.Info().Int("pairs", len(pipeline.FixturePairs)).Int("days", pipeline.FixtureDays).Msg("fixtures loaded")
	}
	start := end
	if *startDate != "" {
		if start, err = resolveDate(ctx, stores.diffs, *startDate); err != nil {
			log.Fatal().Err(err).Str("start-date", *startDate).Msg("resolve start date")
		}
	} else if *useFixtures {
		start = end.AddDays(-(pipeline.FixtureDays - 1))
	}

	agg := returns.NewAggregator(stores.diffs, stores.metrics)
	runner := ranking.NewRunner(ranking.NewEngine(stores.metrics), stores.rankings)
	checker := pipeline.NewChecker(stores.diffs, stores.metrics, stores.rankings)
	pipe := pipeline.New(stores.diffs, agg, runner, checker)

	mode := "run"
	run := pipe.Run
	if *fillMissing {
		mode = "fill-missing"
		run = pipe.FillMissing
	}
	log.Info().
		Str("mode", mode).
		Str("start", start.String()).
		Str("end", end.String()).
		Int("strategies", len(cfgs)).
		Msg("pipeline starting")

	began := time.Now()
	result, err := run(ctx, cfgs, start, end)
	if err != nil {
		observability.RecordStageRun("pipeline", "error", time.Since(began).Seconds())
		log.Fatal().Err(err).Msg("pipeline aborted")
	}
	observability.RecordStageRun("pipeline", "ok", time.Since(began).Seconds())

	if result.Aggregate != nil {
		observability.RecordAggregateSummary(result.Aggregate.RowsComputed, result.Aggregate.RowsSkipped, result.Aggregate.PairsFailed)
		log.Info().
			Int("rows_computed", result.Aggregate.RowsComputed).
			Int("rows_skipped", result.Aggregate.RowsSkipped).
			Int("pairs_failed", result.Aggregate.PairsFailed).
			Msg("aggregation stage")
	}
	if result.Ranking != nil {
		observability.RecordRankingSummary(result.Ranking.DaysRanked, result.Ranking.RowsWritten, result.Ranking.EmptyDays)
		log.Info().
			Int("days_ranked", result.Ranking.DaysRanked).
			Int("empty_days", result.Ranking.EmptyDays).
			Int("rows_written", result.Ranking.RowsWritten).
			Msg("ranking stage")
	}
	reportCompleteness(result.Completeness)

	if result.Completeness != nil && !result.Completeness.AllPass {
		os.Exit(1)
	}
}

func reportCompleteness(res *pipeline.CompletenessResult) {
	if res == nil {
		return
	}
	for _, check := range res.Checks {
		ev := log.Info()
		if !check.Pass {
			ev = log.Error()
		}
		ev.Str("threshold", check.Threshold).Str("actual", check.Actual).Bool("pass", check.Pass).Msg(check.Name)
	}
	for _, msg := range res.Errors {
		log.Error().Msg(msg)
	}
}

type pipelineStores struct {
	diffs    storage.DifferentialStore
	metrics  storage.ReturnMetricStore
	rankings storage.RankingStore
}

func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (*pipelineStores, func(), error) {
	if useMemory {
		return &pipelineStores{
			diffs:    memory.NewDifferentialStore(),
			metrics:  memory.NewReturnMetricStore(),
			rankings: memory.NewRankingStore(),
		}, func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: %w", err)
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return &pipelineStores{
		diffs:    chstore.NewDifferentialStore(conn),
		metrics:  pgstore.NewReturnMetricStore(pool),
		rankings: pgstore.NewRankingStore(pool),
	}, cleanup, nil
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

func resolveDate(ctx context.Context, diffs storage.DifferentialStore, arg string) (domain.Date, error) {
	switch arg {
	case "yesterday":
		return domain.Today().AddDays(-1), nil
	case "latest":
		ts, err := diffs.LatestTimestamp(ctx)
		if err != nil {
			return domain.Date{}, fmt.Errorf("latest observation: %w", err)
		}
		return domain.DateOf(ts), nil
	default:
		return domain.ParseDate(arg)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server")
	}
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
