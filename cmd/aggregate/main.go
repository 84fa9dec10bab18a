package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/rs/zerolog/log"

	"funding-arb-lab/internal/config"
	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/logging"
	"funding-arb-lab/internal/observability"
	"funding-arb-lab/internal/returns"
	"funding-arb-lab/internal/storage"
	chstore "funding-arb-lab/internal/storage/clickhouse"
	"funding-arb-lab/internal/storage/memory"
	"funding-arb-lab/internal/storage/migrations"
	pgstore "funding-arb-lab/internal/storage/postgres"
)

func main() {
	startDate := flag.String("start-date", "", "First date to aggregate (YYYY-MM-DD, default: end date)")
	endDate := flag.String("end-date", "yesterday", "Last date to aggregate (YYYY-MM-DD, 'yesterday', or 'latest')")
	symbol := flag.String("symbol", "", "Restrict to pairs of one symbol (e.g. BTC)")
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	noProgress := flag.Bool("no-progress", false, "Disable the per-pair progress bar")
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

	ctx, cancel := signalContext()
	defer cancel()

	diffs, metrics, cleanup, err := buildStores(ctx, cfg, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("connect storage")
	}
	defer cleanup()

	end, err := resolveDate(ctx, diffs, *endDate)
	if err != nil {
		log.Fatal().Err(err).Str("end-date", *endDate).Msg("resolve end date")
	}
	start := end
	if *startDate != "" {
		if start, err = resolveDate(ctx, diffs, *startDate); err != nil {
			log.Fatal().Err(err).Str("start-date", *startDate).Msg("resolve start date")
		}
	}

	pairs, err := diffs.ListPairs(ctx, end.End())
	if err != nil {
		log.Fatal().Err(err).Msg("list trading pairs")
	}
	if *symbol != "" {
		pairs = filterBySymbol(pairs, *symbol)
	}
	if len(pairs) == 0 {
		log.Warn().Str("symbol", *symbol).Msg("no trading pairs with observations, nothing to do")
		return
	}
	log.Info().
		Int("pairs", len(pairs)).
		Str("start", start.String()).
		Str("end", end.String()).
		Msg("aggregating return metrics")

	agg := returns.NewAggregator(diffs, metrics)
	var bar *pb.ProgressBar
	if !*noProgress {
		bar = pb.StartNew(len(pairs))
		agg.OnPairDone = func(string) { bar.Increment() }
	}

	summary, err := agg.ComputeRange(ctx, pairs, start, end)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("aggregation aborted")
	}

	observability.RecordAggregateSummary(summary.RowsComputed, summary.RowsSkipped, summary.PairsFailed)

	log.Info().
		Int("rows_computed", summary.RowsComputed).
		Int("rows_skipped", summary.RowsSkipped).
		Int("pairs_failed", summary.PairsFailed).
		Msg("aggregation finished")
	if summary.PairsFailed > 0 {
		for _, line := range summary.FailedPairs() {
			log.Error().Msg(line)
		}
		os.Exit(1)
	}
}

// buildStores wires the differential and metric stores against real
// databases, or in-memory stand-ins with --use-memory.
func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (storage.DifferentialStore, storage.ReturnMetricStore, func(), error) {
	if useMemory {
		return memory.NewDifferentialStore(), memory.NewReturnMetricStore(), func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("clickhouse: %w", err)
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return chstore.NewDifferentialStore(conn), pgstore.NewReturnMetricStore(pool), cleanup, nil
}

// resolveDate turns a --start-date/--end-date argument into a concrete
// UTC date. "yesterday" is relative to the wall clock; "latest" follows
// the newest stored observation.
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

func filterBySymbol(pairs []string, symbol string) []string {
	prefix := strings.ToUpper(symbol) + "_"
	var out []string
	for _, p := range pairs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// signalContext cancels on SIGINT/SIGTERM; a second signal exits
// immediately.
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
