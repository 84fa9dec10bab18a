// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Aggregation metrics
	MetricRowsComputed   prometheus.Counter
	MetricRowsSkipped    prometheus.Counter
	AggregatePairsFailed *prometheus.CounterVec

	// Ranking metrics
	RankingDaysRanked  prometheus.Counter
	RankingRowsWritten prometheus.Counter
	RankingEmptyDays   prometheus.Counter

	// Backtest metrics
	BacktestRunsTotal      *prometheus.CounterVec
	TradesSimulated        prometheus.Counter
	ReconciliationFailures prometheus.Counter

	// Stage metrics
	StageRunsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "funding_arb_lab"
	}

	return &Metrics{
		MetricRowsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "metric_rows_computed_total",
			Help:      "Total number of return metric rows computed",
		}),
		MetricRowsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "metric_rows_skipped_total",
			Help:      "Total number of (pair, date) cells skipped for lack of history",
		}),
		AggregatePairsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "pairs_failed_total",
			Help:      "Total number of pairs that failed to aggregate by stage",
		}, []string{"stage"}),

		RankingDaysRanked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "days_ranked_total",
			Help:      "Total number of (strategy, date) rankings persisted",
		}),
		RankingRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "rows_written_total",
			Help:      "Total number of ranking rows written",
		}),
		RankingEmptyDays: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "empty_days_total",
			Help:      "Total number of (strategy, date) rankings with an empty universe",
		}),

		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"strategy", "status"}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of ledger events simulated",
		}),
		ReconciliationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "reconciliation_failures_total",
			Help:      "Total number of runs aborted by a ledger reconciliation failure",
		}),

		StageRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of stage runs by status",
		}, []string{"stage", "status"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAggregateSummary records one aggregate run's tallies.
func RecordAggregateSummary(computed, skipped, failed int) {
	DefaultMetrics.MetricRowsComputed.Add(float64(computed))
	DefaultMetrics.MetricRowsSkipped.Add(float64(skipped))
	DefaultMetrics.AggregatePairsFailed.WithLabelValues("aggregate").Add(float64(failed))
}

// RecordRankingSummary records one ranking run's tallies.
func RecordRankingSummary(daysRanked, rowsWritten, emptyDays int) {
	DefaultMetrics.RankingDaysRanked.Add(float64(daysRanked))
	DefaultMetrics.RankingRowsWritten.Add(float64(rowsWritten))
	DefaultMetrics.RankingEmptyDays.Add(float64(emptyDays))
}

// RecordBacktestRun records a finished or failed backtest run.
func RecordBacktestRun(strategy, status string, events int) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(strategy, status).Inc()
	DefaultMetrics.TradesSimulated.Add(float64(events))
}

// RecordReconciliationFailure increments the reconciliation failure counter.
func RecordReconciliationFailure() {
	DefaultMetrics.ReconciliationFailures.Inc()
}

// RecordStageRun records a stage run.
func RecordStageRun(stage, status string, durationSeconds float64) {
	DefaultMetrics.StageRunsTotal.WithLabelValues(stage, status).Inc()
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
