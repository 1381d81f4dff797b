// Package observability owns the Prometheus collectors of the sync pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "healthscore"

var (
	syncRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Number of terminal sync runs, labeled by outcome and error kind.",
	}, []string{"outcome", "error_kind"})

	syncRejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "rejected_total",
		Help:      "Number of sync requests rejected before a run started.",
	}, []string{"reason"})

	syncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of sync runs.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"outcome"})

	syncInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "in_flight",
		Help:      "Number of sync runs currently executing.",
	})

	recordsWrittenCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "records_written_total",
		Help:      "Rows written by successful sync runs, labeled by record type.",
	}, []string{"record"})

	providerCallsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Provider calls after retries, labeled by call and result.",
	}, []string{"call", "result"})

	providerRetriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "retries_total",
		Help:      "Provider call attempts beyond the first.",
	}, []string{"call"})

	lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful or partial sync run.",
	})
)

func init() {
	prometheus.MustRegister(
		syncRunsCounter,
		syncRejectedCounter,
		syncDuration,
		syncInFlight,
		recordsWrittenCounter,
		providerCallsCounter,
		providerRetriesCounter,
		lastSuccessGauge,
	)
}

// SyncStarted marks a run as in flight and returns the function ending it.
func SyncStarted() func() {
	syncInFlight.Inc()
	return syncInFlight.Dec
}

// RecordSyncRun observes a terminal run.
func RecordSyncRun(outcome, errorKind string, elapsed time.Duration, finishedAt time.Time) {
	syncRunsCounter.WithLabelValues(outcome, errorKind).Inc()
	syncDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome != "failure" && !finishedAt.IsZero() {
		lastSuccessGauge.Set(float64(finishedAt.Unix()))
	}
}

// RecordSyncRejected counts a request refused before a run started.
func RecordSyncRejected(reason string) {
	syncRejectedCounter.WithLabelValues(reason).Inc()
}

// RecordRecordsWritten adds the rows persisted by a run.
func RecordRecordsWritten(metrics, activities int) {
	recordsWrittenCounter.WithLabelValues("daily_metric").Add(float64(metrics))
	recordsWrittenCounter.WithLabelValues("activity").Add(float64(activities))
}

// RecordProviderCall observes a provider call after its retries.
func RecordProviderCall(call, result string, attempts int) {
	providerCallsCounter.WithLabelValues(call, result).Inc()
	if attempts > 1 {
		providerRetriesCounter.WithLabelValues(call).Add(float64(attempts - 1))
	}
}
