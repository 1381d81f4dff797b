package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "healthscore"

// DLQ actions recorded on dlqEntriesCounter.
const (
	dlqActionProcessed   = "processed"
	dlqActionRequeued    = "requeued"
	dlqActionQuarantined = "quarantined"
	dlqActionRescheduled = "rescheduled"
)

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Outbox events published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Outbox events whose publish attempt failed.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of one claim, deliver and settle pass.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Outbox events moved to the dead-letter table, by topic.",
	}, []string{"topic"})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-letter entries handled by the replay manager, by action.",
	}, []string{"action", "topic", "event_type"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "Dead-letter entries not yet quarantined.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, dlqEntriesCounter, dlqBacklogGauge)
}

func recordDLQ(action string, entry dlqEntry) {
	dlqEntriesCounter.WithLabelValues(action, entry.Topic, entry.EventType).Inc()
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
