// Package events defines the payloads published through the outbox.
package events

import "time"

const (
	// TypeSyncCompleted is emitted once per sync run, whatever its outcome.
	TypeSyncCompleted = "sync.completed"
	// TypeDailyMetricScored is emitted for each daily metric written by a run.
	TypeDailyMetricScored = "daily_metric.scored"
)

// SyncCompleted summarises a finished sync run.
type SyncCompleted struct {
	SyncID            string    `json:"sync_id"`
	UserID            string    `json:"user_id"`
	Outcome           string    `json:"outcome"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	RecordsWritten    int       `json:"records_written"`
	MetricsWritten    int       `json:"metrics_written"`
	ActivitiesWritten int       `json:"activities_written"`
	WindowStart       string    `json:"window_start"`
	WindowEnd         string    `json:"window_end"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// DailyMetricScored carries the scores computed for one calendar date.
type DailyMetricScored struct {
	SyncID           string    `json:"sync_id"`
	UserID           string    `json:"user_id"`
	Date             string    `json:"date"`
	Recovery         float64   `json:"recovery"`
	Strain           float64   `json:"strain"`
	SleepPerformance float64   `json:"sleep_performance"`
	ScoredAt         time.Time `json:"scored_at"`
}

// Envelope is an event queued in the outbox together with its routing keys.
type Envelope struct {
	EventType     string
	AggregateType string
	AggregateID   string
	UserID        string
	Payload       any
}

// Metadata describes how an event type is routed.
type Metadata struct {
	Topic         string
	SchemaSubject string
}

// Catalog maps event types to their topic and schema subject.
var Catalog = map[string]Metadata{
	TypeSyncCompleted: {
		Topic:         "sync_events",
		SchemaSubject: "sync_events-value",
	},
	TypeDailyMetricScored: {
		Topic:         "daily_scores",
		SchemaSubject: "daily_scores-value",
	},
}

// PartitionKey keeps every event of a user on the same partition.
func (e Envelope) PartitionKey() string {
	return e.UserID
}

// DedupeKey identifies an event for at-most-once insertion into the outbox.
func (e Envelope) DedupeKey() string {
	return e.AggregateID + ":" + e.EventType
}
