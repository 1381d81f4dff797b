package domain

import "time"

// SyncOutcome is the terminal result of a sync run.
type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomePartial SyncOutcome = "partial"
	SyncOutcomeFailure SyncOutcome = "failure"
)

// Advances reports whether the outcome moves the user's lookback window forward.
func (o SyncOutcome) Advances() bool {
	return o == SyncOutcomeSuccess || o == SyncOutcomePartial
}

// SyncLog is the append-only audit row written once per sync run.
type SyncLog struct {
	ID                string
	UserID            string
	StartedAt         time.Time
	FinishedAt        time.Time
	Outcome           SyncOutcome
	ErrorKind         ErrorKind
	ErrorDetail       *string
	RecordsWritten    int
	MetricsWritten    int
	ActivitiesWritten int
	WindowStart       time.Time
	WindowEnd         time.Time
}

// Duration is the wall-clock length of the run.
func (l SyncLog) Duration() time.Duration {
	return l.FinishedAt.Sub(l.StartedAt)
}
