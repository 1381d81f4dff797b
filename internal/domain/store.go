package domain

import (
	"context"
	"time"

	"example.com/healthscore/internal/events"
)

// Store is the metrics store port used by the orchestrator and the read API.
type Store interface {
	UserRepository
	MetricsReader

	// WithinTx runs fn inside a single atomic unit. A non-nil error from fn
	// rolls back every write made through the Tx.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write surface of one unit of work.
type Tx interface {
	UpsertDailyMetric(ctx context.Context, metric DailyMetric) error
	// UpsertActivity inserts the activity or updates the row with the same
	// (UserID, ExternalID), returning the stored row ID.
	UpsertActivity(ctx context.Context, activity Activity) (string, error)
	AppendSyncLog(ctx context.Context, entry SyncLog) error
	// UpdateUserSyncState applies update against the stored row and returns
	// the resulting state.
	UpdateUserSyncState(ctx context.Context, userID string, update SyncStateUpdate) (UserSyncState, error)
	EnqueueEvent(ctx context.Context, event events.Envelope) error
}

// UserRepository captures user persistence owned by the account collaborator.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	// EnsureUser creates the user row if absent and returns it.
	EnsureUser(ctx context.Context, userID string) (*User, error)
	ListSyncableUsers(ctx context.Context) ([]User, error)
	SetCredential(ctx context.Context, userID, ciphertext string) error
	ClearCredential(ctx context.Context, userID string) error
}

// MetricsReader exposes read accessors for metrics, activities and logs.
type MetricsReader interface {
	GetDailyMetric(ctx context.Context, userID string, date time.Time) (*DailyMetric, error)
	// ListDailyMetrics returns rows with from <= date <= to, newest first.
	ListDailyMetrics(ctx context.Context, userID string, from, to time.Time) ([]DailyMetric, error)
	// ListActivities returns activities newest first, starting after cursor.
	ListActivities(ctx context.Context, userID string, cursor *ActivityCursor, limit int) ([]Activity, *ActivityCursor, error)
	ListSyncLogs(ctx context.Context, userID string, limit int) ([]SyncLog, error)
}
