package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/events"
	"example.com/healthscore/internal/scoring"
)

var day1 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	_, err := s.EnsureUser(context.Background(), "u1")
	require.NoError(t, err)
	return s
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx domain.Tx) error {
		require.NoError(t, tx.UpsertDailyMetric(ctx, domain.NewDailyMetric(scoring.New(), "u1", day1, scoring.Inputs{RestingHeartRate: 55})))
		return boom
	})
	require.ErrorIs(t, err, boom)

	metric, err := s.GetDailyMetric(ctx, "u1", day1)
	require.NoError(t, err)
	require.Nil(t, metric)
}

func TestCommitErrDiscardsWrites(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	s.CommitErr = errors.New("commit failed")

	err := s.WithinTx(ctx, func(tx domain.Tx) error {
		return tx.AppendSyncLog(ctx, domain.SyncLog{UserID: "u1"})
	})
	require.Error(t, err)

	logs, err := s.ListSyncLogs(ctx, "u1", 0)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestUpsertActivityKeepsIdentity(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	start := day1.Add(8 * time.Hour)

	var firstID, secondID string
	require.NoError(t, s.WithinTx(ctx, func(tx domain.Tx) error {
		var err error
		firstID, err = tx.UpsertActivity(ctx, domain.Activity{UserID: "u1", ExternalID: "x", Name: "a", StartedAt: start})
		return err
	}))
	require.NoError(t, s.WithinTx(ctx, func(tx domain.Tx) error {
		var err error
		secondID, err = tx.UpsertActivity(ctx, domain.Activity{UserID: "u1", ExternalID: "x", Name: "b", StartedAt: start})
		return err
	}))
	require.Equal(t, firstID, secondID)

	stored := s.Activities("u1")
	require.Len(t, stored, 1)
	require.Equal(t, "b", stored[0].Name)
}

func TestListActivitiesPaginates(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(tx domain.Tx) error {
		for i, ext := range []string{"a", "b", "c"} {
			if _, err := tx.UpsertActivity(ctx, domain.Activity{
				UserID: "u1", ExternalID: ext, StartedAt: day1.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	page, next, err := s.ListActivities(ctx, "u1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "c", page[0].ExternalID)
	require.Equal(t, "b", page[1].ExternalID)
	require.NotNil(t, next)

	page, next, err = s.ListActivities(ctx, "u1", next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "a", page[0].ExternalID)
	require.Nil(t, next)
}

func TestEnqueueEventDeduplicates(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	event := events.Envelope{EventType: events.TypeSyncCompleted, AggregateID: "sync-1", UserID: "u1"}

	require.NoError(t, s.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.EnqueueEvent(ctx, event); err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, event)
	}))
	require.Len(t, s.Events(), 1)

	err := s.WithinTx(ctx, func(tx domain.Tx) error {
		return tx.EnqueueEvent(ctx, events.Envelope{EventType: "unknown"})
	})
	require.Error(t, err)
}

func TestDeleteUserKeepsSyncLogs(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.UpsertDailyMetric(ctx, domain.NewDailyMetric(scoring.New(), "u1", day1, scoring.Inputs{})); err != nil {
			return err
		}
		if _, err := tx.UpsertActivity(ctx, domain.Activity{UserID: "u1", ExternalID: "x", StartedAt: day1}); err != nil {
			return err
		}
		return tx.AppendSyncLog(ctx, domain.SyncLog{UserID: "u1", Outcome: domain.SyncOutcomeSuccess})
	}))

	require.NoError(t, s.DeleteUser(ctx, "u1"))

	metrics, err := s.ListDailyMetrics(ctx, "u1", day1, day1)
	require.NoError(t, err)
	require.Empty(t, metrics)
	require.Empty(t, s.Activities("u1"))

	logs, err := s.ListSyncLogs(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestCredentialLifecycle(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	require.NoError(t, s.SetCredential(ctx, "u1", "ct"))
	users, err := s.ListSyncableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	require.NoError(t, s.ClearCredential(ctx, "u1"))
	users, err = s.ListSyncableUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, users)

	require.ErrorIs(t, s.SetCredential(ctx, "ghost", "ct"), domain.ErrUserNotFound)
}
