package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/events"
	"example.com/healthscore/internal/persistence/memory"
	"example.com/healthscore/internal/telemetry"
	"example.com/healthscore/internal/telemetry/telemetrytest"
	"example.com/healthscore/internal/vault"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

type harness struct {
	store *memory.Store
	fake  *telemetrytest.Fake
	vault *vault.Vault
	orch  *Orchestrator
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	v, err := vault.New(bytes.Repeat([]byte{0x5a}, vault.MinKeyLength))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FetchRetryBaseDelay = 0
	cfg.SyncTimeout = 5 * time.Second
	cfg.ProviderCallTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{store: memory.New(), fake: telemetrytest.New(), vault: v}
	h.orch = New(h.store, h.fake, v, cfg, WithClock(func() time.Time { return testNow }))
	return h
}

func (h *harness) addUser(t *testing.T, id string) {
	t.Helper()
	ct, err := h.vault.SealCredential(id, domain.Credential{Email: id + "@example.com", Password: "pw"})
	require.NoError(t, err)
	h.store.PutUser(domain.User{ID: id, CredentialCiphertext: ct, SyncEnabled: true})
}

func (h *harness) user(t *testing.T, id string) domain.User {
	t.Helper()
	u, err := h.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return *u
}

func (h *harness) fillWindow(from, to int) {
	for d := from; d <= to; d++ {
		h.fake.SetDay(day(d),
			&telemetry.DailySummary{RestingHeartRate: 58, BodyBatteryCharged: 80, BodyBatteryDrained: 30},
			&telemetry.Sleep{SleepSeconds: 432 * 60, DeepSleepSeconds: 120 * 60, RemSleepSeconds: 96 * 60},
		)
	}
}

func stripTimestamps(metrics []domain.DailyMetric) []domain.DailyMetric {
	out := make([]domain.DailyMetric, len(metrics))
	for i, m := range metrics {
		m.CreatedAt, m.UpdatedAt = time.Time{}, time.Time{}
		out[i] = m
	}
	return out
}

func TestRunSyncPersistsScoredWindow(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(3, 10)
	ctx := context.Background()

	entry, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.SyncOutcomeSuccess, entry.Outcome)
	require.Equal(t, day(3), entry.WindowStart)
	require.Equal(t, day(10), entry.WindowEnd)
	require.Equal(t, 8, entry.MetricsWritten)
	require.Equal(t, 8, entry.RecordsWritten)

	metric, err := h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)
	require.NotNil(t, metric)
	require.Equal(t, 58.0, metric.Inputs.BaselineRestingHeartRate)
	require.Equal(t, 50, metric.Inputs.BodyBatteryDelta)
	require.Equal(t, 75.2, metric.Scores.Recovery)
	require.Equal(t, h.orch.engine.Score(metric.Inputs), metric.Scores)

	first, err := h.store.GetDailyMetric(ctx, "u1", day(3))
	require.NoError(t, err)
	require.Zero(t, first.Inputs.BaselineRestingHeartRate)

	u := h.user(t, "u1")
	require.NotNil(t, u.LastSyncAt)
	require.True(t, u.LastSyncAt.Equal(testNow))

	queued := h.store.Events()
	require.Len(t, queued, 9)
	require.Equal(t, events.TypeSyncCompleted, queued[len(queued)-1].EventType)

	logs, err := h.store.ListSyncLogs(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, entry.ID, logs[0].ID)
}

func TestRunSyncSkipsDatesWithoutData(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(8, 10)

	entry, err := h.orch.RunSync(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 3, entry.MetricsWritten)

	metric, err := h.store.GetDailyMetric(context.Background(), "u1", day(5))
	require.NoError(t, err)
	require.Nil(t, metric)
}

func TestRunSyncKeepsProviderReadings(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	sleepStart := time.Date(2024, 3, 9, 23, 10, 0, 0, time.FixedZone("CET", 3600))
	sleepEnd := sleepStart.Add(7*time.Hour + 30*time.Minute)
	h.fake.SetDay(day(10),
		&telemetry.DailySummary{
			RestingHeartRate: 55, MinHeartRate: 48, MaxHeartRate: 162,
			BodyBatteryCharged: 70, BodyBatteryDrained: 40, BodyBatteryHighest: 95, BodyBatteryLowest: 25,
			AverageStressLevel: 30, MaxStressLevel: 88,
			TotalKilocalories: 2450.6, TotalSteps: 11200, TotalDistanceMeters: 8400.5, FloorsAscended: 12,
			AverageRespiration: 14.5, HRVLastNight: 61, HRVWeeklyAverage: 58, AverageSpO2: 96, LowestSpO2: 89,
		},
		&telemetry.Sleep{
			SleepSeconds: 450 * 60, DeepSleepSeconds: 90 * 60, RemSleepSeconds: 100 * 60,
			LightSleepSeconds: 260 * 60, AwakeSeconds: 20 * 60, Start: &sleepStart, End: &sleepEnd,
		},
	)
	h.fake.Activities = []telemetry.Activity{{
		ExternalID: "a-1", Name: "Run", Type: "running", StartTime: day(10).Add(7 * time.Hour),
		DurationSeconds: 2700, DistanceMeters: 9100, Calories: 612.4, AverageHeartRate: 148, MaxHeartRate: 177.6,
		AerobicTrainingEffect: 3.1, AnaerobicTrainingEffect: 1.2,
	}}
	ctx := context.Background()

	_, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)

	metric, err := h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)
	require.Equal(t, domain.WellnessDetail{
		MinHeartRate: 48, MaxHeartRate: 162, HRVLastNight: 61, HRVWeeklyAverage: 58,
		AverageSpO2: 96, LowestSpO2: 89, Steps: 11200, DistanceMeters: 8400.5, FloorsAscended: 12,
		TotalCalories: 2450, StressMax: 88, BodyBatteryHigh: 95, BodyBatteryLow: 25,
		BodyBatteryCharged: 70, BodyBatteryDrained: 40, AverageRespiration: 14.5,
	}, metric.Detail.Wellness)
	require.Equal(t, 260, metric.Detail.Sleep.LightMinutes)
	require.Equal(t, 20, metric.Detail.Sleep.AwakeMinutes)
	require.True(t, sleepStart.Equal(*metric.Detail.Sleep.Start))
	require.True(t, sleepEnd.Equal(*metric.Detail.Sleep.End))

	stored := h.store.Activities("u1")
	require.Len(t, stored, 1)
	require.Equal(t, 9100.0, stored[0].DistanceMeters)
	require.Equal(t, 612, stored[0].Calories)
	require.Equal(t, 178, stored[0].MaxHeartRate)
	require.Equal(t, 3.1, stored[0].AerobicEffect)
	require.Equal(t, 1.2, stored[0].AnaerobicEffect)

	// A later run whose summary fetch fails keeps the stored wellness readings.
	h.fake.FailNext(telemetrytest.Key("summary", day(10)), errors.Join(domain.ErrFetch, telemetry.ErrPermanent))
	_, err = h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)

	metric, err = h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)
	require.Equal(t, 162, metric.Detail.Wellness.MaxHeartRate)
	require.Equal(t, 11200, metric.Detail.Wellness.Steps)
}

func TestRunSyncIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(3, 10)
	h.fake.Activities = []telemetry.Activity{{
		ExternalID: "a-1", Name: "Run", Type: "running",
		StartTime: day(10).Add(7 * time.Hour), DurationSeconds: 1800,
		AerobicTrainingEffect: 2.5, HRZoneSeconds: [5]float64{300, 600, 600, 300, 0},
	}}
	ctx := context.Background()

	_, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	before, err := h.store.ListDailyMetrics(ctx, "u1", day(1), day(10))
	require.NoError(t, err)

	second, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, day(10), second.WindowStart)

	after, err := h.store.ListDailyMetrics(ctx, "u1", day(1), day(10))
	require.NoError(t, err)
	require.Equal(t, stripTimestamps(before), stripTimestamps(after))
	require.Len(t, h.store.Activities("u1"), 1)
}

func TestRunSyncDeduplicatesActivitiesLatestWins(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)
	start := day(10).Add(6 * time.Hour)
	h.fake.Activities = []telemetry.Activity{{ExternalID: "a-1", Name: "Ride", StartTime: start, AerobicTrainingEffect: 2}}
	ctx := context.Background()

	_, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	stored := h.store.Activities("u1")
	require.Len(t, stored, 1)
	firstID := stored[0].ID

	h.fake.Activities = []telemetry.Activity{
		{ExternalID: "a-1", Name: "Ride", StartTime: start, AerobicTrainingEffect: 3},
		{ExternalID: "a-1", Name: "Evening ride", StartTime: start, AerobicTrainingEffect: 3.5},
	}
	entry, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, entry.ActivitiesWritten)

	stored = h.store.Activities("u1")
	require.Len(t, stored, 1)
	require.Equal(t, firstID, stored[0].ID)
	require.Equal(t, "Evening ride", stored[0].Name)
	require.Equal(t, 3.5, stored[0].TrainingEffect)
	require.Positive(t, stored[0].StrainContribution)

	metric, err := h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)
	require.Equal(t, 3.5, metric.Inputs.TrainingEffectTotal)
}

func TestFailedRunDoesNotAdvanceWindow(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(3, 10)
	h.fake.LoginErr = fmt.Errorf("%w: bridge unavailable", domain.ErrFetch)
	ctx := context.Background()

	failed, err := h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrFetch)
	require.Equal(t, domain.KindFetch, domain.KindOf(err))
	require.Equal(t, domain.SyncOutcomeFailure, failed.Outcome)
	require.Equal(t, 3, h.fake.Calls("login"))
	require.Nil(t, h.user(t, "u1").LastSyncAt)
	require.NotContains(t, err.Error(), "bridge unavailable")

	h.fake.LoginErr = nil
	retried, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, failed.WindowStart, retried.WindowStart)
	require.Equal(t, failed.WindowEnd, retried.WindowEnd)

	logs, err := h.store.ListSyncLogs(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, domain.SyncOutcomeSuccess, logs[0].Outcome)
	require.Equal(t, domain.KindFetch, logs[1].ErrorKind)
}

func TestAllFetchesFailingFailsTheRun(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxFetchRetries = 1 })
	h.addUser(t, "u1")
	h.fake.FetchErr = fmt.Errorf("%w: 503", domain.ErrFetch)

	entry, err := h.orch.RunSync(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrFetch)
	require.Equal(t, domain.SyncOutcomeFailure, entry.Outcome)
	require.Zero(t, entry.RecordsWritten)
	require.Nil(t, h.user(t, "u1").LastSyncAt)
}

func TestPartialFetchCarriesStoredValues(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(3, 10)
	ctx := context.Background()

	_, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	before, err := h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)

	fetchErr := fmt.Errorf("%w: timeout", domain.ErrFetch)
	h.fake.FailNext(telemetrytest.Key("sleep", day(10)), fetchErr, fetchErr, fetchErr)

	entry, err := h.orch.RunSync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.SyncOutcomePartial, entry.Outcome)
	require.Equal(t, domain.KindFetch, entry.ErrorKind)
	require.NotNil(t, entry.ErrorDetail)
	require.True(t, h.user(t, "u1").LastSyncAt.Equal(testNow))

	after, err := h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)
	require.Equal(t, before.Inputs, after.Inputs)
	require.Equal(t, before.Detail, after.Detail)
	require.Equal(t, 75.2, after.Scores.Recovery)
}

func TestTransientErrorsAreRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)
	key := telemetrytest.Key("summary", day(10))
	fetchErr := fmt.Errorf("%w: 502", domain.ErrFetch)
	h.fake.FailNext(key, fetchErr, fetchErr)

	entry, err := h.orch.RunSync(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.SyncOutcomeSuccess, entry.Outcome)
	require.Equal(t, 3, h.fake.Calls(key))
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)
	key := telemetrytest.Key("summary", day(10))
	h.fake.FailNext(key, errors.Join(domain.ErrFetch, telemetry.ErrPermanent))

	entry, err := h.orch.RunSync(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.SyncOutcomePartial, entry.Outcome)
	require.Equal(t, 1, h.fake.Calls(key))
}

func TestConcurrentSyncForSameUserIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)
	h.fake.Block = make(chan struct{})
	h.fake.Entered = make(chan struct{}, 1)
	ctx := context.Background()

	type result struct {
		entry *domain.SyncLog
		err   error
	}
	done := make(chan result, 1)
	go func() {
		entry, err := h.orch.RunSync(ctx, "u1")
		done <- result{entry, err}
	}()

	<-h.fake.Entered
	entry, err := h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrSyncInProgress)
	require.Nil(t, entry)

	close(h.fake.Block)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, domain.SyncOutcomeSuccess, res.entry.Outcome)
	require.False(t, h.orch.locks.Held("u1"))

	logs, err := h.store.ListSyncLogs(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

// runBlockedAtLogin starts a sync for id, waits for it to reach Login, runs
// mutate, then releases the run and returns its result.
func (h *harness) runBlockedAtLogin(t *testing.T, id string, mutate func(ctx context.Context)) (*domain.SyncLog, error) {
	t.Helper()
	h.fake.Block = make(chan struct{})
	h.fake.Entered = make(chan struct{}, 1)
	ctx := context.Background()

	type result struct {
		entry *domain.SyncLog
		err   error
	}
	done := make(chan result, 1)
	go func() {
		entry, err := h.orch.RunSync(ctx, id)
		done <- result{entry, err}
	}()

	<-h.fake.Entered
	mutate(ctx)
	close(h.fake.Block)
	res := <-done
	return res.entry, res.err
}

func TestDisconnectDuringRunKeepsSyncDisabled(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)

	entry, err := h.runBlockedAtLogin(t, "u1", func(ctx context.Context) {
		require.NoError(t, h.store.ClearCredential(ctx, "u1"))
	})
	require.NoError(t, err)
	require.Equal(t, domain.SyncOutcomeSuccess, entry.Outcome)

	u := h.user(t, "u1")
	require.False(t, u.SyncEnabled)
	require.Empty(t, u.CredentialCiphertext)
	require.NotNil(t, u.LastSyncAt)
}

func TestCredentialReenteredDuringRunIsNotPenalized(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxConsecutiveAuthFailuresBeforeDisable = 1 })
	h.addUser(t, "u1")
	h.fake.LoginErr = fmt.Errorf("%w: 401", domain.ErrAuthentication)

	entry, err := h.runBlockedAtLogin(t, "u1", func(ctx context.Context) {
		ct, err := h.vault.SealCredential("u1", domain.Credential{Email: "u1@example.com", Password: "fixed"})
		require.NoError(t, err)
		require.NoError(t, h.store.SetCredential(ctx, "u1", ct))
	})
	require.ErrorIs(t, err, domain.ErrAuthentication)
	require.Equal(t, domain.KindAuthentication, entry.ErrorKind)

	u := h.user(t, "u1")
	require.True(t, u.SyncEnabled)
	require.False(t, u.CredentialNeedsReentry)
	require.Zero(t, u.ConsecutiveAuthFailures)
}

func TestDeleteDuringRunStillLogsFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)

	entry, err := h.runBlockedAtLogin(t, "u1", func(ctx context.Context) {
		require.NoError(t, h.store.DeleteUser(ctx, "u1"))
	})
	require.ErrorIs(t, err, domain.ErrStorage)
	require.Equal(t, domain.SyncOutcomeFailure, entry.Outcome)

	logs, err := h.store.ListSyncLogs(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.SyncOutcomeFailure, logs[0].Outcome)
	require.Equal(t, domain.KindStorage, logs[0].ErrorKind)

	var completed int
	for _, e := range h.store.Events() {
		if e.EventType == events.TypeSyncCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)
}

func TestAuthenticationFailuresDisableSync(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxConsecutiveAuthFailuresBeforeDisable = 2 })
	h.addUser(t, "u1")
	h.fake.LoginErr = fmt.Errorf("%w: 401", domain.ErrAuthentication)
	ctx := context.Background()

	entry, err := h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrAuthentication)
	require.Equal(t, domain.KindAuthentication, entry.ErrorKind)
	require.Equal(t, 1, h.fake.Calls("login"))
	u := h.user(t, "u1")
	require.Equal(t, 1, u.ConsecutiveAuthFailures)
	require.True(t, u.SyncEnabled)

	_, err = h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrAuthentication)
	require.False(t, h.user(t, "u1").SyncEnabled)

	entry, err = h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrSyncDisabled)
	require.Nil(t, entry)
}

func TestSuccessfulLoginResetsAuthFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)
	u := h.user(t, "u1")
	u.ConsecutiveAuthFailures = 2
	h.store.PutUser(u)

	_, err := h.orch.RunSync(context.Background(), "u1")
	require.NoError(t, err)
	require.Zero(t, h.user(t, "u1").ConsecutiveAuthFailures)
}

func TestIntegrityFailureFlagsCredential(t *testing.T) {
	h := newHarness(t, nil)
	ct, err := h.vault.SealCredential("someone-else", domain.Credential{Email: "x@example.com", Password: "pw"})
	require.NoError(t, err)
	h.store.PutUser(domain.User{ID: "u1", CredentialCiphertext: ct, SyncEnabled: true})
	ctx := context.Background()

	entry, err := h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrIntegrity)
	require.Equal(t, domain.KindIntegrity, entry.ErrorKind)
	require.Zero(t, h.fake.Calls("login"))
	require.True(t, h.user(t, "u1").CredentialNeedsReentry)

	_, err = h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestRunTimeoutRecordsFailure(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.SyncTimeout = 50 * time.Millisecond })
	h.addUser(t, "u1")
	h.fake.Block = make(chan struct{})
	defer close(h.fake.Block)

	entry, err := h.orch.RunSync(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Equal(t, domain.KindTimeout, entry.ErrorKind)

	logs, err := h.store.ListSyncLogs(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.SyncOutcomeFailure, logs[0].Outcome)
}

func TestCallerCancellationRecordsFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fake.Block = make(chan struct{})
	h.fake.Entered = make(chan struct{}, 1)
	defer close(h.fake.Block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.fake.Entered
		cancel()
	}()

	entry, err := h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrCanceled)
	require.Equal(t, domain.KindCanceled, entry.ErrorKind)

	logs, err := h.store.ListSyncLogs(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestStoreFailureRollsBackRun(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, "u1")
	h.fillWindow(10, 10)
	h.store.CommitErr = errors.New("disk full")
	ctx := context.Background()

	entry, err := h.orch.RunSync(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrStorage)
	require.Equal(t, domain.SyncOutcomeFailure, entry.Outcome)

	metric, err := h.store.GetDailyMetric(ctx, "u1", day(10))
	require.NoError(t, err)
	require.Nil(t, metric)
	require.Nil(t, h.user(t, "u1").LastSyncAt)

	logs, err := h.store.ListSyncLogs(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.KindStorage, logs[0].ErrorKind)
}

func TestGuardRejectionsWriteNoLog(t *testing.T) {
	h := newHarness(t, nil)
	h.store.PutUser(domain.User{ID: "no-cred", SyncEnabled: true})
	ctx := context.Background()

	_, err := h.orch.RunSync(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	entry, err := h.orch.RunSync(ctx, "no-cred")
	require.ErrorIs(t, err, domain.ErrNoCredential)
	require.Nil(t, entry)

	logs, err := h.store.ListSyncLogs(ctx, "no-cred", 10)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestBaselineRestingHR(t *testing.T) {
	byDay := map[string]int{
		day(3).Format(domain.DateLayout): 60,
		day(5).Format(domain.DateLayout): 57,
		day(9).Format(domain.DateLayout): 54,
		day(2).Format(domain.DateLayout): 90,
	}
	require.Equal(t, 57.0, baselineRestingHR(byDay, day(10)))
	require.Zero(t, baselineRestingHR(map[string]int{}, day(10)))
}
