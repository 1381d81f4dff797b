package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/observability"
	"example.com/healthscore/internal/scoring"
	"example.com/healthscore/internal/telemetry"
)

// baselineDays is the number of preceding days averaged into the resting
// heart rate baseline.
const baselineDays = 7

type dayFetch struct {
	date       time.Time
	summary    *telemetry.DailySummary
	summaryErr error
	sleep      *telemetry.Sleep
	sleepErr   error
}

type fetchResult struct {
	days          []dayFetch
	activities    []telemetry.Activity
	activitiesErr error
	calls         int
	failures      int
}

func (f fetchResult) partial() bool {
	return f.failures > 0
}

type batch struct {
	metrics    []domain.DailyMetric
	activities []domain.Activity
}

func (o *Orchestrator) fetch(ctx context.Context, r *run, session telemetry.Session) (fetchResult, error) {
	var res fetchResult
	track := func(err error) error {
		res.calls++
		if err == nil {
			return nil
		}
		res.failures++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrAuthentication) {
			return failure(domain.ErrAuthentication, err, "provider rejected the session while fetching")
		}
		r.logger.Debug("provider call failed", "calls", res.calls, "error", err)
		return nil
	}

	for day := r.windowStart; !day.After(r.windowEnd); day = day.AddDate(0, 0, 1) {
		df := dayFetch{date: day}

		df.summaryErr = o.call(ctx, "daily_summary", func(ctx context.Context) error {
			summary, err := o.client.FetchDailySummary(ctx, session, day)
			df.summary = summary
			return err
		})
		if err := track(df.summaryErr); err != nil {
			return res, err
		}

		df.sleepErr = o.call(ctx, "sleep", func(ctx context.Context) error {
			sleep, err := o.client.FetchSleep(ctx, session, day)
			df.sleep = sleep
			return err
		})
		if err := track(df.sleepErr); err != nil {
			return res, err
		}

		if df.summaryErr != nil {
			df.summary = nil
		}
		if df.sleepErr != nil {
			df.sleep = nil
		}
		res.days = append(res.days, df)
	}

	res.activitiesErr = o.call(ctx, "activities", func(ctx context.Context) error {
		activities, err := o.client.FetchActivities(ctx, session, r.windowStart, r.windowEnd)
		res.activities = activities
		return err
	})
	if err := track(res.activitiesErr); err != nil {
		return res, err
	}
	if res.activitiesErr != nil {
		res.activities = nil
	}

	if res.failures == res.calls {
		return res, failure(domain.ErrFetch, res.activitiesErr, "all %d provider requests failed", res.calls)
	}
	if res.partial() {
		r.logger.Warn("some provider requests failed", "failed", res.failures, "total", res.calls)
	}
	return res, nil
}

// normalize turns provider payloads into scored rows. Values of a part whose
// fetch failed are carried forward from the stored row; a date for which
// nothing was obtained is left untouched.
func (o *Orchestrator) normalize(ctx context.Context, r *run, fetched fetchResult) (batch, error) {
	stored, err := o.store.ListDailyMetrics(ctx, r.user.ID, r.windowStart.AddDate(0, 0, -baselineDays), r.windowEnd)
	if err != nil {
		if ctx.Err() != nil {
			return batch{}, ctx.Err()
		}
		return batch{}, failure(domain.ErrStorage, err, "stored metrics could not be loaded")
	}

	storedRows := make(map[string]domain.DailyMetric, len(stored))
	restingHR := make(map[string]int, len(stored))
	for _, m := range stored {
		key := m.Date.Format(domain.DateLayout)
		storedRows[key] = m
		if m.Inputs.RestingHeartRate > 0 {
			restingHR[key] = m.Inputs.RestingHeartRate
		}
	}

	var out batch
	activitiesOK := fetched.activitiesErr == nil
	trainingByDay := map[string]float64{}
	if activitiesOK {
		out.activities = o.mapActivities(r.user.ID, fetched.activities)
		for _, a := range out.activities {
			trainingByDay[a.StartedAt.Format(domain.DateLayout)] += a.TrainingEffect
		}
	}

	for _, df := range fetched.days {
		key := df.date.Format(domain.DateLayout)
		prevRow, hasStored := storedRows[key]
		prev := prevRow.Inputs
		_, hasTraining := trainingByDay[key]

		if df.summary == nil && df.sleep == nil && !hasTraining {
			continue
		}

		var (
			in     scoring.Inputs
			detail domain.DailyDetail
		)
		switch {
		case df.summary != nil:
			in.RestingHeartRate = df.summary.RestingHeartRate
			in.BodyBatteryDelta = df.summary.BodyBatteryDelta()
			in.StressAvg = df.summary.AverageStressLevel
			in.IntensityMinutes = df.summary.IntensityMinutes()
			in.ActiveCalories = df.summary.ActiveKilocalories
			detail.Wellness = df.summary.Wellness()
		case df.summaryErr != nil && hasStored:
			in.RestingHeartRate = prev.RestingHeartRate
			in.BodyBatteryDelta = prev.BodyBatteryDelta
			in.StressAvg = prev.StressAvg
			in.IntensityMinutes = prev.IntensityMinutes
			in.ActiveCalories = prev.ActiveCalories
			detail.Wellness = prevRow.Detail.Wellness
		}

		switch {
		case df.sleep != nil:
			in.SleepDurationMinutes = df.sleep.DurationMinutes()
			in.SleepDeepMinutes = df.sleep.DeepMinutes()
			in.SleepRemMinutes = df.sleep.RemMinutes()
			detail.Sleep = df.sleep.Detail()
		case df.sleepErr != nil && hasStored:
			in.SleepDurationMinutes = prev.SleepDurationMinutes
			in.SleepDeepMinutes = prev.SleepDeepMinutes
			in.SleepRemMinutes = prev.SleepRemMinutes
			detail.Sleep = prevRow.Detail.Sleep
		}

		switch {
		case activitiesOK:
			in.TrainingEffectTotal = math.Round(trainingByDay[key]*100) / 100
		case hasStored:
			in.TrainingEffectTotal = prev.TrainingEffectTotal
		}

		if in.RestingHeartRate > 0 {
			restingHR[key] = in.RestingHeartRate
		} else {
			delete(restingHR, key)
		}
		in.BaselineRestingHeartRate = baselineRestingHR(restingHR, df.date)

		metric := domain.NewDailyMetric(o.engine, r.user.ID, df.date, in)
		metric.Detail = detail
		out.metrics = append(out.metrics, metric)
	}
	return out, nil
}

// baselineRestingHR averages the non-zero resting heart rates of the days
// before date. It returns 0 when there are none.
func baselineRestingHR(byDay map[string]int, date time.Time) float64 {
	var sum, n int
	for i := 1; i <= baselineDays; i++ {
		if v := byDay[date.AddDate(0, 0, -i).Format(domain.DateLayout)]; v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*10) / 10
}

// mapActivities converts provider activities, keeping the last occurrence of
// each external ID.
func (o *Orchestrator) mapActivities(userID string, in []telemetry.Activity) []domain.Activity {
	index := make(map[string]int, len(in))
	out := make([]domain.Activity, 0, len(in))
	for _, a := range in {
		if a.ExternalID == "" {
			continue
		}
		zones := a.HRZoneMinutes()
		mapped := domain.Activity{
			UserID:           userID,
			ExternalID:       a.ExternalID,
			Name:             a.Name,
			ActivityType:     a.Type,
			StartedAt:        a.StartTime.UTC(),
			Duration:         time.Duration(a.DurationSeconds * float64(time.Second)),
			AverageHeartRate: int(math.Round(a.AverageHeartRate)),
			MaxHeartRate:     a.RoundedMaxHeartRate(),
			DistanceMeters:   a.DistanceMeters,
			Calories:         int(math.Round(a.Calories)),
			HRZoneMinutes:    zones,
			AerobicEffect:    a.AerobicTrainingEffect,
			AnaerobicEffect:  a.AnaerobicTrainingEffect,
			TrainingEffect:   a.TrainingEffect(),
			StrainContribution: o.engine.ActivityStrain(scoring.ActivityLoad{
				TrainingEffect: a.TrainingEffect(),
				HRZoneMinutes:  zones,
			}),
		}
		if i, seen := index[a.ExternalID]; seen {
			out[i] = mapped
			continue
		}
		index[a.ExternalID] = len(out)
		out = append(out, mapped)
	}
	return out
}

func (o *Orchestrator) persist(ctx context.Context, r *run, b batch, fetched fetchResult) (*domain.SyncLog, error) {
	finishedAt := o.now().UTC()
	entry := &domain.SyncLog{
		ID:                r.id,
		UserID:            r.user.ID,
		StartedAt:         r.startedAt,
		FinishedAt:        finishedAt,
		Outcome:           domain.SyncOutcomeSuccess,
		RecordsWritten:    len(b.metrics) + len(b.activities),
		MetricsWritten:    len(b.metrics),
		ActivitiesWritten: len(b.activities),
		WindowStart:       r.windowStart,
		WindowEnd:         r.windowEnd,
	}
	if fetched.partial() {
		detail := fmt.Sprintf("%d of %d provider requests failed", fetched.failures, fetched.calls)
		entry.Outcome = domain.SyncOutcomePartial
		entry.ErrorKind = domain.KindFetch
		entry.ErrorDetail = &detail
	}

	update := domain.SyncStateUpdate{
		CredentialCiphertext: r.user.CredentialCiphertext,
		LastSyncAt:           &finishedAt,
		ResetAuthFailures:    true,
	}

	err := o.store.WithinTx(ctx, func(tx domain.Tx) error {
		for _, metric := range b.metrics {
			if err := tx.UpsertDailyMetric(ctx, metric); err != nil {
				return fmt.Errorf("upsert daily metric %s: %w", metric.Date.Format(domain.DateLayout), err)
			}
			if err := tx.EnqueueEvent(ctx, dailyMetricScoredEvent(r.id, metric, finishedAt)); err != nil {
				return fmt.Errorf("enqueue score event: %w", err)
			}
		}
		for _, activity := range b.activities {
			if _, err := tx.UpsertActivity(ctx, activity); err != nil {
				return fmt.Errorf("upsert activity %s: %w", activity.ExternalID, err)
			}
		}
		if err := tx.AppendSyncLog(ctx, *entry); err != nil {
			return fmt.Errorf("append sync log: %w", err)
		}
		if _, err := tx.UpdateUserSyncState(ctx, r.user.ID, update); err != nil {
			return fmt.Errorf("update sync state: %w", err)
		}
		return tx.EnqueueEvent(ctx, syncCompletedEvent(*entry))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failure(domain.ErrStorage, err, "metrics store rejected the run")
	}

	observability.RecordRecordsWritten(entry.MetricsWritten, entry.ActivitiesWritten)
	return entry, nil
}
