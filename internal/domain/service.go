package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
	maxRangeDays         = 366
	defaultSummaryDays   = 7
)

// ErrInvalidRange is returned when a date range is reversed or too long.
var ErrInvalidRange = errors.New("invalid date range")

// Service exposes the read side of the metrics store and provider account
// management.
type Service struct {
	store    Store
	sealer   CredentialSealer
	verifier CredentialVerifier
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, sealer CredentialSealer, verifier CredentialVerifier) *Service {
	return &Service{
		store:    store,
		sealer:   sealer,
		verifier: verifier,
		now:      time.Now,
	}
}

// GetDailyMetric returns the metric for one date.
func (s *Service) GetDailyMetric(ctx context.Context, userID string, date time.Time) (*DailyMetric, error) {
	metric, err := s.store.GetDailyMetric(ctx, userID, Day(date))
	if err != nil {
		return nil, err
	}
	if metric == nil {
		return nil, ErrMetricNotFound
	}
	return metric, nil
}

// ListDailyMetrics returns metrics for an inclusive date range, newest first.
func (s *Service) ListDailyMetrics(ctx context.Context, userID string, from, to time.Time) ([]DailyMetric, error) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRange, maxRangeDays)
	}
	return s.store.ListDailyMetrics(ctx, userID, from, to)
}

// Summary averages the scores of the last days calendar days ending today.
func (s *Service) Summary(ctx context.Context, userID string, days int) (Summary, error) {
	if days <= 0 {
		days = defaultSummaryDays
	}
	if days > maxRangeDays {
		days = maxRangeDays
	}
	to := Day(s.now())
	from := to.AddDate(0, 0, -(days - 1))

	metrics, err := s.store.ListDailyMetrics(ctx, userID, from, to)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{From: from, To: to, DaysWithData: len(metrics)}
	if len(metrics) == 0 {
		return summary, nil
	}
	latest := metrics[0]
	summary.Latest = &latest

	var recovery, strain, sleepPerf, sleepHours []float64
	for _, m := range metrics {
		if m.Scores.Recovery > 0 {
			recovery = append(recovery, m.Scores.Recovery)
		}
		if m.Scores.Strain > 0 {
			strain = append(strain, m.Scores.Strain)
		}
		if m.Scores.SleepPerformance > 0 {
			sleepPerf = append(sleepPerf, m.Scores.SleepPerformance)
		}
		if m.Inputs.SleepDurationMinutes > 0 {
			sleepHours = append(sleepHours, float64(m.Inputs.SleepDurationMinutes)/60)
		}
	}
	summary.AverageRecovery = average(recovery)
	summary.AverageStrain = average(strain)
	summary.AverageSleepPerformance = average(sleepPerf)
	summary.AverageSleepHours = average(sleepHours)
	return summary, nil
}

// ListActivities returns a page of activities, newest first.
func (s *Service) ListActivities(ctx context.Context, userID string, cursor *ActivityCursor, limit int) ([]Activity, *ActivityCursor, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return s.store.ListActivities(ctx, userID, cursor, limit)
}

// ListSyncLogs returns the most recent sync runs for a user.
func (s *Service) ListSyncLogs(ctx context.Context, userID string, limit int) ([]SyncLog, error) {
	if limit <= 0 || limit > maxActivityLimit {
		limit = defaultActivityLimit
	}
	return s.store.ListSyncLogs(ctx, userID, limit)
}

// ConnectProvider verifies the credential against the provider, seals it
// and enables sync for the user.
func (s *Service) ConnectProvider(ctx context.Context, userID string, cred Credential) error {
	cred.Email = strings.TrimSpace(cred.Email)
	if cred.Email == "" || cred.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrNoCredential)
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, cred); err != nil {
			return err
		}
	}

	ciphertext, err := s.sealer.SealCredential(userID, cred)
	if err != nil {
		return err
	}
	if _, err := s.store.EnsureUser(ctx, userID); err != nil {
		return err
	}
	return s.store.SetCredential(ctx, userID, ciphertext)
}

// DisconnectProvider removes the stored credential.
func (s *Service) DisconnectProvider(ctx context.Context, userID string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.store.ClearCredential(ctx, userID)
}

func average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := float64(int((sum/float64(len(values)))*10+0.5)) / 10
	return &avg
}
