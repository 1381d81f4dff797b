package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/events"
)

// Store provides Postgres-backed persistence for users, metrics, activities,
// sync logs and outbox events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn in one transaction. The transaction is rolled back when fn
// fails or ctx is cancelled before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type storeTx struct {
	tx pgx.Tx
}

const upsertDailyMetric = `INSERT INTO daily_metrics (
        user_id, metric_date, resting_heart_rate, baseline_resting_heart_rate, body_battery_delta,
        sleep_duration_minutes, sleep_deep_minutes, sleep_rem_minutes, stress_avg, intensity_minutes,
        active_calories, training_effect_total, recovery_score, strain_score, sleep_performance, readings)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    ON CONFLICT (user_id, metric_date) DO UPDATE SET
        resting_heart_rate = EXCLUDED.resting_heart_rate,
        baseline_resting_heart_rate = EXCLUDED.baseline_resting_heart_rate,
        body_battery_delta = EXCLUDED.body_battery_delta,
        sleep_duration_minutes = EXCLUDED.sleep_duration_minutes,
        sleep_deep_minutes = EXCLUDED.sleep_deep_minutes,
        sleep_rem_minutes = EXCLUDED.sleep_rem_minutes,
        stress_avg = EXCLUDED.stress_avg,
        intensity_minutes = EXCLUDED.intensity_minutes,
        active_calories = EXCLUDED.active_calories,
        training_effect_total = EXCLUDED.training_effect_total,
        recovery_score = EXCLUDED.recovery_score,
        strain_score = EXCLUDED.strain_score,
        sleep_performance = EXCLUDED.sleep_performance,
        readings = EXCLUDED.readings,
        updated_at = NOW()`

func (t *storeTx) UpsertDailyMetric(ctx context.Context, m domain.DailyMetric) error {
	readings, err := json.Marshal(m.Detail)
	if err != nil {
		return err
	}
	in := m.Inputs
	_, err = t.tx.Exec(ctx, upsertDailyMetric,
		m.UserID,
		domain.Day(m.Date),
		in.RestingHeartRate,
		in.BaselineRestingHeartRate,
		in.BodyBatteryDelta,
		in.SleepDurationMinutes,
		in.SleepDeepMinutes,
		in.SleepRemMinutes,
		in.StressAvg,
		in.IntensityMinutes,
		in.ActiveCalories,
		in.TrainingEffectTotal,
		m.Scores.Recovery,
		m.Scores.Strain,
		m.Scores.SleepPerformance,
		readings,
	)
	return mapWriteError(err)
}

const upsertActivity = `INSERT INTO activities (
        activity_id, user_id, external_id, name, activity_type, started_at, duration_seconds,
        average_heart_rate, max_heart_rate, distance_meters, calories, hr_zone_minutes,
        aerobic_effect, anaerobic_effect, training_effect, strain_contribution)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    ON CONFLICT (user_id, external_id) DO UPDATE SET
        name = EXCLUDED.name,
        activity_type = EXCLUDED.activity_type,
        started_at = EXCLUDED.started_at,
        duration_seconds = EXCLUDED.duration_seconds,
        average_heart_rate = EXCLUDED.average_heart_rate,
        max_heart_rate = EXCLUDED.max_heart_rate,
        distance_meters = EXCLUDED.distance_meters,
        calories = EXCLUDED.calories,
        hr_zone_minutes = EXCLUDED.hr_zone_minutes,
        aerobic_effect = EXCLUDED.aerobic_effect,
        anaerobic_effect = EXCLUDED.anaerobic_effect,
        training_effect = EXCLUDED.training_effect,
        strain_contribution = EXCLUDED.strain_contribution,
        updated_at = NOW()
    RETURNING activity_id`

func (t *storeTx) UpsertActivity(ctx context.Context, a domain.Activity) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var id string
	err := t.tx.QueryRow(ctx, upsertActivity,
		a.ID,
		a.UserID,
		a.ExternalID,
		a.Name,
		a.ActivityType,
		a.StartedAt.UTC(),
		a.Duration.Seconds(),
		a.AverageHeartRate,
		a.MaxHeartRate,
		a.DistanceMeters,
		a.Calories,
		a.HRZoneMinutes[:],
		a.AerobicEffect,
		a.AnaerobicEffect,
		a.TrainingEffect,
		a.StrainContribution,
	).Scan(&id)
	if err != nil {
		return "", mapWriteError(err)
	}
	return id, nil
}

func (t *storeTx) AppendSyncLog(ctx context.Context, l domain.SyncLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	const stmt = `INSERT INTO sync_logs (sync_id, user_id, started_at, finished_at, outcome, error_kind, error_detail,
        records_written, metrics_written, activities_written, window_start, window_end)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := t.tx.Exec(ctx, stmt,
		l.ID,
		l.UserID,
		l.StartedAt,
		l.FinishedAt,
		string(l.Outcome),
		nullIfEmpty(string(l.ErrorKind)),
		l.ErrorDetail,
		l.RecordsWritten,
		l.MetricsWritten,
		l.ActivitiesWritten,
		l.WindowStart,
		l.WindowEnd,
	)
	return err
}

// UpdateUserSyncState locks the user row so credential changes made by the
// API while the run was in flight are seen, then writes the merged state.
func (t *storeTx) UpdateUserSyncState(ctx context.Context, userID string, update domain.SyncStateUpdate) (domain.UserSyncState, error) {
	user, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserSyncState{}, domain.ErrUserNotFound
		}
		return domain.UserSyncState{}, err
	}
	update.Apply(&user)

	const stmt = `UPDATE users SET sync_enabled=$2, last_sync_at=$3, consecutive_auth_failures=$4,
        credential_needs_reentry=$5, updated_at=NOW() WHERE user_id=$1`
	if _, err := t.tx.Exec(ctx, stmt, userID, user.SyncEnabled, user.LastSyncAt, user.ConsecutiveAuthFailures, user.CredentialNeedsReentry); err != nil {
		return domain.UserSyncState{}, err
	}
	return user.SyncState(), nil
}

func (t *storeTx) EnqueueEvent(ctx context.Context, e events.Envelope) error {
	meta, ok := events.Catalog[e.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", e.EventType)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`
	_, err = t.tx.Exec(ctx, stmt,
		e.UserID,
		e.AggregateType,
		e.AggregateID,
		e.EventType,
		meta.Topic,
		meta.SchemaSubject,
		e.PartitionKey(),
		body,
		e.DedupeKey(),
	)
	return err
}

const userColumns = `user_id, COALESCE(credential_ciphertext, ''), credential_needs_reentry, sync_enabled,
        last_sync_at, consecutive_auth_failures, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.CredentialCiphertext, &u.CredentialNeedsReentry, &u.SyncEnabled,
		&u.LastSyncAt, &u.ConsecutiveAuthFailures, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUser returns nil when the user does not exist.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) EnsureUser(ctx context.Context, userID string) (*domain.User, error) {
	if _, err := s.pool.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) ListSyncableUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users
        WHERE sync_enabled AND credential_ciphertext IS NOT NULL AND credential_ciphertext <> ''
          AND NOT credential_needs_reentry
        ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SetCredential(ctx context.Context, userID, ciphertext string) error {
	return s.updateUser(ctx, `UPDATE users SET credential_ciphertext=$2, credential_needs_reentry=FALSE,
        consecutive_auth_failures=0, sync_enabled=TRUE, updated_at=NOW() WHERE user_id=$1`, userID, ciphertext)
}

func (s *Store) ClearCredential(ctx context.Context, userID string) error {
	return s.updateUser(ctx, `UPDATE users SET credential_ciphertext=NULL, credential_needs_reentry=FALSE,
        sync_enabled=FALSE, updated_at=NOW() WHERE user_id=$1`, userID)
}

// DeleteUser removes the user; metrics and activities cascade, sync logs stay.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.updateUser(ctx, `DELETE FROM users WHERE user_id=$1`, userID)
}

func (s *Store) updateUser(ctx context.Context, stmt string, args ...any) error {
	tag, err := s.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

const metricColumns = `user_id, metric_date, resting_heart_rate, baseline_resting_heart_rate, body_battery_delta,
        sleep_duration_minutes, sleep_deep_minutes, sleep_rem_minutes, stress_avg, intensity_minutes,
        active_calories, training_effect_total, recovery_score, strain_score, sleep_performance, readings,
        created_at, updated_at`

func scanMetric(row pgx.Row) (domain.DailyMetric, error) {
	var (
		m        domain.DailyMetric
		readings []byte
	)
	in := &m.Inputs
	err := row.Scan(&m.UserID, &m.Date, &in.RestingHeartRate, &in.BaselineRestingHeartRate, &in.BodyBatteryDelta,
		&in.SleepDurationMinutes, &in.SleepDeepMinutes, &in.SleepRemMinutes, &in.StressAvg, &in.IntensityMinutes,
		&in.ActiveCalories, &in.TrainingEffectTotal, &m.Scores.Recovery, &m.Scores.Strain, &m.Scores.SleepPerformance,
		&readings, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.Date = domain.Day(m.Date)
	if err := json.Unmarshal(readings, &m.Detail); err != nil {
		return m, fmt.Errorf("decode readings for %s: %w", m.Date.Format(domain.DateLayout), err)
	}
	return m, nil
}

// GetDailyMetric returns nil when no row exists.
func (s *Store) GetDailyMetric(ctx context.Context, userID string, date time.Time) (*domain.DailyMetric, error) {
	m, err := scanMetric(s.pool.QueryRow(ctx, `SELECT `+metricColumns+` FROM daily_metrics
        WHERE user_id=$1 AND metric_date=$2`, userID, domain.Day(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListDailyMetrics(ctx context.Context, userID string, from, to time.Time) ([]domain.DailyMetric, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+metricColumns+` FROM daily_metrics
        WHERE user_id=$1 AND metric_date BETWEEN $2 AND $3
        ORDER BY metric_date DESC`, userID, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []domain.DailyMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// ListActivities returns activities newest first. The next cursor is nil on
// the last page.
func (s *Store) ListActivities(ctx context.Context, userID string, cursor *domain.ActivityCursor, limit int) ([]domain.Activity, *domain.ActivityCursor, error) {
	args := []any{userID, limit + 1}
	query := `SELECT activity_id, user_id, external_id, name, activity_type, started_at, duration_seconds,
        average_heart_rate, max_heart_rate, distance_meters, calories, hr_zone_minutes,
        aerobic_effect, anaerobic_effect, training_effect, strain_contribution, created_at, updated_at
        FROM activities WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (started_at, activity_id) < ($3, $4)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, activity_id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		var (
			a        domain.Activity
			duration float64
			zones    []float64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.ExternalID, &a.Name, &a.ActivityType, &a.StartedAt, &duration,
			&a.AverageHeartRate, &a.MaxHeartRate, &a.DistanceMeters, &a.Calories, &zones,
			&a.AerobicEffect, &a.AnaerobicEffect, &a.TrainingEffect, &a.StrainContribution, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, nil, err
		}
		a.Duration = time.Duration(duration * float64(time.Second))
		copy(a.HRZoneMinutes[:], zones)
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.ActivityCursor
	if len(results) > limit {
		results = results[:limit]
		last := results[len(results)-1]
		next = &domain.ActivityCursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListSyncLogs returns the newest logs first.
func (s *Store) ListSyncLogs(ctx context.Context, userID string, limit int) ([]domain.SyncLog, error) {
	rows, err := s.pool.Query(ctx, `SELECT sync_id, user_id, started_at, finished_at, outcome, COALESCE(error_kind, ''),
        error_detail, records_written, metrics_written, activities_written, window_start, window_end
        FROM sync_logs WHERE user_id=$1 ORDER BY started_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.SyncLog
	for rows.Next() {
		var (
			l       domain.SyncLog
			outcome string
			kind    string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.StartedAt, &l.FinishedAt, &outcome, &kind, &l.ErrorDetail,
			&l.RecordsWritten, &l.MetricsWritten, &l.ActivitiesWritten, &l.WindowStart, &l.WindowEnd); err != nil {
			return nil, err
		}
		l.Outcome = domain.SyncOutcome(outcome)
		l.ErrorKind = domain.ErrorKind(kind)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// mapWriteError turns a foreign key violation on user_id into ErrUserNotFound.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, pgErr.ConstraintName)
	}
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ domain.Store = (*Store)(nil)
