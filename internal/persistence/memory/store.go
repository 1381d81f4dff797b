// Package memory provides an in-process domain.Store for tests and local runs.
package memory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/events"
	"example.com/healthscore/internal/persistence"
)

// Store keeps every table in maps guarded by one mutex. WithinTx holds the
// mutex for the duration of fn, so fn must only use the Tx it is given.
type Store struct {
	mu    sync.Mutex
	state state
	now   func() time.Time

	// CommitErr, when set, makes the next WithinTx discard its writes and
	// return the error after fn succeeds.
	CommitErr error
}

type state struct {
	users      map[string]domain.User
	metrics    map[string]map[string]domain.DailyMetric
	activities map[string]domain.Activity
	byExternal map[string]string
	syncLogs   []domain.SyncLog
	outbox     []events.Envelope
	dedupe     map[string]struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: state{
			users:      map[string]domain.User{},
			metrics:    map[string]map[string]domain.DailyMetric{},
			activities: map[string]domain.Activity{},
			byExternal: map[string]string{},
			dedupe:     map[string]struct{}{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s state) clone() state {
	metrics := make(map[string]map[string]domain.DailyMetric, len(s.metrics))
	for user, byDate := range s.metrics {
		metrics[user] = maps.Clone(byDate)
	}
	return state{
		users:      maps.Clone(s.users),
		metrics:    metrics,
		activities: maps.Clone(s.activities),
		byExternal: maps.Clone(s.byExternal),
		syncLogs:   append([]domain.SyncLog(nil), s.syncLogs...),
		outbox:     append([]events.Envelope(nil), s.outbox...),
		dedupe:     maps.Clone(s.dedupe),
	}
}

// WithinTx applies fn's writes atomically.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := s.state.clone()
	if err := fn(&tx{state: &staged, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.CommitErr != nil {
		err := s.CommitErr
		s.CommitErr = nil
		return err
	}
	s.state = staged
	return nil
}

type tx struct {
	state *state
	now   func() time.Time
}

func externalKey(userID, externalID string) string {
	return userID + "\x00" + externalID
}

func (t *tx) UpsertDailyMetric(_ context.Context, metric domain.DailyMetric) error {
	if _, ok := t.state.users[metric.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	now := t.now()
	day := domain.Day(metric.Date)
	metric.Date = day
	key := day.Format(domain.DateLayout)

	byDate := t.state.metrics[metric.UserID]
	if byDate == nil {
		byDate = map[string]domain.DailyMetric{}
		t.state.metrics[metric.UserID] = byDate
	}
	if existing, ok := byDate[key]; ok {
		metric.CreatedAt = existing.CreatedAt
	} else {
		metric.CreatedAt = now
	}
	metric.UpdatedAt = now
	byDate[key] = metric
	return nil
}

func (t *tx) UpsertActivity(_ context.Context, activity domain.Activity) (string, error) {
	if _, ok := t.state.users[activity.UserID]; !ok {
		return "", domain.ErrUserNotFound
	}
	now := t.now()
	key := externalKey(activity.UserID, activity.ExternalID)
	if id, ok := t.state.byExternal[key]; ok {
		existing := t.state.activities[id]
		activity.ID = id
		activity.CreatedAt = existing.CreatedAt
	} else {
		if activity.ID == "" {
			activity.ID = uuid.NewString()
		}
		activity.CreatedAt = now
		t.state.byExternal[key] = activity.ID
	}
	activity.UpdatedAt = now
	t.state.activities[activity.ID] = activity
	return activity.ID, nil
}

func (t *tx) AppendSyncLog(_ context.Context, entry domain.SyncLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	t.state.syncLogs = append(t.state.syncLogs, entry)
	return nil
}

func (t *tx) UpdateUserSyncState(_ context.Context, userID string, update domain.SyncStateUpdate) (domain.UserSyncState, error) {
	user, ok := t.state.users[userID]
	if !ok {
		return domain.UserSyncState{}, domain.ErrUserNotFound
	}
	update.Apply(&user)
	user.UpdatedAt = t.now()
	t.state.users[userID] = user
	return user.SyncState(), nil
}

func (t *tx) EnqueueEvent(_ context.Context, event events.Envelope) error {
	if _, ok := events.Catalog[event.EventType]; !ok {
		return errors.New("unknown event type " + event.EventType)
	}
	key := event.DedupeKey()
	if _, dup := t.state.dedupe[key]; dup {
		return nil
	}
	t.state.dedupe[key] = struct{}{}
	t.state.outbox = append(t.state.outbox, event)
	return nil
}

// GetUser returns nil when the user does not exist.
func (s *Store) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (s *Store) EnsureUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.users[userID]
	if !ok {
		now := s.now()
		user = domain.User{ID: userID, CreatedAt: now, UpdatedAt: now}
		s.state.users[userID] = user
	}
	return &user, nil
}

// PutUser stores user as-is. It is meant for seeding test fixtures.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.state.users[user.ID] = user
}

func (s *Store) ListSyncableUsers(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, user := range s.state.users {
		if user.SyncEnabled && user.HasCredential() {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetCredential(_ context.Context, userID, ciphertext string) error {
	return s.updateUser(userID, func(u *domain.User) {
		u.CredentialCiphertext = ciphertext
		u.CredentialNeedsReentry = false
		u.ConsecutiveAuthFailures = 0
		u.SyncEnabled = true
	})
}

func (s *Store) ClearCredential(_ context.Context, userID string) error {
	return s.updateUser(userID, func(u *domain.User) {
		u.CredentialCiphertext = ""
		u.CredentialNeedsReentry = false
		u.SyncEnabled = false
	})
}

func (s *Store) updateUser(userID string, mutate func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	mutate(&user)
	user.UpdatedAt = s.now()
	s.state.users[userID] = user
	return nil
}

// DeleteUser removes the user with its metrics and activities. Sync logs
// are kept for audit.
func (s *Store) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.state.users, userID)
	delete(s.state.metrics, userID)
	for id, a := range s.state.activities {
		if a.UserID == userID {
			delete(s.state.activities, id)
			delete(s.state.byExternal, externalKey(userID, a.ExternalID))
		}
	}
	return nil
}

// GetDailyMetric returns nil when no row exists.
func (s *Store) GetDailyMetric(_ context.Context, userID string, date time.Time) (*domain.DailyMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	metric, ok := s.state.metrics[userID][domain.Day(date).Format(domain.DateLayout)]
	if !ok {
		return nil, nil
	}
	return &metric, nil
}

func (s *Store) ListDailyMetrics(_ context.Context, userID string, from, to time.Time) ([]domain.DailyMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to = domain.Day(from), domain.Day(to)
	var out []domain.DailyMetric
	for _, metric := range s.state.metrics[userID] {
		if !metric.Date.Before(from) && !metric.Date.After(to) {
			out = append(out, metric)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) ListActivities(_ context.Context, userID string, cursor *domain.ActivityCursor, limit int) ([]domain.Activity, *domain.ActivityCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.Activity
	for _, a := range s.state.activities {
		if a.UserID == userID && persistence.After(cursor, a.StartedAt, a.ID) {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	if limit <= 0 || len(all) <= limit {
		return all, nil, nil
	}
	page := all[:limit]
	last := page[len(page)-1]
	return page, &domain.ActivityCursor{StartedAt: last.StartedAt, ID: last.ID}, nil
}

// ListSyncLogs returns the newest logs first.
func (s *Store) ListSyncLogs(_ context.Context, userID string, limit int) ([]domain.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SyncLog
	for i := len(s.state.syncLogs) - 1; i >= 0; i-- {
		if s.state.syncLogs[i].UserID == userID {
			out = append(out, s.state.syncLogs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Events returns a copy of the queued outbox events.
func (s *Store) Events() []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Envelope(nil), s.state.outbox...)
}

// Activities returns every stored activity of userID ordered by start time.
func (s *Store) Activities(userID string) []domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Activity
	for _, a := range s.state.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

var _ domain.Store = (*Store)(nil)
