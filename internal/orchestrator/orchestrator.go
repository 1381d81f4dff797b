// Package orchestrator runs credential-gated, per-user sync of provider
// telemetry into the metrics store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/events"
	"example.com/healthscore/internal/observability"
	"example.com/healthscore/internal/scoring"
	"example.com/healthscore/internal/telemetry"
)

// State is a step of the per-run state machine.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateFetching       State = "fetching"
	StateNormalizing    State = "normalizing"
	StatePersisting     State = "persisting"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

const failureRecordTimeout = 5 * time.Second

// Config holds the sync tunables.
type Config struct {
	DefaultLookbackDays                     int
	MaxFetchRetries                         int
	FetchRetryBaseDelay                     time.Duration
	FetchRetryMultiplier                    float64
	SyncTimeout                             time.Duration
	ProviderCallTimeout                     time.Duration
	MaxConsecutiveAuthFailuresBeforeDisable int
	SchedulerConcurrency                    int
	SchedulerStartsPerSecond                float64
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLookbackDays:                     7,
		MaxFetchRetries:                         3,
		FetchRetryBaseDelay:                     500 * time.Millisecond,
		FetchRetryMultiplier:                    2,
		SyncTimeout:                             60 * time.Second,
		ProviderCallTimeout:                     15 * time.Second,
		MaxConsecutiveAuthFailuresBeforeDisable: 3,
		SchedulerConcurrency:                    4,
		SchedulerStartsPerSecond:                2,
	}
}

// CredentialOpener decrypts a stored credential.
type CredentialOpener interface {
	OpenCredential(userID, ciphertext string) (domain.Credential, error)
}

// Option configures optional behaviour for the Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source used for windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEngine overrides the scoring engine.
func WithEngine(engine scoring.Engine) Option {
	return func(o *Orchestrator) {
		o.engine = engine
	}
}

// Orchestrator coordinates sync runs. It is safe for concurrent use; runs
// for the same user are mutually exclusive.
type Orchestrator struct {
	store  domain.Store
	client telemetry.Client
	vault  CredentialOpener
	engine scoring.Engine
	cfg    Config
	retry  RetryPolicy
	locks  *KeyedLock
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an Orchestrator.
func New(store domain.Store, client telemetry.Client, vault CredentialOpener, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		client: client,
		vault:  vault,
		engine: scoring.New(),
		cfg:    cfg,
		retry: RetryPolicy{
			MaxAttempts: cfg.MaxFetchRetries,
			BaseDelay:   cfg.FetchRetryBaseDelay,
			Multiplier:  cfg.FetchRetryMultiplier,
		},
		locks:  NewKeyedLock(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type run struct {
	id          string
	user        domain.User
	startedAt   time.Time
	windowStart time.Time
	windowEnd   time.Time
	state       State
	loggedIn    bool
	logger      *slog.Logger
}

func (r *run) transition(next State) {
	r.logger.Debug("sync state transition", "from", r.state, "to", next)
	r.state = next
}

// RunSync pulls the user's telemetry for the current window, scores it and
// persists it atomically. It returns the terminal SyncLog, or a nil log when
// the request is rejected before a run starts (in progress, disabled, no
// credential, unknown user).
func (o *Orchestrator) RunSync(ctx context.Context, userID string) (*domain.SyncLog, error) {
	unlock, ok := o.locks.TryLock(userID)
	if !ok {
		observability.RecordSyncRejected(string(domain.KindSyncInProgress))
		return nil, domain.ErrSyncInProgress
	}
	defer unlock()

	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %v", domain.ErrStorage, err)
	}
	if err := guard(user); err != nil {
		observability.RecordSyncRejected(string(domain.KindOf(err)))
		return nil, err
	}

	now := o.now().UTC()
	r := &run{
		id:        uuid.NewString(),
		user:      *user,
		startedAt: now,
		state:     StateIdle,
	}
	r.windowStart, r.windowEnd = o.window(*user, now)
	r.logger = o.logger.With("user_id", userID, "sync_id", r.id)
	r.logger.Info("sync started",
		"window_start", r.windowStart.Format(domain.DateLayout),
		"window_end", r.windowEnd.Format(domain.DateLayout))

	defer observability.SyncStarted()()

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.SyncTimeout)
	defer cancel()

	entry, err := o.execute(runCtx, ctx, r)
	if entry != nil {
		observability.RecordSyncRun(string(entry.Outcome), string(entry.ErrorKind), entry.Duration(), entry.FinishedAt)
	}
	return entry, err
}

func guard(user *domain.User) error {
	switch {
	case user == nil:
		return domain.ErrUserNotFound
	case !user.SyncEnabled:
		return domain.ErrSyncDisabled
	case !user.HasCredential():
		return domain.ErrNoCredential
	}
	return nil
}

// window returns the inclusive UTC date range to fetch.
func (o *Orchestrator) window(user domain.User, now time.Time) (time.Time, time.Time) {
	end := domain.Day(now)
	start := end.AddDate(0, 0, -o.cfg.DefaultLookbackDays)
	if user.LastSyncAt != nil {
		start = domain.Day(*user.LastSyncAt)
	}
	if start.After(end) {
		start = end
	}
	return start, end
}

func (o *Orchestrator) execute(runCtx, parent context.Context, r *run) (*domain.SyncLog, error) {
	r.transition(StateAuthenticating)
	session, err := o.authenticate(runCtx, r)
	if err != nil {
		return o.fail(parent, runCtx, r, err)
	}

	r.transition(StateFetching)
	fetched, err := o.fetch(runCtx, r, session)
	if err != nil {
		return o.fail(parent, runCtx, r, err)
	}

	r.transition(StateNormalizing)
	batch, err := o.normalize(runCtx, r, fetched)
	if err != nil {
		return o.fail(parent, runCtx, r, err)
	}

	r.transition(StatePersisting)
	entry, err := o.persist(runCtx, r, batch, fetched)
	if err != nil {
		return o.fail(parent, runCtx, r, err)
	}

	r.transition(StateCompleted)
	r.logger.Info("sync completed",
		"outcome", entry.Outcome,
		"metrics_written", entry.MetricsWritten,
		"activities_written", entry.ActivitiesWritten,
		"duration", entry.Duration())
	return entry, nil
}

func (o *Orchestrator) authenticate(ctx context.Context, r *run) (telemetry.Session, error) {
	cred, err := o.vault.OpenCredential(r.user.ID, r.user.CredentialCiphertext)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			return telemetry.Session{}, failure(domain.ErrIntegrity, err, "stored credential failed integrity check and must be re-entered")
		}
		return telemetry.Session{}, failure(nil, err, "stored credential could not be opened")
	}

	var session telemetry.Session
	err = o.call(ctx, "login", func(ctx context.Context) error {
		s, err := o.client.Login(ctx, cred.Email, cred.Password)
		if err == nil {
			session = s
		}
		return err
	})
	switch {
	case err == nil:
		r.loggedIn = true
		return session, nil
	case ctx.Err() != nil:
		return telemetry.Session{}, ctx.Err()
	case errors.Is(err, domain.ErrAuthentication):
		return telemetry.Session{}, failure(domain.ErrAuthentication, err, "provider rejected the stored credential")
	default:
		return telemetry.Session{}, failure(domain.ErrFetch, err, "provider login failed")
	}
}

// call runs one provider request through the retry policy, bounding every
// attempt by the provider call timeout.
func (o *Orchestrator) call(ctx context.Context, name string, fn func(context.Context) error) error {
	attempts, err := o.retry.Do(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if o.cfg.ProviderCallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.ProviderCallTimeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && ctx.Err() == nil && callCtx.Err() != nil {
			return fmt.Errorf("%w: %s exceeded %s", domain.ErrFetch, name, o.cfg.ProviderCallTimeout)
		}
		return err
	})

	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	observability.RecordProviderCall(name, result, attempts)
	return err
}

func (o *Orchestrator) fail(parent, runCtx context.Context, r *run, cause error) (*domain.SyncLog, error) {
	serr := classify(parent, runCtx, cause)
	serr.Stage = r.state
	r.transition(StateFailed)

	finishedAt := o.now().UTC()
	detail := serr.Detail
	entry := &domain.SyncLog{
		ID:          r.id,
		UserID:      r.user.ID,
		StartedAt:   r.startedAt,
		FinishedAt:  finishedAt,
		Outcome:     domain.SyncOutcomeFailure,
		ErrorKind:   serr.Kind,
		ErrorDetail: &detail,
		WindowStart: r.windowStart,
		WindowEnd:   r.windowEnd,
	}

	update := domain.SyncStateUpdate{
		CredentialCiphertext: r.user.CredentialCiphertext,
		ResetAuthFailures:    r.loggedIn,
	}
	switch serr.Kind {
	case domain.KindAuthentication:
		update.AuthFailed = true
		update.DisableAfter = o.cfg.MaxConsecutiveAuthFailuresBeforeDisable
	case domain.KindIntegrity:
		update.FlagReentry = true
	}

	r.logger.Warn("sync failed",
		"stage", serr.Stage,
		"error_kind", serr.Kind,
		"detail", serr.Detail,
		"cause", serr.cause)

	// The run context may already be done; the failure row is written anyway.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), failureRecordTimeout)
	defer cancel()
	var state domain.UserSyncState
	userGone := false
	err := o.store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.AppendSyncLog(ctx, *entry); err != nil {
			return err
		}
		var err error
		state, err = tx.UpdateUserSyncState(ctx, r.user.ID, update)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			userGone = true
		case err != nil:
			return err
		}
		return tx.EnqueueEvent(ctx, syncCompletedEvent(*entry))
	})
	switch {
	case err != nil:
		r.logger.Error("record failed sync", "error", err)
	case userGone:
		r.logger.Info("user deleted during sync; failure logged without state change")
	case update.AuthFailed && update.DisableAfter > 0 && state.ConsecutiveAuthFailures >= update.DisableAfter &&
		r.user.SyncEnabled && !state.SyncEnabled:
		r.logger.Warn("sync disabled after repeated authentication failures",
			"consecutive_failures", state.ConsecutiveAuthFailures)
	}
	return entry, serr
}

func classify(parent, runCtx context.Context, cause error) *SyncError {
	var serr *SyncError
	switch {
	case parent.Err() != nil:
		return failure(domain.ErrCanceled, cause, "sync was canceled")
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return failure(domain.ErrTimeout, cause, "sync exceeded its time budget")
	case errors.As(cause, &serr):
		return serr
	case errors.Is(cause, domain.ErrStorage):
		return failure(domain.ErrStorage, cause, "metrics store rejected the run")
	default:
		return failure(nil, cause, "unexpected internal error")
	}
}

func syncCompletedEvent(entry domain.SyncLog) events.Envelope {
	return events.Envelope{
		EventType:     events.TypeSyncCompleted,
		AggregateType: "sync_log",
		AggregateID:   entry.ID,
		UserID:        entry.UserID,
		Payload: events.SyncCompleted{
			SyncID:            entry.ID,
			UserID:            entry.UserID,
			Outcome:           string(entry.Outcome),
			ErrorKind:         string(entry.ErrorKind),
			RecordsWritten:    entry.RecordsWritten,
			MetricsWritten:    entry.MetricsWritten,
			ActivitiesWritten: entry.ActivitiesWritten,
			WindowStart:       entry.WindowStart.Format(domain.DateLayout),
			WindowEnd:         entry.WindowEnd.Format(domain.DateLayout),
			StartedAt:         entry.StartedAt,
			FinishedAt:        entry.FinishedAt,
		},
	}
}

func dailyMetricScoredEvent(syncID string, metric domain.DailyMetric, scoredAt time.Time) events.Envelope {
	date := metric.Date.Format(domain.DateLayout)
	return events.Envelope{
		EventType:     events.TypeDailyMetricScored,
		AggregateType: "daily_metric",
		AggregateID:   syncID + ":" + date,
		UserID:        metric.UserID,
		Payload: events.DailyMetricScored{
			SyncID:           syncID,
			UserID:           metric.UserID,
			Date:             date,
			Recovery:         metric.Scores.Recovery,
			Strain:           metric.Scores.Strain,
			SleepPerformance: metric.Scores.SleepPerformance,
			ScoredAt:         scoredAt,
		},
	}
}
