package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"example.com/healthscore/internal/domain"
)

// SyncAllReport tallies one scheduler pass.
type SyncAllReport struct {
	Users     int
	Succeeded int
	Partial   int
	Failed    int
	Skipped   int
}

// SyncAll runs a sync for every user with sync enabled and a usable
// credential. Runs are started at most SchedulerStartsPerSecond per second
// with SchedulerConcurrency in flight. Per-user failures are counted, not
// returned.
func (o *Orchestrator) SyncAll(ctx context.Context) (SyncAllReport, error) {
	users, err := o.store.ListSyncableUsers(ctx)
	if err != nil {
		return SyncAllReport{}, fmt.Errorf("%w: list syncable users: %v", domain.ErrStorage, err)
	}

	report := SyncAllReport{Users: len(users)}
	limit := rate.Inf
	if o.cfg.SchedulerStartsPerSecond > 0 {
		limit = rate.Limit(o.cfg.SchedulerStartsPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	concurrency := o.cfg.SchedulerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for _, user := range users {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			entry, err := o.RunSync(ctx, user.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case entry == nil:
				report.Skipped++
				o.logger.Info("scheduled sync skipped", "user_id", user.ID, "reason", domain.KindOf(err))
			case entry.Outcome == domain.SyncOutcomeSuccess:
				report.Succeeded++
			case entry.Outcome == domain.SyncOutcomePartial:
				report.Partial++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("scheduled sync pass finished",
		"users", report.Users,
		"succeeded", report.Succeeded,
		"partial", report.Partial,
		"failed", report.Failed,
		"skipped", report.Skipped)
	return report, ctx.Err()
}

// RunScheduler calls SyncAll immediately and then every interval until ctx
// is cancelled.
func (o *Orchestrator) RunScheduler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: scheduler interval must be positive", domain.ErrConfiguration)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.SyncAll(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			o.logger.Error("scheduled sync pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
