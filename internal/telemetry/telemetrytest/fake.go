// Package telemetrytest provides an in-memory telemetry.Client for tests.
package telemetrytest

import (
	"context"
	"sync"
	"time"

	"example.com/healthscore/internal/telemetry"
)

const dateLayout = "2006-01-02"

// Fake serves fixture data keyed by calendar date. Errors queued with
// FailNext are returned before any fixture data, one per call.
type Fake struct {
	mu sync.Mutex

	Summaries  map[string]*telemetry.DailySummary
	Sleeps     map[string]*telemetry.Sleep
	Activities []telemetry.Activity

	LoginErr error
	// FetchErr, when set, fails every fetch call after FailNext queues drain.
	FetchErr error

	failures map[string][]error
	calls    map[string]int

	// Block, when set, makes Login wait until it is closed or the context
	// ends. Entered receives once per Login call before waiting.
	Block   chan struct{}
	Entered chan struct{}
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Summaries: map[string]*telemetry.DailySummary{},
		Sleeps:    map[string]*telemetry.Sleep{},
		failures:  map[string][]error{},
		calls:     map[string]int{},
	}
}

// Key names a call for FailNext and Calls: "login", "activities",
// "summary:<date>" or "sleep:<date>".
func Key(kind string, date time.Time) string {
	return kind + ":" + date.UTC().Format(dateLayout)
}

// SetDay installs fixtures for date. Nil values mean no data.
func (f *Fake) SetDay(date time.Time, summary *telemetry.DailySummary, sleep *telemetry.Sleep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := date.UTC().Format(dateLayout)
	f.Summaries[day] = summary
	f.Sleeps[day] = sleep
}

// FailNext queues errs for the call named key.
func (f *Fake) FailNext(key string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = append(f.failures[key], errs...)
}

// Calls reports how many times the call named key ran.
func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *Fake) enter(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if queued := f.failures[key]; len(queued) > 0 {
		f.failures[key] = queued[1:]
		return queued[0]
	}
	return nil
}

func (f *Fake) Login(ctx context.Context, email, password string) (telemetry.Session, error) {
	if f.Entered != nil {
		f.Entered <- struct{}{}
	}
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return telemetry.Session{}, ctx.Err()
		}
	}
	if err := f.enter("login"); err != nil {
		return telemetry.Session{}, err
	}
	if f.LoginErr != nil {
		return telemetry.Session{}, f.LoginErr
	}
	return telemetry.Session{Token: "fake:" + email, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *Fake) FetchDailySummary(ctx context.Context, _ telemetry.Session, date time.Time) (*telemetry.DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.enter(Key("summary", date)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	if s := f.Summaries[date.UTC().Format(dateLayout)]; s != nil {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *Fake) FetchSleep(ctx context.Context, _ telemetry.Session, date time.Time) (*telemetry.Sleep, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.enter(Key("sleep", date)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	if s := f.Sleeps[date.UTC().Format(dateLayout)]; s != nil {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *Fake) FetchActivities(ctx context.Context, _ telemetry.Session, from, to time.Time) ([]telemetry.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.enter("activities"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	end := to.UTC().AddDate(0, 0, 1)
	var out []telemetry.Activity
	for _, a := range f.Activities {
		if !a.StartTime.Before(from.UTC()) && a.StartTime.Before(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

var _ telemetry.Client = (*Fake)(nil)
