package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/telemetry"
)

// RetryPolicy bounds how often one provider call is attempted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx ends. It reports the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		err := fn(ctx)
		if err == nil || Retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(p.backOff(), ctx))
	return attempts, err
}

func (p RetryPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = p.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = 0.2
	exp.MaxInterval = p.MaxDelay
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = 30 * time.Second
	}
	exp.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(exp, uint64(attempts-1))
}

// Retryable reports whether a provider error may succeed on a later attempt.
// Authentication rejections, permanent provider errors and context errors
// are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrAuthentication),
		errors.Is(err, telemetry.ErrPermanent),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
