package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/telemetry"
)

func TestRetryPolicyStopsAfterMaxAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Multiplier: 2}
	fetchErr := fmt.Errorf("%w: reset", domain.ErrFetch)

	attempts, err := p.Do(context.Background(), func(context.Context) error { return fetchErr })
	require.ErrorIs(t, err, domain.ErrFetch)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyReturnsFinalErrorsImmediately(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Multiplier: 2}
	for _, final := range []error{
		fmt.Errorf("%w: 401", domain.ErrAuthentication),
		errors.Join(domain.ErrFetch, telemetry.ErrPermanent),
		context.Canceled,
	} {
		attempts, err := p.Do(context.Background(), func(context.Context) error { return final })
		require.ErrorIs(t, err, final)
		require.Equal(t, 1, attempts)
	}
}

func TestRetryPolicyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 10, Multiplier: 2}

	attempts, err := p.Do(ctx, func(context.Context) error {
		cancel()
		return domain.ErrFetch
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}
