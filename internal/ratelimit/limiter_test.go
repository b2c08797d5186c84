package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(enabled bool, clk clock.Clock) *Limiter {
	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:         enabled,
		OrdersPerMinute: 60,
		OrderBurst:      2,
		TopUpsPerMinute: 1,
		TopUpBurst:      1,
	}}
	return NewLimiter(Params{Config: cfg, Log: zap.NewNop(), Clock: clk})
}

func TestLocalLimiterBurstThenRefill(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := newTestLimiter(true, clk)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, PolicyPlaceOrder, "42")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, PolicyPlaceOrder, "42")
	require.True(t, errors.Is(err, ErrRateLimited))
	require.False(t, res.Allowed)
	require.Equal(t, time.Second, res.RetryAfter)

	// another customer has its own bucket
	_, err = l.Allow(ctx, PolicyPlaceOrder, "43")
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = l.Allow(ctx, PolicyPlaceOrder, "42")
	require.NoError(t, err)
}

func TestLimiterPoliciesAreIndependent(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := newTestLimiter(true, clk)
	ctx := context.Background()

	_, err := l.Allow(ctx, PolicyTopUp, "42")
	require.NoError(t, err)
	_, err = l.Allow(ctx, PolicyTopUp, "42")
	require.ErrorIs(t, err, ErrRateLimited)

	_, err = l.Allow(ctx, PolicyPlaceOrder, "42")
	require.NoError(t, err)
}

func TestLimiterDisabledAllowsEverything(t *testing.T) {
	l := newTestLimiter(false, clock.SystemClock{})
	for i := 0; i < 10; i++ {
		res, err := l.Allow(context.Background(), PolicyTopUp, "42")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
}

func TestLimiterRejectsUnknownPolicyAndEmptySubject(t *testing.T) {
	l := newTestLimiter(true, clock.SystemClock{})
	_, err := l.Allow(context.Background(), "bulk_export", "42")
	require.Error(t, err)
	_, err = l.Allow(context.Background(), PolicyPlaceOrder, " ")
	require.Error(t, err)
}

func TestNilLockerRunsInline(t *testing.T) {
	var l *Locker
	called := false
	ran, err := l.WithLock(context.Background(), "sweep", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, called)
}

func TestRefillDelay(t *testing.T) {
	require.Equal(t, time.Duration(0), refillDelay(1.5, 1))
	require.Equal(t, 500*time.Millisecond, refillDelay(0.5, 1))
	require.Equal(t, 2*time.Second, defaultBucketTTL(1, 1))
}
