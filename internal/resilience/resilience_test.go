package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"cfdSignalBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var errBoom = errors.New("boom")

func newTestRetryer(t *testing.T, cfg RetryConfig) *Retryer {
	t.Helper()
	r, err := NewRetryer(cfg, &mockLogger{})
	require.NoError(t, err)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

func TestNewRetryerValidation(t *testing.T) {
	_, err := NewRetryer(DefaultRetryConfig(), nil)
	assert.Error(t, err)

	bad := DefaultRetryConfig()
	bad.MaxAttempts = 0
	_, err = NewRetryer(bad, &mockLogger{})
	assert.Error(t, err)

	bad = DefaultRetryConfig()
	bad.Factor = 0.5
	_, err = NewRetryer(bad, &mockLogger{})
	assert.Error(t, err)
}

func TestRetryerSucceedsAfterTransientFailures(t *testing.T) {
	r := newTestRetryer(t, DefaultRetryConfig())

	calls := 0
	err := r.Do(context.Background(), "dep", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryerExhaustsAttempts(t *testing.T) {
	r := newTestRetryer(t, DefaultRetryConfig())

	calls := 0
	err := r.Do(context.Background(), "dep", func(ctx context.Context) error {
		calls++
		return errBoom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ports.ErrDependencyUnavailable)
}

func TestRetryerHonorsContextCancellation(t *testing.T) {
	r := newTestRetryer(t, DefaultRetryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, "dep", func(ctx context.Context) error { return errBoom })
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func newTestBreaker(t *testing.T, cfg BreakerConfig) (*Breaker, *time.Time) {
	t.Helper()
	b, err := NewBreaker("dep", cfg, &mockLogger{})
	require.NoError(t, err)
	clock := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func failing(ctx context.Context) error { return errBoom }
func succeeding(ctx context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		assert.Equal(t, StateClosed, b.State())
		assert.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	}
	assert.Equal(t, StateOpen, b.State())

	// While open, calls fail fast without running the operation.
	ran := false
	err := b.Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ports.ErrCircuitOpen)
	assert.False(t, ran)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	require.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	require.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	require.Equal(t, StateOpen, b.State())

	// After the cooldown one trial call is admitted; success closes.
	*clock = clock.Add(61 * time.Second)
	assert.NoError(t, b.Do(context.Background(), succeeding))
	assert.Equal(t, StateClosed, b.State())

	// Failures start counting from zero again.
	assert.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	require.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	require.ErrorIs(t, b.Do(context.Background(), failing), errBoom)

	*clock = clock.Add(61 * time.Second)
	assert.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	assert.Equal(t, StateOpen, b.State())

	// The reopened breaker fails fast again inside the fresh cooldown.
	assert.ErrorIs(t, b.Do(context.Background(), succeeding), ports.ErrCircuitOpen)
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
}

func TestGuardComposesBreakerAroundRetry(t *testing.T) {
	retryCfg := DefaultRetryConfig()
	breakerCfg := BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute}
	g, err := NewGuard("dep", retryCfg, breakerCfg, &mockLogger{})
	require.NoError(t, err)
	g.retryer.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	// Each guard call runs a full retry sequence; only the exhausted outcome
	// counts as one breaker failure.
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		return errBoom
	}
	require.ErrorIs(t, g.Do(context.Background(), op), ports.ErrDependencyUnavailable)
	assert.Equal(t, 3, calls)
	assert.Equal(t, StateClosed, g.State())

	require.ErrorIs(t, g.Do(context.Background(), op), ports.ErrDependencyUnavailable)
	assert.Equal(t, 6, calls)
	assert.Equal(t, StateOpen, g.State())

	// Open breaker short-circuits before any retry attempt runs.
	require.ErrorIs(t, g.Do(context.Background(), op), ports.ErrCircuitOpen)
	assert.Equal(t, 6, calls)
	assert.Equal(t, "dep", g.Name())
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	require.ErrorIs(t, b.Do(context.Background(), failing), errBoom)
	require.Equal(t, StateOpen, b.State())

	// A caller arriving while the half-open trial is still in flight must
	// fail fast instead of running a second probe.
	*clock = clock.Add(61 * time.Second)
	err := b.Do(context.Background(), func(ctx context.Context) error {
		assert.ErrorIs(t, b.Do(ctx, succeeding), ports.ErrCircuitOpen)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())

	// With the trial resolved, the next call is admitted normally.
	assert.NoError(t, b.Do(context.Background(), succeeding))
}
