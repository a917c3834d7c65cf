package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cfdSignalBot/internal/ports"
)

// BreakerState is the circuit breaker state for one dependency.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening, e.g. 5
	Cooldown         time.Duration // Time in OPEN before a half-open trial, e.g. 60s
}

// DefaultBreakerConfig returns the standard breaker thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute}
}

// Breaker is a circuit breaker for one external dependency. Breakers are
// independent per dependency identity so one failing alert channel does not
// block the others. State is shared across concurrent callers and mutated
// under the lock.
type Breaker struct {
	mu       sync.Mutex
	name     string
	cfg      BreakerConfig
	logger   ports.Logger
	state    BreakerState
	failures int
	openedAt time.Time
	trialing bool // a half-open trial call is in flight
	now      func() time.Time // test seam
}

// NewBreaker creates a breaker in the CLOSED state.
func NewBreaker(name string, cfg BreakerConfig, logger ports.Logger) (*Breaker, error) {
	if name == "" {
		return nil, fmt.Errorf("breaker requires a dependency name")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for breaker")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}
	return &Breaker{name: name, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Do executes op under the breaker. When OPEN and inside the cooldown it
// fails fast with ErrCircuitOpen without attempting the call; after the
// cooldown a single trial call decides between reclosing and reopening.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(ctx); err != nil {
		return err
	}
	err := op(ctx)
	b.record(ctx, err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the dependency identity this breaker guards.
func (b *Breaker) Name() string { return b.name }

func (b *Breaker) admit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return fmt.Errorf("%s: open since %s: %w", b.name, b.openedAt.Format(time.RFC3339), ports.ErrCircuitOpen)
		}
		b.state = StateHalfOpen
		b.trialing = true
		b.logger.Info(ctx, "circuit breaker half-open, allowing trial call", map[string]interface{}{
			"dependency": b.name,
		})
	case StateHalfOpen:
		// Exactly one trial call tests the dependency; everyone else keeps
		// failing fast until it resolves.
		if b.trialing {
			return fmt.Errorf("%s: half-open trial in flight: %w", b.name, ports.ErrCircuitOpen)
		}
		b.trialing = true
	}
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialing = false
	if err == nil {
		if b.state != StateClosed {
			b.logger.Info(ctx, "circuit breaker closed", map[string]interface{}{"dependency": b.name})
		}
		b.state = StateClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != StateOpen {
			b.logger.Warn(ctx, "circuit breaker opened", map[string]interface{}{
				"dependency": b.name, "consecutiveFailures": b.failures,
			})
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
