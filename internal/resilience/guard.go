package resilience

import (
	"context"

	"cfdSignalBot/internal/ports"
)

// Guard composes a circuit breaker around a retryer for one dependency.
// The breaker sits outermost so one breaker failure represents a fully
// exhausted retry sequence, keeping the failure threshold meaningful under
// bursty transient faults. Every call that crosses a process or network
// boundary in the pipeline goes through a Guard.
type Guard struct {
	name    string
	breaker *Breaker
	retryer *Retryer
}

// NewGuard builds a guard for the named dependency.
func NewGuard(name string, retryCfg RetryConfig, breakerCfg BreakerConfig, logger ports.Logger) (*Guard, error) {
	retryer, err := NewRetryer(retryCfg, logger)
	if err != nil {
		return nil, err
	}
	breaker, err := NewBreaker(name, breakerCfg, logger)
	if err != nil {
		return nil, err
	}
	return &Guard{name: name, breaker: breaker, retryer: retryer}, nil
}

// Do runs op behind the breaker and retry policy.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.retryer.Do(ctx, g.name, op)
	})
}

// State exposes the breaker state for health reporting and metrics.
func (g *Guard) State() BreakerState { return g.breaker.State() }

// Name returns the guarded dependency identity.
func (g *Guard) Name() string { return g.name }
