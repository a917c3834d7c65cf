package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"cfdSignalBot/internal/ports"
)

// RetryConfig bounds a retry sequence.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first, e.g. 3
	MinDelay    time.Duration // First backoff delay, e.g. 500ms
	MaxDelay    time.Duration // Delay ceiling, e.g. 30s
	MaxElapsed  time.Duration // Budget for the whole sequence including waits
	Factor      float64       // Backoff growth factor, e.g. 2.0
}

// DefaultRetryConfig returns the standard retry bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		MinDelay:    500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		MaxElapsed:  2 * time.Minute,
		Factor:      2.0,
	}
}

// Retryer executes operations with bounded exponential backoff and jitter.
// Jitter keeps concurrent callers from stampeding a recovering dependency.
type Retryer struct {
	cfg    RetryConfig
	logger ports.Logger
	sleep  func(ctx context.Context, d time.Duration) error // test seam
}

// NewRetryer creates a retryer.
func NewRetryer(cfg RetryConfig, logger ports.Logger) (*Retryer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for retryer")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	if cfg.MinDelay <= 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid retry delay bounds")
	}
	if cfg.Factor < 1 {
		return nil, fmt.Errorf("backoff factor must be >= 1")
	}
	return &Retryer{cfg: cfg, logger: logger, sleep: sleepCtx}, nil
}

// Do runs op, retrying transient failures until the attempt count, elapsed
// budget or context gives out. The last error is returned unwrapped inside
// a dependency-fault wrapper.
func (r *Retryer) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    r.cfg.MinDelay,
		Max:    r.cfg.MaxDelay,
		Factor: r.cfg.Factor,
		Jitter: true,
	}
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %v: %w", name, err, ports.ErrContextCanceled)
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		if r.cfg.MaxElapsed > 0 && time.Since(start) >= r.cfg.MaxElapsed {
			r.logger.Warn(ctx, "retry budget exhausted", map[string]interface{}{
				"dependency": name, "attempts": attempt, "elapsed": time.Since(start).String(),
			})
			break
		}
		delay := b.Duration()
		r.logger.Debug(ctx, "retrying after failure", map[string]interface{}{
			"dependency": name, "attempt": attempt, "delay": delay.String(), "error": lastErr.Error(),
		})
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %v: %w", name, err, ports.ErrContextCanceled)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %v: %w", name, r.cfg.MaxAttempts, lastErr, ports.ErrDependencyUnavailable)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
