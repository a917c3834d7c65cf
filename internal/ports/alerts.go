package ports

import (
	"context"

	"cfdSignalBot/internal/domain"
)

// AlertSender delivers a formatted signal notification to one channel.
// Delivery is best-effort: failures are retried and circuit-broken by the
// resilience layer but never block signal commitment.
type AlertSender interface {
	// Name identifies the channel for circuit-breaker and logging purposes.
	Name() string
	Send(ctx context.Context, n domain.Notification) error
}
