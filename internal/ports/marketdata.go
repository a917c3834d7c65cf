package ports

import (
	"context"
	"time"

	"cfdSignalBot/internal/domain"
)

// MarketDataProvider supplies ordered bar history for an instrument and
// timeframe. Bars must be delivered in non-decreasing timestamp order and be
// immutable once final for a given timestamp. The until cutoff bounds the
// history in backtests; live callers pass the current time.
type MarketDataProvider interface {
	GetBars(ctx context.Context, symbol, timeframe string, limit int, until time.Time) ([]*domain.Bar, error)
}
