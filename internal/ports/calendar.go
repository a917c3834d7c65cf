package ports

import (
	"context"
	"time"

	"cfdSignalBot/internal/domain"
)

// EconomicCalendar supplies scheduled macro events. Queried read-only by the
// macro filter.
type EconomicCalendar interface {
	Events(ctx context.Context, from, to time.Time) ([]domain.MacroEvent, error)
}
