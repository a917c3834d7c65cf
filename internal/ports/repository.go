package ports

import (
	"context"

	"cfdSignalBot/internal/domain"
)

// SignalRepository is the durable form of the signal ledger. The core does
// not define the storage format, only that every state transition is exposed
// as an appendable, ordered record.
type SignalRepository interface {
	// CreateSignal persists a newly committed signal.
	CreateSignal(ctx context.Context, sig *domain.Signal) error
	// AppendTransition records one lifecycle transition. Transitions are
	// append-only and ordered per signal.
	AppendTransition(ctx context.Context, tr domain.Transition) error
	// FindSignal retrieves a signal by id. Returns nil, nil when not found.
	FindSignal(ctx context.Context, id string) (*domain.Signal, error)
	// FindOpenSignals retrieves all signals not yet in a terminal state.
	FindOpenSignals(ctx context.Context) ([]*domain.Signal, error)
	// Transitions returns the ordered transition history for a signal.
	Transitions(ctx context.Context, signalID string) ([]domain.Transition, error)
}
