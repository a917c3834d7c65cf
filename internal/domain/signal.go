package domain

import (
	"fmt"
	"time"
)

// Candidate is the ephemeral output of the decision engine: a directional
// trade idea that has passed trend, trigger and quality rules but has not
// been risk-checked yet.
type Candidate struct {
	Symbol   string
	Side     Side
	Entry    float64   // Proposed entry (close of the triggering bar)
	ATR      float64   // ATR at evaluation time, reused for stop sizing
	AsOf     time.Time // Close time of the bar that produced the candidate
	Evidence []string  // Which rules passed, human-readable
}

// Signal is the durable unit of work produced by the risk engine.
type Signal struct {
	ID         string
	Symbol     string
	Side       Side
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Size       float64
	RiskAmount float64 // Monetary loss if the stop is hit
	GrossRR    float64
	NetRR      float64 // Reward:risk after round-trip costs
	CreatedAt  time.Time
	Status     SignalStatus
	Evidence   []string
}

// SignalID builds the deterministic identifier for a signal. Identical
// inputs must yield identical signals, so the id is derived from the
// evaluation time rather than a random source.
func SignalID(symbol string, side Side, asOf time.Time) string {
	return fmt.Sprintf("%s_%s_%d", symbol, side, asOf.Unix())
}

// Validate checks the structural invariants of a signal: the stop must sit
// on the loss side of the entry and the target on the profit side. A
// violation indicates a logic defect, not a market condition.
func (s *Signal) Validate() error {
	if s.Size <= 0 {
		return fmt.Errorf("signal %s: non-positive size %v", s.ID, s.Size)
	}
	switch s.Side {
	case Long:
		if s.StopLoss >= s.Entry {
			return fmt.Errorf("signal %s: long stop %.5f not below entry %.5f", s.ID, s.StopLoss, s.Entry)
		}
		if s.TakeProfit <= s.Entry {
			return fmt.Errorf("signal %s: long target %.5f not above entry %.5f", s.ID, s.TakeProfit, s.Entry)
		}
	case Short:
		if s.StopLoss <= s.Entry {
			return fmt.Errorf("signal %s: short stop %.5f not above entry %.5f", s.ID, s.StopLoss, s.Entry)
		}
		if s.TakeProfit >= s.Entry {
			return fmt.Errorf("signal %s: short target %.5f not below entry %.5f", s.ID, s.TakeProfit, s.Entry)
		}
	default:
		return fmt.Errorf("signal %s: unknown side %q", s.ID, s.Side)
	}
	return nil
}

// StopDistance returns the absolute distance between entry and stop.
func (s *Signal) StopDistance() float64 {
	if s.Side == Long {
		return s.Entry - s.StopLoss
	}
	return s.StopLoss - s.Entry
}

// Transition is one append-only entry in a signal's lifecycle history.
type Transition struct {
	SignalID string
	From     SignalStatus
	To       SignalStatus
	At       time.Time
	Price    float64 // Price that drove the transition (0 when not price-driven)
	PnL      float64 // Realized profit/loss for terminal transitions
}

// MacroEvent is a scheduled economic release consulted by the macro filter.
type MacroEvent struct {
	Name   string
	Type   string // Recurring event type, e.g. "CPI", "RATE_DECISION", "NFP"
	Time   time.Time
	Impact string // "low", "medium", "high"
}

// Notification is the fully formatted alert payload for a committed signal.
type Notification struct {
	Signal   *Signal
	Why      string // Rule evidence summary
	SentAt   time.Time
	Channels []string
}
