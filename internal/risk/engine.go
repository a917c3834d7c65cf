package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"
)

// Config holds the risk and sizing parameters.
type Config struct {
	StopATRMult  float64 // Stop distance as a multiple of ATR, e.g. 1.5
	RewardRisk   float64 // Target distance as a multiple of stop distance, e.g. 2.0
	RiskPerTrade float64 // Fraction of equity risked per signal, e.g. 0.008
	MinNetRR     float64 // Floor on reward:risk after costs, e.g. 1.0
}

// DefaultConfig returns the standard risk parameters.
func DefaultConfig() Config {
	return Config{
		StopATRMult:  1.5,
		RewardRisk:   2.0,
		RiskPerTrade: 0.008,
		MinNetRR:     1.0,
	}
}

// Engine converts candidates into executable signal plans: stop, target,
// size and cost-adjusted reward:risk.
type Engine struct {
	cfg    Config
	logger ports.Logger
}

// New creates a risk engine.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk engine")
	}
	if cfg.StopATRMult <= 0 {
		return nil, fmt.Errorf("stop ATR multiplier must be positive")
	}
	if cfg.RewardRisk <= 0 {
		return nil, fmt.Errorf("reward:risk ratio must be positive")
	}
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1 {
		return nil, fmt.Errorf("risk per trade must be in (0, 1)")
	}
	if cfg.MinNetRR < 0 {
		return nil, fmt.Errorf("net RR floor cannot be negative")
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// BuildSignal turns a candidate into a PROPOSED signal, or rejects it with
// an economic reason. Rejections wrap the sentinel errors in ports so
// callers can classify them; only invariant violations are real faults.
func (e *Engine) BuildSignal(ctx context.Context, cand *domain.Candidate, inst *domain.Instrument, equity float64, now time.Time) (*domain.Signal, error) {
	if cand.ATR <= 0 {
		return nil, fmt.Errorf("candidate %s %s: non-positive ATR %v: %w", cand.Symbol, cand.Side, cand.ATR, ports.ErrInvalidRequest)
	}
	if equity <= 0 {
		return nil, fmt.Errorf("equity %.2f: %w", equity, ports.ErrAccountTooSmall)
	}

	stopDistance := cand.ATR * e.cfg.StopATRMult
	targetDistance := stopDistance * e.cfg.RewardRisk
	entry := RoundToTick(cand.Entry, inst.TickSize, roundNearest)

	// Stops round away from entry, targets toward entry: both directions
	// keep the realized outcome at or inside the budgeted plan.
	var stop, target float64
	if cand.Side == domain.Long {
		stop = RoundToTick(entry-stopDistance, inst.TickSize, roundDown)
		target = RoundToTick(entry+targetDistance, inst.TickSize, roundDown)
	} else {
		stop = RoundToTick(entry+stopDistance, inst.TickSize, roundUp)
		target = RoundToTick(entry-targetDistance, inst.TickSize, roundUp)
	}

	riskBudget := equity * e.cfg.RiskPerTrade
	roundedStopDistance := entry - stop
	if cand.Side == domain.Short {
		roundedStopDistance = stop - entry
	}
	if roundedStopDistance <= 0 {
		return nil, fmt.Errorf("candidate %s %s: stop distance collapsed to %.5f: %w",
			cand.Symbol, cand.Side, roundedStopDistance, ports.ErrInvalidStopPlacement)
	}

	size := FloorToStep(riskBudget/(roundedStopDistance*inst.PointValue), inst.LotStep)
	if size < inst.MinLot || size <= 0 {
		return nil, fmt.Errorf("equity %.2f sizes %.4f below minimum lot %.4f for %s: %w",
			equity, size, inst.MinLot, inst.Symbol, ports.ErrAccountTooSmall)
	}

	// Reward is judged on the rounded target, not the raw multiple: rounding
	// toward entry shrinks the realizable distance and the RR floor must see
	// the shrunk value.
	rewardDistance := target - entry
	if cand.Side == domain.Short {
		rewardDistance = entry - target
	}
	riskAmount := size * roundedStopDistance * inst.PointValue
	grossReward := size * rewardDistance * inst.PointValue
	costs := inst.RoundTripCost(size, entry)
	netRR := (grossReward - costs) / riskAmount
	if netRR < e.cfg.MinNetRR {
		return nil, fmt.Errorf("net RR %.2f below floor %.2f for %s %s (costs %.2f): %w",
			netRR, e.cfg.MinNetRR, cand.Symbol, cand.Side, costs, ports.ErrUneconomicAfterCosts)
	}

	sig := &domain.Signal{
		ID:         domain.SignalID(cand.Symbol, cand.Side, cand.AsOf),
		Symbol:     cand.Symbol,
		Side:       cand.Side,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		Size:       size,
		RiskAmount: riskAmount,
		GrossRR:    rewardDistance / roundedStopDistance,
		NetRR:      netRR,
		CreatedAt:  now,
		Status:     domain.StatusProposed,
		Evidence:   cand.Evidence,
	}
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidStopPlacement)
	}
	e.logger.Debug(ctx, "signal plan built", map[string]interface{}{
		"id": sig.ID, "entry": entry, "stop": stop, "target": target,
		"size": size, "risk": riskAmount, "netRR": netRR,
	})
	return sig, nil
}

// ClassifyRejection maps a BuildSignal error to a reject reason code, or ""
// when the error is not an economic rejection.
func ClassifyRejection(err error) domain.RejectReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ports.ErrUneconomicAfterCosts):
		return domain.ReasonUneconomic
	case errors.Is(err, ports.ErrAccountTooSmall):
		return domain.ReasonUndersized
	}
	return ""
}
