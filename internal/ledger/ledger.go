package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"
)

// Config holds the ledger policy parameters.
type Config struct {
	Cooldown           time.Duration // Minimum interval between signals per (symbol, side)
	MaxOpenSignals     int           // Concurrency cap across all instruments
	MaxPerGroup        int           // Cap on concurrently open signals per correlation group
	MaxDailyLossPct    float64       // Fraction of equity; new signals blocked at/after this realized loss
	MaxHoldDuration    time.Duration // Open signals expire past this age
	ForceCloseOnBreach bool          // Cancel open signals when the daily loss cap is hit
}

// DefaultConfig returns the standard ledger policy.
func DefaultConfig() Config {
	return Config{
		Cooldown:        30 * time.Minute,
		MaxOpenSignals:  5,
		MaxPerGroup:     2,
		MaxDailyLossPct: 0.02,
		MaxHoldDuration: 24 * time.Hour,
	}
}

// Ledger is the process-wide registry of signals. It enforces cooldowns and
// the concurrency, correlation and daily-loss caps atomically with each
// commit, and owns every lifecycle transition. All writes are serialized
// behind one mutex: the caps are cross-instrument shared state.
type Ledger struct {
	mu     sync.Mutex
	cfg    Config
	logger ports.Logger

	open         map[string]*domain.Signal // keyed by signal id
	lastSignalAt map[string]time.Time      // keyed by symbol|side
	groupOf      map[string]string         // open signal id -> correlation group
	dayPnL       float64                   // realized PnL since day start (losses negative)
	dayStart     time.Time
	history      []domain.Transition
}

// New creates an empty ledger.
func New(cfg Config, logger ports.Logger) (*Ledger, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for signal ledger")
	}
	if cfg.MaxOpenSignals <= 0 || cfg.MaxPerGroup <= 0 {
		return nil, fmt.Errorf("signal caps must be positive")
	}
	if cfg.MaxDailyLossPct <= 0 || cfg.MaxDailyLossPct >= 1 {
		return nil, fmt.Errorf("daily loss cap must be in (0, 1)")
	}
	return &Ledger{
		cfg:          cfg,
		logger:       logger,
		open:         make(map[string]*domain.Signal),
		lastSignalAt: make(map[string]time.Time),
		groupOf:      make(map[string]string),
	}, nil
}

// ResetDay clears the daily counters. The live scheduler calls this at each
// trading-day rollover; the backtest driver calls it once at replay start
// and on each simulated day boundary.
func (l *Ledger) ResetDay(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dayPnL = 0
	l.dayStart = now
}

// Admit checks a candidate against cooldown and caps without mutating
// anything. The pipeline calls it before paying for risk computation; Commit
// re-checks atomically, so Admit is advisory.
func (l *Ledger) Admit(cand *domain.Candidate, inst *domain.Instrument, equity float64, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkPolicies(cand.Symbol, cand.Side, inst.CorrelationGroup, equity, now)
}

// Commit atomically re-validates policies and activates the signal.
// On success the signal is ACTIVE and registered against all caps.
func (l *Ledger) Commit(ctx context.Context, sig *domain.Signal, inst *domain.Instrument, equity float64, now time.Time) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ports.ErrInvalidStopPlacement)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.open[sig.ID]; exists {
		return fmt.Errorf("signal %s: %w", sig.ID, ports.ErrDuplicateSignal)
	}
	if err := l.checkPolicies(sig.Symbol, sig.Side, inst.CorrelationGroup, equity, now); err != nil {
		return err
	}

	l.appendTransition(ctx, sig, domain.StatusActive, now, 0, 0)
	l.open[sig.ID] = sig
	l.lastSignalAt[cooldownKey(sig.Symbol, sig.Side)] = now
	l.groupOf[sig.ID] = inst.CorrelationGroup
	return nil
}

// checkPolicies enforces cooldown and the three caps. Callers hold l.mu.
func (l *Ledger) checkPolicies(symbol string, side domain.Side, group string, equity float64, now time.Time) error {
	if equity > 0 && -l.dayPnL >= equity*l.cfg.MaxDailyLossPct {
		return fmt.Errorf("realized day loss %.2f at %.1f%% of equity: %w",
			-l.dayPnL, l.cfg.MaxDailyLossPct*100, ports.ErrDailyLossLimit)
	}
	if last, ok := l.lastSignalAt[cooldownKey(symbol, side)]; ok && l.cfg.Cooldown > 0 {
		if elapsed := now.Sub(last); elapsed < l.cfg.Cooldown {
			return fmt.Errorf("%s %s signalled %s ago, cooldown %s: %w",
				symbol, side, elapsed, l.cfg.Cooldown, ports.ErrCooldownActive)
		}
	}
	if len(l.open) >= l.cfg.MaxOpenSignals {
		return fmt.Errorf("%d open signals at cap %d: %w", len(l.open), l.cfg.MaxOpenSignals, ports.ErrMaxOpenSignals)
	}
	if group != "" {
		inGroup := 0
		for _, g := range l.groupOf {
			if g == group {
				inGroup++
			}
		}
		if inGroup >= l.cfg.MaxPerGroup {
			return fmt.Errorf("correlation group %q holds %d open signals at cap %d: %w",
				group, inGroup, l.cfg.MaxPerGroup, ports.ErrCorrelationCap)
		}
	}
	return nil
}

// Advance drives terminal transitions from a new bar: stop and target
// crossings for open signals on the bar's symbol, and expiry for signals
// held past the maximum duration. When a bar spans both levels the stop
// wins; assuming the adverse fill first keeps the replay conservative.
// Returned transitions are already recorded in the ledger history.
func (l *Ledger) Advance(ctx context.Context, bar *domain.Bar, equity float64) []domain.Transition {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Transition
	for id, sig := range l.open {
		if sig.Symbol != bar.Symbol {
			continue
		}
		status, price := crossings(sig, bar)
		if status == "" && l.cfg.MaxHoldDuration > 0 && bar.CloseTime.Sub(sig.CreatedAt) > l.cfg.MaxHoldDuration {
			status, price = domain.StatusExpired, bar.Close
		}
		if status == "" {
			continue
		}
		pnl := realizedPnL(sig, price)
		tr := l.appendTransition(ctx, sig, status, bar.CloseTime, price, pnl)
		l.dayPnL += pnl
		delete(l.open, id)
		delete(l.groupOf, id)
		out = append(out, tr)
	}

	// A breach discovered while settling this bar optionally flattens
	// everything else that is still open.
	if l.cfg.ForceCloseOnBreach && equity > 0 && -l.dayPnL >= equity*l.cfg.MaxDailyLossPct {
		for id, sig := range l.open {
			tr := l.appendTransition(ctx, sig, domain.StatusCancelled, bar.CloseTime, bar.Close, 0)
			delete(l.open, id)
			delete(l.groupOf, id)
			out = append(out, tr)
		}
	}
	return out
}

// Cancel applies the explicit external CANCELLED transition.
func (l *Ledger) Cancel(ctx context.Context, signalID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sig, ok := l.open[signalID]
	if !ok {
		return fmt.Errorf("signal %s: %w", signalID, ports.ErrNotFound)
	}
	if sig.Status.IsTerminal() {
		return fmt.Errorf("signal %s already %s: %w", signalID, sig.Status, ports.ErrTerminalTransition)
	}
	l.appendTransition(ctx, sig, domain.StatusCancelled, now, 0, 0)
	delete(l.open, signalID)
	delete(l.groupOf, signalID)
	return nil
}

// appendTransition mutates the signal state and records the history entry.
// Callers hold l.mu and have verified the signal is not terminal.
func (l *Ledger) appendTransition(ctx context.Context, sig *domain.Signal, to domain.SignalStatus, at time.Time, price, pnl float64) domain.Transition {
	tr := domain.Transition{
		SignalID: sig.ID,
		From:     sig.Status,
		To:       to,
		At:       at,
		Price:    price,
		PnL:      pnl,
	}
	sig.Status = to
	l.history = append(l.history, tr)
	l.logger.Debug(ctx, "signal transition", map[string]interface{}{
		"id": sig.ID, "from": string(tr.From), "to": string(to), "pnl": pnl,
	})
	return tr
}

// OpenCount returns the number of currently open signals.
func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// OpenSignals returns a snapshot of the open signals.
func (l *Ledger) OpenSignals() []*domain.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Signal, 0, len(l.open))
	for _, sig := range l.open {
		out = append(out, sig)
	}
	return out
}

// DayPnL returns realized profit and loss since the last day reset.
func (l *Ledger) DayPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dayPnL
}

// History returns a copy of the append-only transition log.
func (l *Ledger) History() []domain.Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Transition, len(l.history))
	copy(out, l.history)
	return out
}

// crossings checks whether the bar touched the signal's stop or target.
func crossings(sig *domain.Signal, bar *domain.Bar) (domain.SignalStatus, float64) {
	if sig.Side == domain.Long {
		if bar.Low <= sig.StopLoss {
			return domain.StatusHitSL, sig.StopLoss
		}
		if bar.High >= sig.TakeProfit {
			return domain.StatusHitTP, sig.TakeProfit
		}
		return "", 0
	}
	if bar.High >= sig.StopLoss {
		return domain.StatusHitSL, sig.StopLoss
	}
	if bar.Low <= sig.TakeProfit {
		return domain.StatusHitTP, sig.TakeProfit
	}
	return "", 0
}

// realizedPnL converts a price move into money via the signal's own risk
// calibration: a full stop distance against the position loses exactly
// RiskAmount, so the monetary loss bound holds by construction.
func realizedPnL(sig *domain.Signal, exit float64) float64 {
	stopDistance := sig.StopDistance()
	if stopDistance <= 0 {
		return 0
	}
	move := exit - sig.Entry
	if sig.Side == domain.Short {
		move = sig.Entry - exit
	}
	return move / stopDistance * sig.RiskAmount
}

func cooldownKey(symbol string, side domain.Side) string {
	return symbol + "|" + string(side)
}
