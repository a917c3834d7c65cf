package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ledger"
	"cfdSignalBot/internal/macro"
	"cfdSignalBot/internal/metrics"
	"cfdSignalBot/internal/ports"
	"cfdSignalBot/internal/risk"
	"cfdSignalBot/internal/strategy/align"
	"cfdSignalBot/internal/strategy/engine"
)

// Pipeline is the single decision path shared by the live scheduler and the
// backtest driver. Both feed it one closed LTF bar at a time; neither adds
// any logic of its own, which is what guarantees live/backtest parity.
type Pipeline struct {
	engine  *engine.Engine
	riskEng *risk.Engine
	ledger  *ledger.Ledger
	macroF  *macro.Filter
	logger  ports.Logger
}

// Rejection is a reason-coded non-signal outcome for one candidate.
type Rejection struct {
	Symbol string
	Side   domain.Side
	Reason domain.RejectReason
	Detail string
}

// Result collects everything one bar produced.
type Result struct {
	Signals     []*domain.Signal    // Committed (ACTIVE) signals
	Rejections  []Rejection         // Candidates dropped with reasons
	Transitions []domain.Transition // Lifecycle transitions driven by the bar
}

// New wires the pipeline components together.
func New(eng *engine.Engine, riskEng *risk.Engine, led *ledger.Ledger, macroF *macro.Filter, logger ports.Logger) (*Pipeline, error) {
	if eng == nil || riskEng == nil || led == nil || macroF == nil {
		return nil, fmt.Errorf("all pipeline components are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for pipeline")
	}
	return &Pipeline{engine: eng, riskEng: riskEng, ledger: led, macroF: macroF, logger: logger}, nil
}

// Ledger exposes the ledger for drivers that need day rollover or snapshots.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// ProcessBar advances open signals on the newly closed bar, evaluates the
// decision engine as of that bar, and runs surviving candidates through the
// macro gate, ledger policies and risk engine. Ledger writes for one
// instrument are all-or-nothing: an error before commit leaves no partial
// state behind.
func (p *Pipeline) ProcessBar(ctx context.Context, htf, ltf []*domain.Bar, inst *domain.Instrument, events []domain.MacroEvent, equity float64, asOf time.Time) (*Result, error) {
	res := &Result{}

	ltfClosed := align.ClosedBars(ltf, asOf)
	if len(ltfClosed) == 0 {
		return nil, fmt.Errorf("%s: no closed bars at %s: %w", inst.Symbol, asOf, ports.ErrNoData)
	}
	current := ltfClosed[len(ltfClosed)-1]
	res.Transitions = p.ledger.Advance(ctx, current, equity)

	candidates, err := p.engine.Evaluate(ctx, htf, ltf, inst, asOf)
	if err != nil {
		metrics.DataFaultsTotal.WithLabelValues(inst.Symbol).Inc()
		return nil, err
	}

	for _, cand := range candidates {
		if allowed, why := p.macroF.Allows(asOf, events); !allowed {
			p.reject(ctx, res, cand, domain.ReasonMacroBlackout, why)
			continue
		}
		if err := p.ledger.Admit(cand, inst, equity, asOf); err != nil {
			p.reject(ctx, res, cand, policyReason(err), err.Error())
			continue
		}
		sig, err := p.riskEng.BuildSignal(ctx, cand, inst, equity, asOf)
		if err != nil {
			if reason := risk.ClassifyRejection(err); reason != "" {
				p.reject(ctx, res, cand, reason, err.Error())
				continue
			}
			// Invariant violation or bad input: abort this candidate only,
			// logged distinctly from normal rejections.
			p.logger.Error(ctx, err, "candidate aborted on invariant violation", map[string]interface{}{
				"symbol": cand.Symbol, "side": string(cand.Side),
			})
			continue
		}
		if err := p.ledger.Commit(ctx, sig, inst, equity, asOf); err != nil {
			if reason := policyReason(err); reason != "" {
				p.reject(ctx, res, cand, reason, err.Error())
				continue
			}
			p.logger.Error(ctx, err, "ledger commit failed", map[string]interface{}{"id": sig.ID})
			continue
		}
		metrics.SignalsCommittedTotal.WithLabelValues(sig.Symbol, string(sig.Side)).Inc()
		p.logger.Info(ctx, "signal committed", map[string]interface{}{
			"id": sig.ID, "entry": sig.Entry, "stop": sig.StopLoss,
			"target": sig.TakeProfit, "size": sig.Size, "netRR": sig.NetRR,
		})
		res.Signals = append(res.Signals, sig)
	}
	return res, nil
}

func (p *Pipeline) reject(ctx context.Context, res *Result, cand *domain.Candidate, reason domain.RejectReason, detail string) {
	metrics.CandidatesRejectedTotal.WithLabelValues(cand.Symbol, string(reason)).Inc()
	p.logger.Debug(ctx, "candidate rejected", map[string]interface{}{
		"symbol": cand.Symbol, "side": string(cand.Side), "reason": string(reason), "detail": detail,
	})
	res.Rejections = append(res.Rejections, Rejection{
		Symbol: cand.Symbol,
		Side:   cand.Side,
		Reason: reason,
		Detail: detail,
	})
}

// policyReason maps ledger policy errors to reason codes; "" for anything else.
func policyReason(err error) domain.RejectReason {
	switch {
	case errors.Is(err, ports.ErrCooldownActive):
		return domain.ReasonCooldown
	case errors.Is(err, ports.ErrMaxOpenSignals):
		return domain.ReasonMaxOpen
	case errors.Is(err, ports.ErrCorrelationCap):
		return domain.ReasonCorrelation
	case errors.Is(err, ports.ErrDailyLossLimit):
		return domain.ReasonDailyLoss
	}
	return ""
}
