package engine

import (
	"context"
	"fmt"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"
	"cfdSignalBot/internal/strategy/align"
	"cfdSignalBot/internal/strategy/indicators"
)

// Config holds the rule parameters for the decision engine.
type Config struct {
	TrendFastPeriod int // HTF SMA, e.g. 20
	TrendMidPeriod  int // HTF SMA, e.g. 50
	TrendSlowPeriod int // HTF SMA, e.g. 200

	DonchianPeriod int     // e.g. 20
	MACDFast       int     // e.g. 12
	MACDSlow       int     // e.g. 26
	MACDSignal     int     // e.g. 9
	ROCLookback    int     // e.g. 10
	ROCLongMin     float64 // e.g. +0.003
	ROCShortMax    float64 // e.g. -0.003

	VolumePeriod int     // e.g. 20
	VolumeMult   float64 // e.g. 1.2
	ATRPeriod    int     // e.g. 14
	ATRMinPct    float64 // e.g. 0.003
	ATRMaxPct    float64 // e.g. 0.03
}

// DefaultConfig returns the standard rule parameters.
func DefaultConfig() Config {
	return Config{
		TrendFastPeriod: 20,
		TrendMidPeriod:  50,
		TrendSlowPeriod: 200,
		DonchianPeriod:  20,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		ROCLookback:     10,
		ROCLongMin:      0.003,
		ROCShortMax:     -0.003,
		VolumePeriod:    20,
		VolumeMult:      1.2,
		ATRPeriod:       14,
		ATRMinPct:       0.003,
		ATRMaxPct:       0.03,
	}
}

// Engine evaluates trend, entry and quality rules to produce candidate
// signals. It is the single logic path shared by the live scheduler and the
// backtest driver: evaluation is a pure function of the bars visible at
// asOf, with no branch on how it is being driven.
type Engine struct {
	cfg    Config
	logger ports.Logger
}

// New creates a decision engine.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for decision engine")
	}
	if cfg.TrendFastPeriod <= 0 || cfg.TrendMidPeriod <= 0 || cfg.TrendSlowPeriod <= 0 {
		return nil, fmt.Errorf("trend periods must be positive")
	}
	if cfg.TrendFastPeriod >= cfg.TrendMidPeriod || cfg.TrendMidPeriod >= cfg.TrendSlowPeriod {
		return nil, fmt.Errorf("trend periods must be strictly increasing (fast < mid < slow)")
	}
	if cfg.DonchianPeriod <= 0 || cfg.ROCLookback <= 0 || cfg.VolumePeriod <= 0 || cfg.ATRPeriod <= 0 {
		return nil, fmt.Errorf("entry and quality periods must be positive")
	}
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 || cfg.MACDFast >= cfg.MACDSlow {
		return nil, fmt.Errorf("invalid MACD periods")
	}
	if cfg.ATRMinPct < 0 || cfg.ATRMaxPct <= cfg.ATRMinPct {
		return nil, fmt.Errorf("invalid ATR percentage band")
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// RequiredHTFBars returns the minimum number of closed HTF bars needed.
func (e *Engine) RequiredHTFBars() int {
	return e.cfg.TrendSlowPeriod
}

// RequiredLTFBars returns the minimum number of closed LTF bars needed.
func (e *Engine) RequiredLTFBars() int {
	required := e.cfg.DonchianPeriod + 1
	if n := e.cfg.MACDSlow + e.cfg.MACDSignal; n > required {
		required = n
	}
	if n := e.cfg.ROCLookback + 1; n > required {
		required = n
	}
	if n := e.cfg.VolumePeriod; n > required {
		required = n
	}
	if n := e.cfg.ATRPeriod + 1; n > required {
		required = n
	}
	return required
}

// Evaluate produces candidate signals from the bars visible at asOf.
// It returns an empty slice when no rule set fires; errors are reserved for
// data faults such as out-of-order bars.
func (e *Engine) Evaluate(ctx context.Context, htf, ltf []*domain.Bar, inst *domain.Instrument, asOf time.Time) ([]*domain.Candidate, error) {
	if err := verifyOrder(htf); err != nil {
		return nil, fmt.Errorf("%s HTF bars: %w", inst.Symbol, err)
	}
	if err := verifyOrder(ltf); err != nil {
		return nil, fmt.Errorf("%s LTF bars: %w", inst.Symbol, err)
	}

	htfClosed := align.ClosedBars(htf, asOf)
	ltfClosed := align.ClosedBars(ltf, asOf)
	if len(htfClosed) < e.RequiredHTFBars() || len(ltfClosed) < e.RequiredLTFBars() {
		e.logger.Debug(ctx, "insufficient closed bars", map[string]interface{}{
			"symbol": inst.Symbol, "htf": len(htfClosed), "ltf": len(ltfClosed),
		})
		return nil, nil
	}

	trend := e.trendOpinion(htfClosed, asOf)
	if trend.side == "" {
		return nil, nil
	}

	current := ltfClosed[len(ltfClosed)-1]
	quality, qualityWhy := e.checkQuality(ltfClosed)
	if !quality {
		e.logger.Debug(ctx, "quality filter rejected bar", map[string]interface{}{
			"symbol": inst.Symbol, "reason": qualityWhy, "asOf": asOf,
		})
		return nil, nil
	}

	var candidates []*domain.Candidate
	for _, side := range []domain.Side{domain.Long, domain.Short} {
		if side != trend.side {
			continue
		}
		triggers := e.entryTriggers(ltfClosed, side)
		if len(triggers) == 0 {
			continue
		}
		atrSeries := indicators.ATR(ltfClosed, e.cfg.ATRPeriod)
		atr, _ := indicators.Last(atrSeries)
		evidence := append([]string{trend.why}, triggers...)
		evidence = append(evidence, qualityWhy)
		candidates = append(candidates, &domain.Candidate{
			Symbol:   inst.Symbol,
			Side:     side,
			Entry:    current.Close,
			ATR:      atr,
			AsOf:     asOf,
			Evidence: evidence,
		})
	}

	// Tie-break: when triggers fire on both sides of the same bar, the side
	// aligned with the HTF trend wins. The trend filter admits exactly one
	// side, so the aligned candidate stands; the contradiction is still
	// worth a diagnostic.
	if len(candidates) > 0 && len(e.entryTriggers(ltfClosed, trend.side.Opposite())) > 0 {
		e.logger.Warn(ctx, "opposite-side trigger fired on the same bar, keeping trend-aligned side", map[string]interface{}{
			"symbol": inst.Symbol, "asOf": asOf, "trendSide": string(trend.side),
		})
	}
	return candidates, nil
}

type trendResult struct {
	side domain.Side
	why  string
}

// trendOpinion derives the HTF trend direction from aligned SMA values.
// An unavailable aligned value means no trend opinion and no candidates.
func (e *Engine) trendOpinion(htf []*domain.Bar, asOf time.Time) trendResult {
	closes := indicators.Closes(htf)
	smaFast := indicators.SMA(closes, e.cfg.TrendFastPeriod)
	smaMid := indicators.SMA(closes, e.cfg.TrendMidPeriod)
	smaSlow := indicators.SMA(closes, e.cfg.TrendSlowPeriod)

	closeVal, ok1 := align.Value(htf, closes, asOf)
	fast, ok2 := align.Value(htf, smaFast, asOf)
	mid, ok3 := align.Value(htf, smaMid, asOf)
	slow, ok4 := align.Value(htf, smaSlow, asOf)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return trendResult{}
	}

	switch {
	case closeVal > slow && fast > mid:
		return trendResult{side: domain.Long, why: fmt.Sprintf(
			"Trend(HTF) LONG: close %.2f > SMA%d %.2f, SMA%d %.2f > SMA%d %.2f",
			closeVal, e.cfg.TrendSlowPeriod, slow, e.cfg.TrendFastPeriod, fast, e.cfg.TrendMidPeriod, mid)}
	case closeVal < slow && fast < mid:
		return trendResult{side: domain.Short, why: fmt.Sprintf(
			"Trend(HTF) SHORT: close %.2f < SMA%d %.2f, SMA%d %.2f < SMA%d %.2f",
			closeVal, e.cfg.TrendSlowPeriod, slow, e.cfg.TrendFastPeriod, fast, e.cfg.TrendMidPeriod, mid)}
	}
	return trendResult{}
}

// entryTriggers evaluates the three LTF triggers on the just-closed bar and
// returns the evidence for each one that fired.
func (e *Engine) entryTriggers(ltf []*domain.Bar, side domain.Side) []string {
	last := len(ltf) - 1
	current := ltf[last]
	closes := indicators.Closes(ltf)
	var triggers []string

	donchian := indicators.Donchian(ltf, e.cfg.DonchianPeriod)
	if hi, ok := indicators.At(donchian.High, last); ok && side == domain.Long && current.High > hi {
		triggers = append(triggers, fmt.Sprintf("Breakout(%d): high %.2f > %.2f", e.cfg.DonchianPeriod, current.High, hi))
	}
	if lo, ok := indicators.At(donchian.Low, last); ok && side == domain.Short && current.Low < lo {
		triggers = append(triggers, fmt.Sprintf("Breakout(%d): low %.2f < %.2f", e.cfg.DonchianPeriod, current.Low, lo))
	}

	macd := indicators.MACD(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	line, okL := indicators.At(macd.Line, last)
	sig, okS := indicators.At(macd.Signal, last)
	prevLine, okPL := indicators.At(macd.Line, last-1)
	prevSig, okPS := indicators.At(macd.Signal, last-1)
	if okL && okS && okPL && okPS {
		crossedUp := line > sig && prevLine <= prevSig
		crossedDown := line < sig && prevLine >= prevSig
		if side == domain.Long && crossedUp && line > 0 {
			triggers = append(triggers, fmt.Sprintf("MACD cross up: %.4f > %.4f", line, sig))
		}
		if side == domain.Short && crossedDown && line < 0 {
			triggers = append(triggers, fmt.Sprintf("MACD cross down: %.4f < %.4f", line, sig))
		}
	}

	roc := indicators.ROC(closes, e.cfg.ROCLookback)
	if v, ok := indicators.At(roc, last); ok {
		if side == domain.Long && v >= e.cfg.ROCLongMin {
			triggers = append(triggers, fmt.Sprintf("ROC(%d): %.4f >= %.4f", e.cfg.ROCLookback, v, e.cfg.ROCLongMin))
		}
		if side == domain.Short && v <= e.cfg.ROCShortMax {
			triggers = append(triggers, fmt.Sprintf("ROC(%d): %.4f <= %.4f", e.cfg.ROCLookback, v, e.cfg.ROCShortMax))
		}
	}
	return triggers
}

// checkQuality applies the volume and volatility filters to the just-closed
// bar. Volume is skipped when the instrument reports none (common for CFD
// index feeds); the ATR band always applies.
func (e *Engine) checkQuality(ltf []*domain.Bar) (bool, string) {
	last := len(ltf) - 1
	current := ltf[last]

	volSMA := indicators.SMA(indicators.Volumes(ltf), e.cfg.VolumePeriod)
	avgVol, ok := indicators.At(volSMA, last)
	volumeWhy := "volume n/a"
	if ok && avgVol > 0 {
		ratio := current.Volume / avgVol
		if ratio < e.cfg.VolumeMult {
			return false, fmt.Sprintf("volume %.2fx below %.2fx average", ratio, e.cfg.VolumeMult)
		}
		volumeWhy = fmt.Sprintf("volume %.1fx avg", ratio)
	}

	atrSeries := indicators.ATR(ltf, e.cfg.ATRPeriod)
	atr, ok := indicators.At(atrSeries, last)
	if !ok || current.Close == 0 {
		return false, "ATR unavailable"
	}
	atrPct := atr / current.Close
	if atrPct < e.cfg.ATRMinPct {
		return false, fmt.Sprintf("ATR %.2f%% below %.2f%% floor (too quiet)", atrPct*100, e.cfg.ATRMinPct*100)
	}
	if atrPct > e.cfg.ATRMaxPct {
		return false, fmt.Sprintf("ATR %.2f%% above %.2f%% ceiling (too volatile)", atrPct*100, e.cfg.ATRMaxPct*100)
	}
	return true, fmt.Sprintf("Quality: %s, ATR %.2f%%", volumeWhy, atrPct*100)
}

func verifyOrder(bars []*domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].OpenTime.Before(bars[i-1].OpenTime) {
			return fmt.Errorf("bar %d opens at %s before previous %s: %w",
				i, bars[i].OpenTime, bars[i-1].OpenTime, ports.ErrOutOfOrderBars)
		}
	}
	return nil
}
