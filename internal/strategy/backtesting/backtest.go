package backtesting

import (
	"context"
	"fmt"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/pipeline"
)

// BacktestConfig holds configuration for a replay.
type BacktestConfig struct {
	Instrument *domain.Instrument
	Equity     float64
	Events     []domain.MacroEvent // Scheduled releases inside the replay window
}

// BacktestResult holds the aggregated outcome of a replay.
type BacktestResult struct {
	BarsProcessed int
	TotalSignals  int
	WinningTrades int
	LosingTrades  int
	ExpiredTrades int
	WinRate       float64
	TotalPnL      float64
	MaxDrawdown   float64
	ProfitFactor  float64
	AverageWin    float64
	AverageLoss   float64
	Signals       []*domain.Signal
	Transitions   []domain.Transition
	Rejections    []pipeline.Rejection
}

// Backtest replays historical bars through the decision pipeline, one closed
// LTF bar at a time. Each step only sees bars closed at or before the step's
// cutoff, so the replay observes exactly what a live scan would have seen.
func Backtest(ctx context.Context, pipe *pipeline.Pipeline, htf, ltf []*domain.Bar, cfg BacktestConfig) (*BacktestResult, error) {
	if pipe == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Instrument == nil {
		return nil, fmt.Errorf("instrument is required")
	}
	if cfg.Equity <= 0 {
		return nil, fmt.Errorf("equity must be positive")
	}
	if len(ltf) == 0 {
		return nil, fmt.Errorf("no bars to replay")
	}

	result := &BacktestResult{}
	var grossProfit, grossLoss float64
	var peak, balance float64
	var currentDay time.Time

	pipe.Ledger().ResetDay(ltf[0].CloseTime)

	for i := range ltf {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := ltf[i]
		if !bar.IsFinal {
			continue
		}
		asOf := bar.CloseTime

		if day := startOfDay(asOf); day.After(currentDay) {
			currentDay = day
			pipe.Ledger().ResetDay(asOf)
		}

		res, err := pipe.ProcessBar(ctx, htf, ltf[:i+1], cfg.Instrument, cfg.Events, cfg.Equity, asOf)
		if err != nil {
			return nil, fmt.Errorf("replay at %s: %w", asOf, err)
		}
		result.BarsProcessed++
		result.Signals = append(result.Signals, res.Signals...)
		result.Rejections = append(result.Rejections, res.Rejections...)
		result.TotalSignals += len(res.Signals)

		for _, tr := range res.Transitions {
			result.Transitions = append(result.Transitions, tr)
			switch tr.To {
			case domain.StatusHitTP:
				result.WinningTrades++
				grossProfit += tr.PnL
			case domain.StatusHitSL:
				result.LosingTrades++
				grossLoss += -tr.PnL
			case domain.StatusExpired:
				result.ExpiredTrades++
				if tr.PnL > 0 {
					grossProfit += tr.PnL
				} else {
					grossLoss += -tr.PnL
				}
			}
			balance += tr.PnL
			if balance > peak {
				peak = balance
			}
			if dd := peak - balance; dd > result.MaxDrawdown {
				result.MaxDrawdown = dd
			}
		}
	}

	result.TotalPnL = balance
	closed := result.WinningTrades + result.LosingTrades
	if closed > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(closed)
	}
	if result.WinningTrades > 0 {
		result.AverageWin = grossProfit / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AverageLoss = -grossLoss / float64(result.LosingTrades)
	}
	if grossLoss > 0 {
		result.ProfitFactor = grossProfit / grossLoss
	}
	return result, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
