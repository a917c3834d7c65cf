package backtesting

import (
	"context"
	"testing"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ledger"
	"cfdSignalBot/internal/macro"
	"cfdSignalBot/internal/pipeline"
	"cfdSignalBot/internal/risk"
	"cfdSignalBot/internal/strategy/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var ltfBase = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func testInstrument() *domain.Instrument {
	return &domain.Instrument{
		Symbol:           "GER40",
		Kind:             domain.KindIndex,
		PointValue:       1,
		TickSize:         0.5,
		MinLot:           0.1,
		LotStep:          0.1,
		CorrelationGroup: "eu-indices",
		LTF:              "5m",
		HTF:              "1h",
	}
}

func trendingHTF(n int) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		c := 17000 + 5*float64(i)
		bars[i] = &domain.Bar{
			OpenTime:  ltfBase.Add(time.Duration(i-n) * time.Hour),
			CloseTime: ltfBase.Add(time.Duration(i-n+1) * time.Hour),
			Symbol:    "GER40",
			Timeframe: "1h",
			Open:      c - 5,
			High:      c + 20,
			Low:       c - 25,
			Close:     c,
			IsFinal:   true,
		}
	}
	return bars
}

// replayBars builds a steady 5-minute ramp and appends one rally bar that
// sweeps every open target.
func replayBars() []*domain.Bar {
	bars := make([]*domain.Bar, 0, 61)
	for i := 0; i < 60; i++ {
		c := 18205 + 5*float64(i)
		bars = append(bars, &domain.Bar{
			OpenTime:  ltfBase.Add(time.Duration(i) * 5 * time.Minute),
			CloseTime: ltfBase.Add(time.Duration(i+1) * 5 * time.Minute),
			Symbol:    "GER40",
			Timeframe: "5m",
			Open:      c - 5,
			High:      c + 40,
			Low:       c - 45,
			Close:     c,
			IsFinal:   true,
		})
	}
	bars = append(bars, &domain.Bar{
		OpenTime:  ltfBase.Add(300 * time.Minute),
		CloseTime: ltfBase.Add(305 * time.Minute),
		Symbol:    "GER40",
		Timeframe: "5m",
		Open:      18500,
		High:      18990,
		Low:       18460,
		Close:     18950,
		IsFinal:   true,
	})
	return bars
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	logger := &mockLogger{}
	eng, err := engine.New(engine.DefaultConfig(), logger)
	require.NoError(t, err)
	riskEng, err := risk.New(risk.DefaultConfig(), logger)
	require.NoError(t, err)
	led, err := ledger.New(ledger.DefaultConfig(), logger)
	require.NoError(t, err)
	p, err := pipeline.New(eng, riskEng, led, macro.New(macro.DefaultConfig()), logger)
	require.NoError(t, err)
	return p
}

func TestBacktestValidation(t *testing.T) {
	p := newPipeline(t)
	bars := replayBars()
	cfg := BacktestConfig{Instrument: testInstrument(), Equity: 10000}

	_, err := Backtest(context.Background(), nil, nil, bars, cfg)
	assert.Error(t, err)

	bad := cfg
	bad.Instrument = nil
	_, err = Backtest(context.Background(), p, trendingHTF(210), bars, bad)
	assert.Error(t, err)

	bad = cfg
	bad.Equity = 0
	_, err = Backtest(context.Background(), p, trendingHTF(210), bars, bad)
	assert.Error(t, err)

	_, err = Backtest(context.Background(), p, trendingHTF(210), nil, cfg)
	assert.Error(t, err)
}

func TestBacktestReplay(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	bars := replayBars()

	res, err := Backtest(context.Background(), p, htf, bars, BacktestConfig{
		Instrument: testInstrument(),
		Equity:     10000,
	})
	require.NoError(t, err)

	assert.Equal(t, 61, res.BarsProcessed)

	// The ramp produces a first signal as soon as indicator history is deep
	// enough, a second once the cooldown elapses, then the correlation cap
	// holds the line at two per group until the rally bar settles both.
	assert.Equal(t, 3, res.TotalSignals)
	require.Len(t, res.Signals, 3)
	assert.Equal(t, domain.Long, res.Signals[0].Side)

	assert.Equal(t, 2, res.WinningTrades)
	assert.Equal(t, 0, res.LosingTrades)
	assert.Equal(t, 0, res.ExpiredTrades)
	assert.InDelta(t, 1.0, res.WinRate, 1e-9)
	assert.InDelta(t, 306.0, res.TotalPnL, 1e-9)
	assert.InDelta(t, 153.0, res.AverageWin, 1e-9)
	assert.Zero(t, res.MaxDrawdown)

	reasons := map[domain.RejectReason]int{}
	for _, r := range res.Rejections {
		reasons[r.Reason]++
	}
	assert.Positive(t, reasons[domain.ReasonCooldown])
	assert.Positive(t, reasons[domain.ReasonCorrelation])

	// The last signal rode the rally bar and is still open at replay end.
	assert.Equal(t, 1, p.Ledger().OpenCount())
}

func TestBacktestSkipsFormingBars(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	bars := replayBars()
	bars[len(bars)-1].IsFinal = false

	res, err := Backtest(context.Background(), p, htf, bars, BacktestConfig{
		Instrument: testInstrument(),
		Equity:     10000,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, res.BarsProcessed)
	assert.Equal(t, 0, res.WinningTrades, "an unfinished rally bar must settle nothing")
}

func TestBacktestMacroEventsBlockReplaySignals(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	bars := replayBars()

	// One CPI late in the day: the 24h prefilter blacks out the whole replay.
	res, err := Backtest(context.Background(), p, htf, bars, BacktestConfig{
		Instrument: testInstrument(),
		Equity:     10000,
		Events: []domain.MacroEvent{
			{Name: "US CPI", Type: "CPI", Time: ltfBase.Add(20 * time.Hour), Impact: "high"},
		},
	})
	require.NoError(t, err)
	assert.Zero(t, res.TotalSignals)
	for _, r := range res.Rejections {
		assert.Equal(t, domain.ReasonMacroBlackout, r.Reason)
	}
}

func TestBacktestIsDeterministic(t *testing.T) {
	htf := trendingHTF(210)
	bars := replayBars()
	cfg := BacktestConfig{Instrument: testInstrument(), Equity: 10000}

	first, err := Backtest(context.Background(), newPipeline(t), htf, bars, cfg)
	require.NoError(t, err)
	second, err := Backtest(context.Background(), newPipeline(t), htf, bars, cfg)
	require.NoError(t, err)

	require.Len(t, second.Signals, len(first.Signals))
	for i := range first.Signals {
		assert.Equal(t, *first.Signals[i], *second.Signals[i])
	}
	assert.Equal(t, first.TotalPnL, second.TotalPnL)
	assert.Equal(t, first.Transitions, second.Transitions)
}

func TestBacktestMatchesLiveSequence(t *testing.T) {
	htf := trendingHTF(210)
	bars := replayBars()
	inst := testInstrument()

	replay, err := Backtest(context.Background(), newPipeline(t), htf, bars, BacktestConfig{
		Instrument: inst,
		Equity:     10000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, replay.Signals)

	// Drive a second pipeline the way the live scan loop does: one call per
	// closed bar, each seeing only the history available at that close.
	live := newPipeline(t)
	live.Ledger().ResetDay(bars[0].CloseTime)
	var liveSignals []*domain.Signal
	var liveTransitions []domain.Transition
	for i := range bars {
		res, err := live.ProcessBar(context.Background(), htf, bars[:i+1], inst, nil, 10000, bars[i].CloseTime)
		require.NoError(t, err)
		liveSignals = append(liveSignals, res.Signals...)
		liveTransitions = append(liveTransitions, res.Transitions...)
	}

	require.Len(t, liveSignals, len(replay.Signals))
	for i := range replay.Signals {
		assert.Equal(t, *replay.Signals[i], *liveSignals[i])
	}
	assert.Equal(t, replay.Transitions, liveTransitions)
	assert.Equal(t, replay.TotalSignals, len(liveSignals))
}
