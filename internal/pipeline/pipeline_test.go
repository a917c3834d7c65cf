package pipeline

import (
	"context"
	"testing"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ledger"
	"cfdSignalBot/internal/macro"
	"cfdSignalBot/internal/ports"
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

func rampLTF(n int) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		c := 18205 + 5*float64(i)
		bars[i] = &domain.Bar{
			OpenTime:  ltfBase.Add(time.Duration(i) * 5 * time.Minute),
			CloseTime: ltfBase.Add(time.Duration(i+1) * 5 * time.Minute),
			Symbol:    "GER40",
			Timeframe: "5m",
			Open:      c - 5,
			High:      c + 40,
			Low:       c - 45,
			Close:     c,
			IsFinal:   true,
		}
	}
	return bars
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger := &mockLogger{}
	eng, err := engine.New(engine.DefaultConfig(), logger)
	require.NoError(t, err)
	riskEng, err := risk.New(risk.DefaultConfig(), logger)
	require.NoError(t, err)
	led, err := ledger.New(ledger.DefaultConfig(), logger)
	require.NoError(t, err)
	p, err := New(eng, riskEng, led, macro.New(macro.DefaultConfig()), logger)
	require.NoError(t, err)
	p.Ledger().ResetDay(ltfBase)
	return p
}

func TestNewValidation(t *testing.T) {
	logger := &mockLogger{}
	eng, err := engine.New(engine.DefaultConfig(), logger)
	require.NoError(t, err)

	_, err = New(nil, nil, nil, nil, logger)
	assert.Error(t, err)
	_, err = New(eng, nil, nil, nil, logger)
	assert.Error(t, err)
}

func TestProcessBarCommitsSignal(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	asOf := ltf[len(ltf)-1].CloseTime

	res, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 10000, asOf)
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)

	sig := res.Signals[0]
	assert.Equal(t, domain.SignalID("GER40", domain.Long, asOf), sig.ID)
	assert.Equal(t, domain.StatusActive, sig.Status)
	assert.Equal(t, 1, p.Ledger().OpenCount())
	require.NoError(t, sig.Validate())
}

func TestProcessBarMacroBlackout(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	asOf := ltf[len(ltf)-1].CloseTime

	events := []domain.MacroEvent{
		{Name: "US CPI", Type: "CPI", Time: asOf.Add(2 * time.Hour), Impact: "high"},
	}
	res, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), events, 10000, asOf)
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.ReasonMacroBlackout, res.Rejections[0].Reason)
	assert.Equal(t, 0, p.Ledger().OpenCount())
}

func TestProcessBarCooldownRejection(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	asOf := ltf[len(ltf)-1].CloseTime

	res, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 10000, asOf)
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)

	// Same decision replayed immediately: the ledger cooldown stops a
	// duplicate before the risk engine runs.
	res, err = p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 10000, asOf)
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.ReasonCooldown, res.Rejections[0].Reason)
}

func TestProcessBarAccountTooSmall(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	asOf := ltf[len(ltf)-1].CloseTime

	res, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 50, asOf)
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.ReasonUndersized, res.Rejections[0].Reason)
}

func TestProcessBarNoClosedBars(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	for _, b := range ltf {
		b.IsFinal = false
	}
	asOf := ltf[len(ltf)-1].CloseTime

	_, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 10000, asOf)
	assert.ErrorIs(t, err, ports.ErrNoData)
}

func TestProcessBarDataFault(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	ltf[5], ltf[6] = ltf[6], ltf[5]
	asOf := ltf[len(ltf)-1].CloseTime

	_, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 10000, asOf)
	assert.ErrorIs(t, err, ports.ErrOutOfOrderBars)
	assert.Equal(t, 0, p.Ledger().OpenCount(), "a data fault must leave no partial ledger state")
}

func TestProcessBarAdvancesOpenSignals(t *testing.T) {
	p := newPipeline(t)
	htf := trendingHTF(210)
	ltf := rampLTF(60)
	asOf := ltf[len(ltf)-1].CloseTime

	res, err := p.ProcessBar(context.Background(), htf, ltf, testInstrument(), nil, 10000, asOf)
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	target := res.Signals[0].TakeProfit

	// Next bar rallies through the target.
	rally := &domain.Bar{
		OpenTime:  asOf,
		CloseTime: asOf.Add(5 * time.Minute),
		Symbol:    "GER40",
		Timeframe: "5m",
		Open:      18500,
		High:      target + 20,
		Low:       18480,
		Close:     target + 10,
		IsFinal:   true,
	}
	res, err = p.ProcessBar(context.Background(), htf, append(ltf, rally), testInstrument(), nil, 10000, rally.CloseTime)
	require.NoError(t, err)
	require.NotEmpty(t, res.Transitions)
	assert.Equal(t, domain.StatusHitTP, res.Transitions[0].To)
	assert.Positive(t, res.Transitions[0].PnL)
	assert.Equal(t, 0, p.Ledger().OpenCount())
}
