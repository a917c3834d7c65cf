package binancedata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cfdSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
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

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestTranslateKline(t *testing.T) {
	until := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	openTime := until.Add(-5 * time.Minute)

	k := &binance.Kline{
		OpenTime:  openTime.UnixMilli(),
		CloseTime: until.UnixMilli(),
		Open:      "18495.5",
		High:      "18540.0",
		Low:       "18455.5",
		Close:     "18500.0",
		Volume:    "123.45",
	}
	bar, err := translateKline(k, "GER40", "5m", until)
	require.NoError(t, err)

	assert.Equal(t, "GER40", bar.Symbol)
	assert.Equal(t, "5m", bar.Timeframe)
	assert.Equal(t, 18495.5, bar.Open)
	assert.Equal(t, 18540.0, bar.High)
	assert.Equal(t, 18455.5, bar.Low)
	assert.Equal(t, 18500.0, bar.Close)
	assert.Equal(t, 123.45, bar.Volume)
	assert.True(t, bar.OpenTime.Equal(openTime))
	assert.True(t, bar.CloseTime.Equal(until))
	assert.True(t, bar.IsFinal, "a bar closing exactly at the cutoff is closed")
}

func TestTranslateKlineFormingBar(t *testing.T) {
	until := time.Date(2025, 6, 2, 10, 32, 0, 0, time.UTC)

	k := &binance.Kline{
		OpenTime:  until.Add(-2 * time.Minute).UnixMilli(),
		CloseTime: until.Add(3 * time.Minute).UnixMilli(),
		Open:      "18500", High: "18510", Low: "18490", Close: "18505", Volume: "1",
	}
	bar, err := translateKline(k, "GER40", "5m", until)
	require.NoError(t, err)
	assert.False(t, bar.IsFinal, "a bar closing after the cutoff is still forming")
}

func TestTranslateKlineBadPayload(t *testing.T) {
	until := time.Now().UTC()

	_, err := translateKline(nil, "GER40", "5m", until)
	assert.Error(t, err)

	k := &binance.Kline{Open: "not-a-number", High: "1", Low: "1", Close: "1", Volume: "1"}
	_, err = translateKline(k, "GER40", "5m", until)
	assert.Error(t, err)
}

func TestHandleErrorMapsAPICodes(t *testing.T) {
	c := &Client{logger: &mockLogger{}}
	ctx := context.Background()

	tests := []struct {
		name string
		code int64
		want error
	}{
		{"rate limited", -1003, ports.ErrDependencyUnavailable},
		{"invalid interval", -1120, ports.ErrInvalidRequest},
		{"invalid symbol", -1121, ports.ErrInvalidRequest},
		{"unknown code", -9999, ports.ErrDependencyUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &common.APIError{Code: tt.code, Message: tt.name}
			err := c.handleError(ctx, apiErr, "GetBars")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandleErrorMapsContextErrors(t *testing.T) {
	c := &Client{logger: &mockLogger{}}
	ctx := context.Background()

	err := c.handleError(ctx, fmt.Errorf("request: %w", context.DeadlineExceeded), "GetBars")
	assert.ErrorIs(t, err, ports.ErrTimeout)

	err = c.handleError(ctx, fmt.Errorf("request: %w", context.Canceled), "GetBars")
	assert.ErrorIs(t, err, ports.ErrContextCanceled)

	err = c.handleError(ctx, fmt.Errorf("connection reset"), "GetBars")
	assert.ErrorIs(t, err, ports.ErrDependencyUnavailable)

	assert.NoError(t, c.handleError(ctx, nil, "GetBars"))
}
