package binancedata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// Client implements the ports.MarketDataProvider interface using the
// go-binance library. Only public kline endpoints are used, so API keys
// are optional.
type Client struct {
	client *binance.Client
	logger ports.Logger
}

// Config holds configuration specific to the Binance data adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance market data adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance data client")
	}
	binance.UseTestnet = cfg.UseTestnet
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	cfg.Logger.Info(context.Background(), "Binance data client configured", map[string]interface{}{
		"baseURL": client.BaseURL, "testnet": cfg.UseTestnet,
	})
	return &Client{client: client, logger: cfg.Logger}, nil
}

// GetBars retrieves up to limit closed bars for the symbol and timeframe,
// ending at or before until. Bars still forming at the cutoff are marked
// non-final so downstream alignment can skip them.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int, until time.Time) ([]*domain.Bar, error) {
	op := "GetBars"
	klines, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		EndTime(until.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s: %s/%s until %s: %w", op, symbol, timeframe, until.Format(time.RFC3339), ports.ErrNoData)
	}

	bars := make([]*domain.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := translateKline(k, symbol, timeframe, until)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		bars = append(bars, bar)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "timeframe": timeframe, "bars": len(bars),
	})
	return bars, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrDependencyUnavailable
		case -1121: // Invalid symbol
			mappedErr = ports.ErrInvalidRequest
		case -1120: // Invalid interval
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrDependencyUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrDependencyUnavailable, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func translateKline(k *binance.Kline, symbol, timeframe string, until time.Time) (*domain.Bar, error) {
	if k == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", k.Volume, err)
	}

	closeTime := time.UnixMilli(k.CloseTime)
	return &domain.Bar{
		OpenTime:  time.UnixMilli(k.OpenTime),
		CloseTime: closeTime,
		Symbol:    symbol,
		Timeframe: timeframe,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
		IsFinal:   !closeTime.After(until),
	}, nil
}
