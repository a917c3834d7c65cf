package domain

import "time"

// Bar represents a single OHLCV candlestick.
type Bar struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Instrument symbol
	Timeframe string    // Bar interval (e.g., "5m", "1h", "1d")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
	IsFinal   bool      // Whether the bar is closed (immutable once true)
}

// ClosedBefore reports whether the bar was fully closed at or before t.
// Only closed bars may influence a decision dated at t.
func (b *Bar) ClosedBefore(t time.Time) bool {
	return b.IsFinal && !b.CloseTime.After(t)
}
