package indicators

import (
	"math"

	"cfdSignalBot/internal/domain"
)

// ATR computes the Average True Range series using Wilder's smoothing.
// The first defined value, at index period-1, is the simple average of the
// first period true ranges; later values apply the smoothing recurrence.
func ATR(bars []*domain.Bar, period int) []float64 {
	out := nanSeries(len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}

	trueRanges := make([]float64, len(bars))
	trueRanges[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close

		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. |Current High - Previous Close|
		// 3. |Current Low - Previous Close|
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)
		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)
	out[period-1] = atr

	for i := period; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		out[i] = atr
	}
	return out
}
