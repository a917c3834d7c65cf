package indicators

import (
	"math"

	"cfdSignalBot/internal/domain"
)

// All series functions are causal: the value at index i is a pure function
// of bars[0..i]. Positions without enough history hold NaN rather than an
// error, so aligned lookups can treat them as "unavailable".

// Closes extracts the close series from a bar sequence.
func Closes(bars []*domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume series from a bar sequence.
func Volumes(bars []*domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// SMA computes the simple moving average series for the given period.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average series. The first defined
// value (at index period-1) is seeded with the SMA of the first period
// values, matching the usual charting convention.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	multiplier := 2.0 / float64(period+1)
	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	ema := seed / float64(period)
	out[period-1] = ema
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// ROC computes the rate of change over the lookback as a fraction
// (0.01 == +1%).
func ROC(values []float64, lookback int) []float64 {
	out := nanSeries(len(values))
	if lookback <= 0 {
		return out
	}
	for i := lookback; i < len(values); i++ {
		prev := values[i-lookback]
		if prev == 0 {
			continue
		}
		out[i] = (values[i] - prev) / prev
	}
	return out
}

// Last returns the final value of a series and whether it is defined.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// At returns the series value at index i and whether it is defined.
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) {
		return 0, false
	}
	v := series[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
