package indicators

import "math"

// MACDResult holds the three MACD series.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the MACD line (fast EMA - slow EMA), its signal line (EMA of
// the MACD line) and the histogram. NaN positions mark the warmup prefix.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{
		Line:      nanSeries(n),
		Signal:    nanSeries(n),
		Histogram: nanSeries(n),
	}
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow || n < slow {
		return res
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	for i := slow - 1; i < n; i++ {
		res.Line[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal line is an EMA over the defined portion of the MACD line.
	start := slow - 1
	if n-start < signal {
		return res
	}
	sub := EMA(res.Line[start:], signal)
	for i, v := range sub {
		if !math.IsNaN(v) {
			res.Signal[start+i] = v
			res.Histogram[start+i] = res.Line[start+i] - v
		}
	}
	return res
}
