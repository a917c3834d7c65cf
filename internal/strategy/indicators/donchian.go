package indicators

import "cfdSignalBot/internal/domain"

// DonchianResult holds the rolling channel extremes.
type DonchianResult struct {
	High []float64
	Low  []float64
}

// Donchian computes the rolling highest-high and lowest-low over the period
// bars strictly before each index. The current bar is excluded so that a
// bar cannot participate in its own breakout threshold.
func Donchian(bars []*domain.Bar, period int) DonchianResult {
	n := len(bars)
	res := DonchianResult{High: nanSeries(n), Low: nanSeries(n)}
	if period <= 0 {
		return res
	}
	for i := period; i < n; i++ {
		hi := bars[i-period].High
		lo := bars[i-period].Low
		for j := i - period + 1; j < i; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		res.High[i] = hi
		res.Low[i] = lo
	}
	return res
}
