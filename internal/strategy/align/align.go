package align

import (
	"math"
	"time"

	"cfdSignalBot/internal/domain"
)

// Value returns the higher-timeframe indicator value that was fully known at
// or before asOf: the series value of the last HTF bar whose close time is
// at or before asOf. The HTF bar containing asOf has not closed yet and is
// never consulted; using it would leak future information into the decision.
//
// The boolean result is false ("unavailable", not an error) when no HTF bar
// has closed by asOf or the series has no defined value there. Callers must
// treat unavailable as "no trend opinion".
func Value(htfBars []*domain.Bar, series []float64, asOf time.Time) (float64, bool) {
	idx := LastClosedIndex(htfBars, asOf)
	if idx < 0 || idx >= len(series) {
		return 0, false
	}
	v := series[idx]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// LastClosedIndex returns the index of the last HTF bar fully closed at or
// before asOf, or -1 when none is. Bars are ordered ascending, so a binary
// search over close times finds the boundary.
func LastClosedIndex(bars []*domain.Bar, asOf time.Time) int {
	lo, hi := 0, len(bars)
	for lo < hi {
		mid := (lo + hi) / 2
		if bars[mid].CloseTime.After(asOf) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	idx := lo - 1
	// A trailing still-forming bar may carry a close time in the past of a
	// stale snapshot; only bars marked final count as closed.
	for idx >= 0 && !bars[idx].IsFinal {
		idx--
	}
	return idx
}

// ClosedBars returns the prefix of bars fully closed at or before asOf.
func ClosedBars(bars []*domain.Bar, asOf time.Time) []*domain.Bar {
	idx := LastClosedIndex(bars, asOf)
	return bars[:idx+1]
}
