package align

import (
	"math"
	"testing"
	"time"

	"cfdSignalBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourBars(n int, finalUpTo int) []*domain.Bar {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = &domain.Bar{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Symbol:    "GER40",
			Timeframe: "1h",
			Close:     100 + float64(i),
			IsFinal:   i < finalUpTo,
		}
	}
	return bars
}

func TestLastClosedIndex(t *testing.T) {
	bars := hourBars(5, 5)
	base := bars[0].OpenTime

	tests := []struct {
		name string
		asOf time.Time
		want int
	}{
		{"before any close", base.Add(30 * time.Minute), -1},
		{"exactly at first close", base.Add(time.Hour), 0},
		{"mid second bar", base.Add(90 * time.Minute), 0},
		{"after all closed", base.Add(10 * time.Hour), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastClosedIndex(bars, tt.asOf))
		})
	}
}

func TestLastClosedIndexSkipsFormingBar(t *testing.T) {
	// Last bar is still forming even though its close time has passed.
	bars := hourBars(5, 4)
	asOf := bars[4].CloseTime.Add(time.Minute)
	assert.Equal(t, 3, LastClosedIndex(bars, asOf))
}

func TestValueNeverReadsAhead(t *testing.T) {
	bars := hourBars(10, 10)
	series := make([]float64, 10)
	for i := range series {
		series[i] = float64(i)
	}

	// Walk asOf across every bar boundary: the aligned value must always be
	// the index of the last bar closed at or before asOf, never one later.
	for i := 0; i < 10; i++ {
		asOf := bars[i].CloseTime
		v, ok := Value(bars, series, asOf)
		require.True(t, ok)
		assert.Equal(t, float64(i), v)

		justBefore := asOf.Add(-time.Second)
		if i == 0 {
			_, ok := Value(bars, series, justBefore)
			assert.False(t, ok)
		} else {
			v, ok := Value(bars, series, justBefore)
			require.True(t, ok)
			assert.Equal(t, float64(i-1), v)
		}
	}
}

func TestValueUndefinedSeries(t *testing.T) {
	bars := hourBars(3, 3)
	series := []float64{math.NaN(), math.NaN(), math.NaN()}
	_, ok := Value(bars, series, bars[2].CloseTime)
	assert.False(t, ok)
}

func TestClosedBars(t *testing.T) {
	bars := hourBars(5, 5)
	got := ClosedBars(bars, bars[2].CloseTime)
	require.Len(t, got, 3)
	assert.Equal(t, bars[2], got[2])

	assert.Empty(t, ClosedBars(bars, bars[0].OpenTime))
}
