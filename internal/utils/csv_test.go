package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cfdSignalBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureBars() []*domain.Bar {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, 3)
	for i := range bars {
		c := 18500 + 5*float64(i)
		bars[i] = &domain.Bar{
			OpenTime:  base.Add(time.Duration(i) * 5 * time.Minute),
			CloseTime: base.Add(time.Duration(i+1) * 5 * time.Minute),
			Symbol:    "GER40",
			Timeframe: "5m",
			Open:      c - 5,
			High:      c + 40,
			Low:       c - 45,
			Close:     c,
			Volume:    123.45,
			IsFinal:   true,
		}
	}
	return bars
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	original := fixtureBars()

	require.NoError(t, WriteBarsToCSV(original, path))
	loaded, err := ReadBarsFromCSV(path)
	require.NoError(t, err)

	require.Len(t, loaded, len(original))
	for i := range original {
		assert.Equal(t, *original[i], *loaded[i])
	}
}

func TestReadMarksBarsFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	bars := fixtureBars()
	bars[2].IsFinal = false

	require.NoError(t, WriteBarsToCSV(bars, path))
	loaded, err := ReadBarsFromCSV(path)
	require.NoError(t, err)
	assert.True(t, loaded[2].IsFinal, "the fixture format only carries closed bars")
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadBarsFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, WriteBarsToCSV(nil, path))

	_, err := ReadBarsFromCSV(path)
	assert.Error(t, err)
}

func TestReadRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad open_time", "nonsense,2025-06-02T10:05:00Z,GER40,5m,18495,18540,18455,18500,0"},
		{"bad close", "2025-06-02T10:00:00Z,2025-06-02T10:05:00Z,GER40,5m,18495,18540,18455,abc,0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bars.csv")
			content := "open_time,close_time,symbol,timeframe,open,high,low,close,volume\n" + tt.row + "\n"
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := ReadBarsFromCSV(path)
			assert.Error(t, err)
		})
	}
}
