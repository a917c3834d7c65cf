package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"cfdSignalBot/internal/domain"
)

var barHeader = []string{"open_time", "close_time", "symbol", "timeframe", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bar history in the fixture format used by the
// backtest runner.
func WriteBarsToCSV(bars []*domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(barHeader)
	for _, b := range bars {
		writer.Write([]string{
			b.OpenTime.Format(time.RFC3339),
			b.CloseTime.Format(time.RFC3339),
			b.Symbol,
			b.Timeframe,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadBarsFromCSV loads bar history written by WriteBarsToCSV. All loaded
// bars are marked final: the fixture format only carries closed bars.
func ReadBarsFromCSV(filename string) ([]*domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV '%s': %w", filename, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV '%s' has no data rows", filename)
	}

	bars := make([]*domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(barHeader) {
			return nil, fmt.Errorf("CSV '%s' row %d: expected %d fields, got %d", filename, i+2, len(barHeader), len(rec))
		}
		openTime, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("CSV '%s' row %d: bad open_time: %w", filename, i+2, err)
		}
		closeTime, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return nil, fmt.Errorf("CSV '%s' row %d: bad close_time: %w", filename, i+2, err)
		}
		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(rec[4+j], 64)
			if err != nil {
				return nil, fmt.Errorf("CSV '%s' row %d: bad %s: %w", filename, i+2, barHeader[4+j], err)
			}
			vals[j] = v
		}
		bars = append(bars, &domain.Bar{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Symbol:    rec[2],
			Timeframe: rec[3],
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
			IsFinal:   true,
		})
	}
	return bars, nil
}
