package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"cfdSignalBot/config"
	"cfdSignalBot/internal/adapters/binancedata"
	"cfdSignalBot/internal/adapters/logger"
	"cfdSignalBot/internal/utils"
)

// Fetches bar history for one symbol/timeframe and writes it to the CSV
// fixture format consumed by the backtest runner.
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "instrument symbol")
	timeframe := flag.String("timeframe", "5m", "bar interval")
	limit := flag.Int("limit", 1000, "number of bars to fetch")
	out := flag.String("out", "", "output CSV path (default data/<symbol>_<timeframe>.csv)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)

	dataClient, err := binancedata.New(binancedata.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance data client: %v", err)
	}

	ctx := context.Background()
	bars, err := dataClient.GetBars(ctx, *symbol, *timeframe, *limit, time.Now().UTC())
	if err != nil {
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{
		"symbol": *symbol, "timeframe": *timeframe, "count": len(bars),
	})

	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s.csv", *symbol, *timeframe)
	}
	if err := utils.WriteBarsToCSV(bars, filename); err != nil {
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved bars", map[string]interface{}{"filename": filename})
}
