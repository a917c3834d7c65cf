package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"cfdSignalBot/config"
	"cfdSignalBot/internal/adapters/calendar"
	"cfdSignalBot/internal/adapters/logger"
	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ledger"
	"cfdSignalBot/internal/macro"
	"cfdSignalBot/internal/pipeline"
	"cfdSignalBot/internal/risk"
	"cfdSignalBot/internal/strategy/backtesting"
	"cfdSignalBot/internal/strategy/engine"
	"cfdSignalBot/internal/utils"
)

// Replays CSV bar fixtures through the same pipeline the live scanner uses
// and prints the aggregated result.
func main() {
	symbol := flag.String("symbol", "", "instrument symbol (must exist in the instruments file)")
	htfPath := flag.String("htf", "", "CSV file with higher-timeframe bars")
	ltfPath := flag.String("ltf", "", "CSV file with lower-timeframe bars")
	flag.Parse()
	if *symbol == "" || *htfPath == "" || *ltfPath == "" {
		log.Fatalf("usage: backtest_runner -symbol SYM -htf htf.csv -ltf ltf.csv")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(cfg.LogLevel)
	ctx := context.Background()

	var inst *domain.Instrument
	for _, i := range cfg.Instruments {
		if i.Symbol == *symbol {
			inst = i
			break
		}
	}
	if inst == nil {
		log.Fatalf("FATAL: symbol %s not found in %s", *symbol, cfg.InstrumentsPath)
	}

	htf, err := utils.ReadBarsFromCSV(*htfPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to read HTF bars: %v", err)
	}
	ltf, err := utils.ReadBarsFromCSV(*ltfPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to read LTF bars: %v", err)
	}
	appLogger.Info(ctx, "Fixtures loaded", map[string]interface{}{
		"symbol": inst.Symbol, "htfBars": len(htf), "ltfBars": len(ltf),
	})

	var events []domain.MacroEvent
	if cal, err := calendar.New(calendar.Config{Path: cfg.CalendarPath, Logger: appLogger}); err == nil {
		from := ltf[0].OpenTime
		to := ltf[len(ltf)-1].CloseTime
		if events, err = cal.Events(ctx, from, to); err != nil {
			log.Fatalf("FATAL: Failed to query calendar: %v", err)
		}
	} else {
		appLogger.Warn(ctx, "Calendar unavailable, replaying without macro blackouts", map[string]interface{}{"error": err.Error()})
	}

	decisionEngine, err := engine.New(cfg.Engine, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize decision engine: %v", err)
	}
	riskEngine, err := risk.New(cfg.Risk, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk engine: %v", err)
	}
	signalLedger, err := ledger.New(cfg.Ledger, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize signal ledger: %v", err)
	}
	pipe, err := pipeline.New(decisionEngine, riskEngine, signalLedger, macro.New(cfg.Macro), appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to assemble pipeline: %v", err)
	}

	result, err := backtesting.Backtest(ctx, pipe, htf, ltf, backtesting.BacktestConfig{
		Instrument: inst,
		Equity:     cfg.Equity,
		Events:     events,
	})
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	fmt.Printf("\n=== Backtest: %s ===\n", inst.Symbol)
	fmt.Printf("Bars processed:  %d\n", result.BarsProcessed)
	fmt.Printf("Signals:         %d\n", result.TotalSignals)
	fmt.Printf("Wins / Losses:   %d / %d (expired %d)\n", result.WinningTrades, result.LosingTrades, result.ExpiredTrades)
	fmt.Printf("Win rate:        %.1f%%\n", result.WinRate*100)
	fmt.Printf("Total PnL:       %.2f\n", result.TotalPnL)
	fmt.Printf("Max drawdown:    %.2f\n", result.MaxDrawdown)
	fmt.Printf("Profit factor:   %.2f\n", result.ProfitFactor)
	fmt.Printf("Avg win / loss:  %.2f / %.2f\n", result.AverageWin, result.AverageLoss)

	reasons := make(map[string]int)
	for _, r := range result.Rejections {
		reasons[string(r.Reason)]++
	}
	if len(reasons) > 0 {
		fmt.Println("Rejections:")
		for reason, n := range reasons {
			fmt.Printf("  %-24s %d\n", reason, n)
		}
	}
}
