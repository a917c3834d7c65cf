package main

import (
	"context"
	"log" // Use standard log only for fatal errors before the logger is set up

	"cfdSignalBot/config"
	"cfdSignalBot/internal/adapters/binancedata"
	"cfdSignalBot/internal/adapters/calendar"
	"cfdSignalBot/internal/adapters/logger"
	"cfdSignalBot/internal/adapters/sqlite"
	"cfdSignalBot/internal/adapters/telegram"
	"cfdSignalBot/internal/app"
	"cfdSignalBot/internal/ledger"
	"cfdSignalBot/internal/macro"
	"cfdSignalBot/internal/pipeline"
	"cfdSignalBot/internal/ports"
	"cfdSignalBot/internal/risk"
	"cfdSignalBot/internal/strategy/engine"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Market Data Client (Binance Adapter)
	dataClient, err := binancedata.New(binancedata.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance data client: %v", err)
	}

	// 5. Initialize Economic Calendar
	cal, err := calendar.New(calendar.Config{
		Path:   cfg.CalendarPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to load economic calendar: %v", err)
	}

	// 6. Initialize Alert Channels
	var alerters []ports.AlertSender
	if cfg.TelegramBotToken != "" {
		tg, err := telegram.New(telegram.Config{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
			Logger:   appLogger,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Telegram sender: %v", err)
		}
		alerters = append(alerters, tg)
	} else {
		appLogger.Warn(context.Background(), "No Telegram credentials, alerts will only be logged")
	}

	// 7. Assemble the Decision Pipeline
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
	macroFilter := macro.New(cfg.Macro)
	pipe, err := pipeline.New(decisionEngine, riskEngine, signalLedger, macroFilter, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to assemble pipeline: %v", err)
	}

	// 8. Initialize and Start the Scan Service
	service, err := app.NewScanService(cfg, appLogger, dataClient, cal, repo, pipe, alerters)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize scan service: %v", err)
	}
	if err := service.Start(context.Background()); err != nil {
		log.Fatalf("FATAL: Scan service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
