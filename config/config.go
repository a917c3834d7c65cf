package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cfdSignalBot/internal/adapters/logger"
	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ledger"
	"cfdSignalBot/internal/macro"
	"cfdSignalBot/internal/resilience"
	"cfdSignalBot/internal/risk"
	"cfdSignalBot/internal/strategy/engine"
)

// Config holds all application configuration. Secrets and deployment knobs
// come from environment variables (.env); the instrument universe comes
// from a YAML file referenced by INSTRUMENTS_PATH.
type Config struct {
	// Binance API (public kline endpoints only, keys optional)
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Scanning
	ScanInterval time.Duration
	Equity       float64 // Account equity used for sizing
	BarHistory   int     // Bars fetched per timeframe per cycle

	// Files
	InstrumentsPath string
	CalendarPath    string
	DBPath          string

	// Alerts
	TelegramBotToken string
	TelegramChatID   string

	// Observability
	MetricsAddr string
	LogLevel    logger.LogLevel

	// Decision thresholds, overridable per deployment. Defaults are the
	// packages' own; the constructors validate the final values at wiring.
	Engine  engine.Config
	Risk    risk.Config
	Ledger  ledger.Config
	Macro   macro.Config
	Retry   resilience.RetryConfig
	Breaker resilience.BreakerConfig

	// Instruments loaded from InstrumentsPath
	Instruments []*domain.Instrument
}

type instrumentEntry struct {
	Symbol           string  `yaml:"symbol" validate:"required"`
	Kind             string  `yaml:"kind" validate:"required,oneof=fx index commodity stock"`
	PointValue       float64 `yaml:"pointValue" validate:"required,gt=0"`
	TickSize         float64 `yaml:"tickSize" validate:"required,gt=0"`
	MinLot           float64 `yaml:"minLot" validate:"required,gt=0"`
	LotStep          float64 `yaml:"lotStep" validate:"required,gt=0"`
	MarginRate       float64 `yaml:"marginRate" validate:"gte=0"`
	CorrelationGroup string  `yaml:"correlationGroup" validate:"required"`
	LTF              string  `yaml:"ltf" validate:"required"`
	HTF              string  `yaml:"htf" validate:"required"`
	Fees             struct {
		SpreadPoints   float64 `yaml:"spreadPoints" validate:"gte=0"`
		CommissionRate float64 `yaml:"commissionRate" validate:"gte=0"`
		SwapDailyRate  float64 `yaml:"swapDailyRate" validate:"gte=0"`
		SwapDays       int     `yaml:"swapDays" validate:"gte=0"`
	} `yaml:"fees"`
}

type instrumentsFile struct {
	Instruments []instrumentEntry `yaml:"instruments" validate:"required,min=1,dive"`
}

// LoadConfig loads configuration from environment variables (.env file)
// and the instruments YAML file.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	scanIntervalSeconds := getEnvAsInt("SCAN_INTERVAL_SECONDS", 60)
	if scanIntervalSeconds <= 0 {
		errs = append(errs, "SCAN_INTERVAL_SECONDS must be positive")
	}
	cfg.ScanInterval = time.Duration(scanIntervalSeconds) * time.Second

	cfg.Equity, err = getEnvAsFloatRequired("ACCOUNT_EQUITY", 10000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_EQUITY: %v", err))
	} else if cfg.Equity <= 0 {
		errs = append(errs, "ACCOUNT_EQUITY must be positive")
	}

	cfg.BarHistory = getEnvAsInt("BAR_HISTORY", 400)
	if cfg.BarHistory <= 0 {
		errs = append(errs, "BAR_HISTORY must be positive")
	}

	cfg.InstrumentsPath = getEnv("INSTRUMENTS_PATH", "./config/instruments.yaml")
	cfg.CalendarPath = getEnv("CALENDAR_PATH", "./config/macro.yaml")
	cfg.DBPath = getEnv("DB_PATH", "./data/signals.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	cfg.Engine = loadEngineConfig()
	cfg.Risk = loadRiskConfig()
	cfg.Ledger = loadLedgerConfig()
	cfg.Macro = loadMacroConfig(&errs)
	cfg.Retry = loadRetryConfig()
	cfg.Breaker = loadBreakerConfig()

	instruments, err := LoadInstruments(cfg.InstrumentsPath)
	if err != nil {
		errs = append(errs, fmt.Sprintf("loading instruments: %v", err))
	}
	cfg.Instruments = instruments

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// LoadInstruments parses and validates the instrument universe file.
func LoadInstruments(path string) ([]*domain.Instrument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instruments file '%s': %w", path, err)
	}

	var file instrumentsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse instruments file '%s': %w", path, err)
	}
	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("instruments file '%s' failed validation: %w", path, err)
	}

	instruments := make([]*domain.Instrument, 0, len(file.Instruments))
	seen := make(map[string]bool, len(file.Instruments))
	for _, e := range file.Instruments {
		if seen[e.Symbol] {
			return nil, fmt.Errorf("instruments file '%s': duplicate symbol %s", path, e.Symbol)
		}
		seen[e.Symbol] = true
		if e.LotStep > e.MinLot {
			return nil, fmt.Errorf("instruments file '%s': %s lotStep %v exceeds minLot %v", path, e.Symbol, e.LotStep, e.MinLot)
		}
		instruments = append(instruments, &domain.Instrument{
			Symbol:           e.Symbol,
			Kind:             domain.InstrumentKind(e.Kind),
			PointValue:       e.PointValue,
			TickSize:         e.TickSize,
			MinLot:           e.MinLot,
			LotStep:          e.LotStep,
			MarginRate:       e.MarginRate,
			CorrelationGroup: e.CorrelationGroup,
			LTF:              e.LTF,
			HTF:              e.HTF,
			Fees: domain.Fees{
				SpreadPoints:   e.Fees.SpreadPoints,
				CommissionRate: e.Fees.CommissionRate,
				SwapDailyRate:  e.Fees.SwapDailyRate,
				SwapDays:       e.Fees.SwapDays,
			},
		})
	}
	return instruments, nil
}

// loadEngineConfig reads the decision-rule thresholds over the package
// defaults. engine.New validates the combined result at wiring time.
func loadEngineConfig() engine.Config {
	c := engine.DefaultConfig()
	c.TrendFastPeriod = getEnvAsInt("TREND_FAST_PERIOD", c.TrendFastPeriod)
	c.TrendMidPeriod = getEnvAsInt("TREND_MID_PERIOD", c.TrendMidPeriod)
	c.TrendSlowPeriod = getEnvAsInt("TREND_SLOW_PERIOD", c.TrendSlowPeriod)
	c.DonchianPeriod = getEnvAsInt("DONCHIAN_PERIOD", c.DonchianPeriod)
	c.MACDFast = getEnvAsInt("MACD_FAST", c.MACDFast)
	c.MACDSlow = getEnvAsInt("MACD_SLOW", c.MACDSlow)
	c.MACDSignal = getEnvAsInt("MACD_SIGNAL", c.MACDSignal)
	c.ROCLookback = getEnvAsInt("ROC_LOOKBACK", c.ROCLookback)
	c.ROCLongMin = getEnvAsFloat("ROC_LONG_MIN", c.ROCLongMin)
	c.ROCShortMax = getEnvAsFloat("ROC_SHORT_MAX", c.ROCShortMax)
	c.VolumePeriod = getEnvAsInt("VOLUME_PERIOD", c.VolumePeriod)
	c.VolumeMult = getEnvAsFloat("VOLUME_MULT", c.VolumeMult)
	c.ATRPeriod = getEnvAsInt("ATR_PERIOD", c.ATRPeriod)
	c.ATRMinPct = getEnvAsFloat("ATR_MIN_PCT", c.ATRMinPct)
	c.ATRMaxPct = getEnvAsFloat("ATR_MAX_PCT", c.ATRMaxPct)
	return c
}

func loadRiskConfig() risk.Config {
	c := risk.DefaultConfig()
	c.StopATRMult = getEnvAsFloat("STOP_ATR_MULT", c.StopATRMult)
	c.RewardRisk = getEnvAsFloat("REWARD_RISK", c.RewardRisk)
	c.RiskPerTrade = getEnvAsFloat("RISK_PER_TRADE", c.RiskPerTrade)
	c.MinNetRR = getEnvAsFloat("MIN_NET_RR", c.MinNetRR)
	return c
}

func loadLedgerConfig() ledger.Config {
	c := ledger.DefaultConfig()
	c.Cooldown = time.Duration(getEnvAsInt("COOLDOWN_MINUTES", int(c.Cooldown/time.Minute))) * time.Minute
	c.MaxOpenSignals = getEnvAsInt("MAX_OPEN_SIGNALS", c.MaxOpenSignals)
	c.MaxPerGroup = getEnvAsInt("MAX_PER_GROUP", c.MaxPerGroup)
	c.MaxDailyLossPct = getEnvAsFloat("MAX_DAILY_LOSS_PCT", c.MaxDailyLossPct)
	c.MaxHoldDuration = time.Duration(getEnvAsInt("MAX_HOLD_HOURS", int(c.MaxHoldDuration/time.Hour))) * time.Hour
	c.ForceCloseOnBreach = getEnvAsBool("FORCE_CLOSE_ON_BREACH", c.ForceCloseOnBreach)
	return c
}

// loadMacroConfig validates inline: macro.New accepts any Config, so bad
// values must be caught here.
func loadMacroConfig(errs *[]string) macro.Config {
	c := macro.DefaultConfig()
	c.Window = time.Duration(getEnvAsInt("MACRO_WINDOW_MINUTES", int(c.Window/time.Minute))) * time.Minute
	c.MinImpact = getEnv("MACRO_MIN_IMPACT", c.MinImpact)
	c.MajorPrefilter = time.Duration(getEnvAsInt("MACRO_PREFILTER_HOURS", int(c.MajorPrefilter/time.Hour))) * time.Hour
	if c.Window <= 0 {
		*errs = append(*errs, "MACRO_WINDOW_MINUTES must be positive")
	}
	if c.MajorPrefilter < 0 {
		*errs = append(*errs, "MACRO_PREFILTER_HOURS cannot be negative")
	}
	switch c.MinImpact {
	case "low", "medium", "high":
	default:
		*errs = append(*errs, fmt.Sprintf("MACRO_MIN_IMPACT must be low, medium or high, got %q", c.MinImpact))
	}
	return c
}

func loadRetryConfig() resilience.RetryConfig {
	c := resilience.DefaultRetryConfig()
	c.MaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", c.MaxAttempts)
	c.MinDelay = time.Duration(getEnvAsInt("RETRY_MIN_DELAY_MS", int(c.MinDelay/time.Millisecond))) * time.Millisecond
	c.MaxDelay = time.Duration(getEnvAsInt("RETRY_MAX_DELAY_MS", int(c.MaxDelay/time.Millisecond))) * time.Millisecond
	c.MaxElapsed = time.Duration(getEnvAsInt("RETRY_MAX_ELAPSED_SECONDS", int(c.MaxElapsed/time.Second))) * time.Second
	c.Factor = getEnvAsFloat("RETRY_FACTOR", c.Factor)
	return c
}

func loadBreakerConfig() resilience.BreakerConfig {
	c := resilience.DefaultBreakerConfig()
	c.FailureThreshold = getEnvAsInt("BREAKER_FAILURE_THRESHOLD", c.FailureThreshold)
	c.Cooldown = time.Duration(getEnvAsInt("BREAKER_COOLDOWN_SECONDS", int(c.Cooldown/time.Second))) * time.Second
	return c
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
