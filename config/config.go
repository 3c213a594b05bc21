package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"cryptoDecisionEngine/internal/adapters/logger"
	"cryptoDecisionEngine/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // json or console

	// Database
	DBPath string

	// Binance API. Keys are only required for real-mode trading.
	APIKey             string
	SecretKey          string
	IsTestnet          bool
	RealTradingEnabled bool

	// Engine timing and market data
	CycleInterval       time.Duration
	Timeframe           string
	CandleLimit         int
	ConfidenceThreshold float64
	BotsFile            string
	LearningWindow      int

	// Safety rules
	Safety domain.SafetyConfig

	// Risk sizing
	RiskPerTrade        float64
	MaxPositionSize     float64
	MaxLeverage         float64
	RiskUpdateInterval  time.Duration
	RiskReferenceSymbol string

	// Redis. An empty address disables the shared state store and bot locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	BotLockTTL    time.Duration

	// Kafka. No brokers disables event publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// Admin HTTP surface
	AdminAddr  string
	AdminToken string

	// Paper trading
	PaperStartingBalance float64
	PaperCommissionRate  float64
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, "LOG_FORMAT must be json or console")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/decision_engine.db")

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.RealTradingEnabled = getEnvAsBool("REAL_TRADING_ENABLED", false)
	if cfg.RealTradingEnabled && (cfg.APIKey == "" || cfg.SecretKey == "") {
		errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set when REAL_TRADING_ENABLED is true")
	}

	// Engine
	cfg.CycleInterval, err = getEnvAsDurationRequired("CYCLE_INTERVAL", 5*time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CYCLE_INTERVAL: %v", err))
	} else if cfg.CycleInterval < time.Second {
		errs = append(errs, "CYCLE_INTERVAL must be at least 1s")
	}

	cfg.Timeframe = getEnv("CANDLE_TIMEFRAME", "1h")
	cfg.CandleLimit, err = getEnvAsIntRequired("CANDLE_LIMIT", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CANDLE_LIMIT: %v", err))
	} else if cfg.CandleLimit < 50 || cfg.CandleLimit > 1500 {
		errs = append(errs, "CANDLE_LIMIT must be between 50 and 1500")
	}

	cfg.ConfidenceThreshold, err = getEnvAsFloatRequired("CONFIDENCE_THRESHOLD", 0.65)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONFIDENCE_THRESHOLD: %v", err))
	} else if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, "CONFIDENCE_THRESHOLD must be in (0, 1]")
	}

	cfg.BotsFile = getEnv("BOTS_FILE", "./bots.yaml")
	cfg.LearningWindow = getEnvAsInt("LEARNING_WINDOW", 50)
	if cfg.LearningWindow <= 0 {
		errs = append(errs, "LEARNING_WINDOW must be positive")
	}

	// Safety rules
	cfg.Safety.MaxPositionSizePct = getEnvAsFloat("SAFETY_MAX_POSITION_SIZE_PCT", 0.10)
	cfg.Safety.DailyLossLimitPct = getEnvAsFloat("SAFETY_DAILY_LOSS_LIMIT_PCT", 0.05)
	cfg.Safety.MaxConsecutiveLosses = getEnvAsInt("SAFETY_MAX_CONSECUTIVE_LOSSES", 3)
	cfg.Safety.MinAccountBalance = getEnvAsFloat("SAFETY_MIN_ACCOUNT_BALANCE", 100)
	cfg.Safety.MaxSlippagePct = getEnvAsFloat("SAFETY_MAX_SLIPPAGE_PCT", 0.005)
	cfg.Safety.MaxPortfolioHeat = getEnvAsFloat("SAFETY_MAX_PORTFOLIO_HEAT", 0.30)
	if err := validator.New().Struct(cfg.Safety); err != nil {
		errs = append(errs, fmt.Sprintf("invalid safety rules: %v", err))
	}

	// Risk
	cfg.RiskPerTrade, err = getEnvAsFloatRequired("RISK_PER_TRADE", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE: %v", err))
	} else if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1 {
		errs = append(errs, "RISK_PER_TRADE must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.MaxPositionSize, err = getEnvAsFloatRequired("RISK_MAX_POSITION_SIZE", 0.10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_MAX_POSITION_SIZE: %v", err))
	} else if cfg.MaxPositionSize <= 0 || cfg.MaxPositionSize > 1 {
		errs = append(errs, "RISK_MAX_POSITION_SIZE must be in (0, 1]")
	}

	cfg.MaxLeverage = getEnvAsFloat("RISK_MAX_LEVERAGE", 10)
	if cfg.MaxLeverage < 1 {
		errs = append(errs, "RISK_MAX_LEVERAGE must be at least 1")
	}

	cfg.RiskUpdateInterval, err = getEnvAsDurationRequired("RISK_UPDATE_INTERVAL", time.Hour)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_UPDATE_INTERVAL: %v", err))
	} else if cfg.RiskUpdateInterval <= 0 {
		errs = append(errs, "RISK_UPDATE_INTERVAL must be positive")
	}
	cfg.RiskReferenceSymbol = getEnv("RISK_REFERENCE_SYMBOL", "BTCUSDT")

	// Redis
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", "decision-engine")
	cfg.BotLockTTL, err = getEnvAsDurationRequired("BOT_LOCK_TTL", 15*time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BOT_LOCK_TTL: %v", err))
	} else if cfg.RedisAddr != "" && cfg.BotLockTTL <= cfg.CycleInterval {
		errs = append(errs, "BOT_LOCK_TTL must be longer than CYCLE_INTERVAL")
	}

	// Kafka
	cfg.KafkaBrokers = getEnvAsList("KAFKA_BROKERS")
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "decision-engine.events")

	// Admin
	cfg.AdminAddr = getEnv("ADMIN_ADDR", ":8080")
	cfg.AdminToken = getEnv("ADMIN_TOKEN", "")

	// Paper trading
	cfg.PaperStartingBalance, err = getEnvAsFloatRequired("PAPER_STARTING_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAPER_STARTING_BALANCE: %v", err))
	} else if cfg.PaperStartingBalance <= 0 {
		errs = append(errs, "PAPER_STARTING_BALANCE must be positive")
	}
	cfg.PaperCommissionRate = getEnvAsFloat("PAPER_COMMISSION_RATE", 0.001)
	if cfg.PaperCommissionRate < 0 || cfg.PaperCommissionRate >= 1 {
		errs = append(errs, "PAPER_COMMISSION_RATE must be in [0, 1)")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// BotDefaults returns the engine-wide settings applied to bots that leave them unset.
func (c *Config) BotDefaults() domain.BotConfig {
	return domain.BotConfig{
		Timeframe:           c.Timeframe,
		CandleLimit:         c.CandleLimit,
		ConfidenceThreshold: c.ConfidenceThreshold,
	}
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

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
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

func getEnvAsDurationRequired(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
