package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the automation engine.
type Config struct {
	Port string

	// Scheduler
	TickInterval   time.Duration
	WorkerPoolSize int

	// Market session (venue-local)
	MarketTimezone string
	MarketOpen     string // "15:04"
	MarketClose    string // "15:04"

	// Collaborator selection
	DataSource string // "alpaca" or "synthetic"
	Broker     string // "alpaca" or "sim"

	// Alpaca
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaPaper     bool

	// External-call deadlines
	DataTimeout  time.Duration
	OrderTimeout time.Duration

	// Execution
	TradingEnabled bool // false forces dry-run on every strategy

	// Position reconciliation
	ReconcileInterval time.Duration // 0 runs the startup pass only
	ReconcileAutoSync bool

	// Strategy bootstrap
	StrategiesConfig string

	// Data cache
	BarCacheTTL time.Duration

	// Database
	DBPath string

	// Auth / secrets
	JWTSecret string
	MasterKey string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	// Database path: prefer DB_PATH, then DATABASE_PATH for backward compatibility.
	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", "./data/autotrader.db")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		TickInterval:      getEnvDuration("TICK_INTERVAL", 60*time.Second),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 5),
		MarketTimezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
		MarketOpen:        getEnv("MARKET_OPEN", "09:30"),
		MarketClose:       getEnv("MARKET_CLOSE", "16:00"),
		DataSource:        getEnv("DATA_SOURCE", "synthetic"),
		Broker:            getEnv("BROKER", "sim"),
		AlpacaAPIKey:      os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret:   os.Getenv("ALPACA_API_SECRET"),
		AlpacaPaper:       getEnv("ALPACA_PAPER", "true") == "true",
		DataTimeout:       getEnvDuration("DATA_TIMEOUT", 10*time.Second),
		OrderTimeout:      getEnvDuration("ORDER_TIMEOUT", 15*time.Second),
		TradingEnabled:    getEnv("TRADING_ENABLED", "false") == "true",
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 0),
		ReconcileAutoSync: getEnv("RECONCILE_AUTO_SYNC", "true") == "true",
		StrategiesConfig:  getEnv("STRATEGIES_CONFIG", "./strategies.yaml"),
		BarCacheTTL:       getEnvDuration("BAR_CACHE_TTL", 30*time.Second),
		DBPath:            dbPath,
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		MasterKey:         os.Getenv("MASTER_KEY"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
