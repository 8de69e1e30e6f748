package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Trading  TradingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RedisConfig holds the price-cache configuration
type RedisConfig struct {
	Addr     string
	PriceTTL time.Duration
}

// TradingConfig holds the risk limits, market-hours schedule, and polling
// cadences of the trading engine.
type TradingConfig struct {
	InitialCapital      decimal.Decimal
	MaxCapitalPerTrade  decimal.Decimal // fraction of capital risked per trade
	MaxActiveTrades     int
	MaxDailyLosses      int
	MaxDailyDrawdown    decimal.Decimal // fraction of start-of-day capital
	MinRiskReward       decimal.Decimal
	ConfidenceThreshold decimal.Decimal

	MarketOpen    TimeOfDay
	MarketClose   TimeOfDay
	ForceExitTime TimeOfDay
	// NoEntryCutoff is deliberately separate from ForceExitTime: entries stop
	// at 15:00 while open positions are carried until the 15:10 force exit.
	NoEntryCutoff   TimeOfDay
	NearCloseWindow time.Duration

	ActivePollInterval   time.Duration
	InactivePollInterval time.Duration
	TickInterval         time.Duration
	OffHoursInterval     time.Duration
	SymbolDelay          time.Duration

	MaxHoldingTime time.Duration
	ExitRetryLimit int
	ScreeningLimit int
}

// TimeOfDay is a wall-clock time within a trading day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On anchors the time of day to the calendar date of ref.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

// Minutes returns the time of day as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "intradaytrader"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC", "trade-events"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			PriceTTL: getEnvSeconds("REDIS_PRICE_TTL_SECONDS", 5),
		},
	}

	var err error
	cfg.Trading, err = loadTrading()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTrading() (TradingConfig, error) {
	t := TradingConfig{
		MaxActiveTrades: getEnvInt("MAX_ACTIVE_TRADES", 2),
		MaxDailyLosses:  getEnvInt("MAX_DAILY_LOSSES", 3),
		ExitRetryLimit:  getEnvInt("EXIT_RETRY_LIMIT", 5),
		ScreeningLimit:  getEnvInt("SCREENING_LIMIT", 10),

		NearCloseWindow:      getEnvSeconds("NEAR_CLOSE_WINDOW_SECONDS", 600),
		ActivePollInterval:   getEnvSeconds("ACTIVE_POLL_INTERVAL", 60),
		InactivePollInterval: getEnvSeconds("INACTIVE_POLL_INTERVAL", 600),
		TickInterval:         getEnvSeconds("TICK_INTERVAL", 30),
		OffHoursInterval:     getEnvSeconds("OFF_HOURS_INTERVAL", 60),
		SymbolDelay:          getEnvMillis("SYMBOL_DELAY_MS", 200),
		MaxHoldingTime:       getEnvSeconds("MAX_HOLDING_TIME_SECONDS", 14400),
	}

	var err error
	if t.InitialCapital, err = getEnvDecimal("INITIAL_CAPITAL", "100000"); err != nil {
		return t, err
	}
	if t.MaxCapitalPerTrade, err = getEnvDecimal("MAX_CAPITAL_PER_TRADE", "0.01"); err != nil {
		return t, err
	}
	if t.MaxDailyDrawdown, err = getEnvDecimal("MAX_DAILY_DRAWDOWN", "0.05"); err != nil {
		return t, err
	}
	if t.MinRiskReward, err = getEnvDecimal("MIN_RISK_REWARD_RATIO", "1.5"); err != nil {
		return t, err
	}
	if t.ConfidenceThreshold, err = getEnvDecimal("AI_CONFIDENCE_THRESHOLD", "0.8"); err != nil {
		return t, err
	}

	if t.MarketOpen, err = getEnvTime("MARKET_OPEN", "09:15"); err != nil {
		return t, err
	}
	if t.MarketClose, err = getEnvTime("MARKET_CLOSE", "15:30"); err != nil {
		return t, err
	}
	if t.ForceExitTime, err = getEnvTime("FORCE_EXIT_TIME", "15:10"); err != nil {
		return t, err
	}
	if t.NoEntryCutoff, err = getEnvTime("NO_ENTRY_CUTOFF", "15:00"); err != nil {
		return t, err
	}

	return t, nil
}

// Validate checks the trading parameters. A validation failure is the only
// fatal error class; everything downstream assumes a valid config.
func (t *TradingConfig) Validate() error {
	if !t.InitialCapital.IsPositive() {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %s", t.InitialCapital)
	}
	if !t.MaxCapitalPerTrade.IsPositive() || t.MaxCapitalPerTrade.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MAX_CAPITAL_PER_TRADE must be in (0, 1], got %s", t.MaxCapitalPerTrade)
	}
	if t.MaxActiveTrades <= 0 {
		return fmt.Errorf("MAX_ACTIVE_TRADES must be positive, got %d", t.MaxActiveTrades)
	}
	if t.MaxDailyLosses <= 0 {
		return fmt.Errorf("MAX_DAILY_LOSSES must be positive, got %d", t.MaxDailyLosses)
	}
	if !t.MaxDailyDrawdown.IsPositive() || t.MaxDailyDrawdown.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MAX_DAILY_DRAWDOWN must be in (0, 1], got %s", t.MaxDailyDrawdown)
	}
	if !t.MinRiskReward.IsPositive() {
		return fmt.Errorf("MIN_RISK_REWARD_RATIO must be positive, got %s", t.MinRiskReward)
	}
	if t.MarketOpen.Minutes() >= t.MarketClose.Minutes() {
		return fmt.Errorf("MARKET_OPEN %s must be before MARKET_CLOSE %s", t.MarketOpen, t.MarketClose)
	}
	if t.ForceExitTime.Minutes() <= t.MarketOpen.Minutes() || t.ForceExitTime.Minutes() > t.MarketClose.Minutes() {
		return fmt.Errorf("FORCE_EXIT_TIME %s must fall inside market hours %s-%s",
			t.ForceExitTime, t.MarketOpen, t.MarketClose)
	}
	if t.ActivePollInterval <= 0 || t.InactivePollInterval <= 0 || t.TickInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if t.MaxHoldingTime <= 0 {
		return fmt.Errorf("MAX_HOLDING_TIME_SECONDS must be positive")
	}
	if t.ExitRetryLimit <= 0 {
		return fmt.Errorf("EXIT_RETRY_LIMIT must be positive, got %d", t.ExitRetryLimit)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func getEnvMillis(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMillis)) * time.Millisecond
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getEnvTime(key, defaultValue string) (TimeOfDay, error) {
	value := getEnv(key, defaultValue)
	t, err := ParseTimeOfDay(value)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}
