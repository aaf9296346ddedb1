package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Connector   ConnectorConfig  `mapstructure:"connector"`
	Trading     TradingConfig    `mapstructure:"trading"`
	Risk        RiskConfig       `mapstructure:"risk"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ConnectorConfig points at the exchange connectivity sidecar.
type ConnectorConfig struct {
	ServiceURL string        `mapstructure:"service_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TradingConfig holds the scan and scoring parameters.
type TradingConfig struct {
	Venue                    string        `mapstructure:"venue"`
	BaseCurrencies           []string      `mapstructure:"base_currencies"`
	MinProfitThreshold       float64       `mapstructure:"min_profit_threshold"`
	MaxPositionSize          float64       `mapstructure:"max_position_size"`
	SlippageTolerance        float64       `mapstructure:"slippage_tolerance"`
	DefaultTakerFee          float64       `mapstructure:"default_taker_fee"`
	ScanInterval             time.Duration `mapstructure:"scan_interval"`
	CacheTTL                 time.Duration `mapstructure:"cache_ttl"`
	FreshnessWindow          time.Duration `mapstructure:"freshness_window"`
	LowLiquidityThreshold    float64       `mapstructure:"low_liquidity_threshold"`
	MediumLiquidityThreshold float64       `mapstructure:"medium_liquidity_threshold"`
}

// RiskConfig holds the capital-protection parameters.
type RiskConfig struct {
	PaperTrading     bool `mapstructure:"paper_trading"`
	MaxTradesPerHour int  `mapstructure:"max_trades_per_hour"`
}

// ResilienceConfig tunes the gateway's rate limiter, circuit breaker and
// retry policy.
type ResilienceConfig struct {
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	RateLimitMaxWait   time.Duration `mapstructure:"rate_limit_max_wait"`
	FailureThreshold   int           `mapstructure:"failure_threshold"`
	RecoveryTimeout    time.Duration `mapstructure:"recovery_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	InitialRetryDelay  time.Duration `mapstructure:"initial_retry_delay"`
	BackoffFactor      float64       `mapstructure:"backoff_factor"`
	MaxRetryDelay      time.Duration `mapstructure:"max_retry_delay"`
}

type TelegramConfig struct {
	BotToken         string  `mapstructure:"bot_token"`
	ChatID           int64   `mapstructure:"chat_id"`
	MaxAlertsPerHour int     `mapstructure:"max_alerts_per_hour"`
	MinProfitAlert   float64 `mapstructure:"min_profit_alert"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Trading.Venue == "" {
		return fmt.Errorf("trading.venue is required")
	}
	if len(c.Trading.BaseCurrencies) == 0 {
		return fmt.Errorf("trading.base_currencies must not be empty")
	}
	if c.Trading.MinProfitThreshold < 0 {
		return fmt.Errorf("trading.min_profit_threshold must be >= 0, got %f", c.Trading.MinProfitThreshold)
	}
	if c.Trading.MaxPositionSize <= 0 {
		return fmt.Errorf("trading.max_position_size must be > 0, got %f", c.Trading.MaxPositionSize)
	}
	if c.Trading.DefaultTakerFee < 0 || c.Trading.DefaultTakerFee > 0.05 {
		return fmt.Errorf("trading.default_taker_fee must be in [0, 0.05], got %f", c.Trading.DefaultTakerFee)
	}
	if c.Trading.ScanInterval <= 0 {
		return fmt.Errorf("trading.scan_interval must be > 0")
	}
	if c.Trading.CacheTTL <= 0 {
		return fmt.Errorf("trading.cache_ttl must be > 0")
	}
	if c.Risk.MaxTradesPerHour <= 0 {
		return fmt.Errorf("risk.max_trades_per_hour must be > 0, got %d", c.Risk.MaxTradesPerHour)
	}
	if c.Resilience.RateLimitPerSecond <= 0 {
		return fmt.Errorf("resilience.rate_limit_per_second must be > 0")
	}
	if c.Resilience.FailureThreshold <= 0 {
		return fmt.Errorf("resilience.failure_threshold must be > 0")
	}
	if c.Resilience.BackoffFactor < 1 {
		return fmt.Errorf("resilience.backoff_factor must be >= 1, got %f", c.Resilience.BackoffFactor)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "arbihedron")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("connector.service_url", "http://localhost:3001")
	viper.SetDefault("connector.timeout", "10s")

	viper.SetDefault("trading.venue", "kraken")
	viper.SetDefault("trading.base_currencies", []string{"BTC", "ETH", "USDT", "USDC"})
	viper.SetDefault("trading.min_profit_threshold", 0.5)
	viper.SetDefault("trading.max_position_size", 1000.0)
	viper.SetDefault("trading.slippage_tolerance", 0.1)
	viper.SetDefault("trading.default_taker_fee", 0.001)
	viper.SetDefault("trading.scan_interval", "10s")
	viper.SetDefault("trading.cache_ttl", "2s")
	viper.SetDefault("trading.freshness_window", "2s")
	viper.SetDefault("trading.low_liquidity_threshold", 10000.0)
	viper.SetDefault("trading.medium_liquidity_threshold", 50000.0)

	viper.SetDefault("risk.paper_trading", true)
	viper.SetDefault("risk.max_trades_per_hour", 100)

	viper.SetDefault("resilience.rate_limit_per_second", 10.0)
	viper.SetDefault("resilience.rate_limit_burst", 20)
	viper.SetDefault("resilience.rate_limit_max_wait", "2s")
	viper.SetDefault("resilience.failure_threshold", 5)
	viper.SetDefault("resilience.recovery_timeout", "60s")
	viper.SetDefault("resilience.max_retries", 3)
	viper.SetDefault("resilience.initial_retry_delay", "500ms")
	viper.SetDefault("resilience.backoff_factor", 2.0)
	viper.SetDefault("resilience.max_retry_delay", "10s")

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)
	viper.SetDefault("telegram.max_alerts_per_hour", 10)
	viper.SetDefault("telegram.min_profit_alert", 0.5)
}
