package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config aggregates every setting the trader needs.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Solana     SolanaConfig     `mapstructure:"solana"`
	Jupiter    JupiterConfig    `mapstructure:"jupiter"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Retry      RetryConfig      `mapstructure:"retry"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// AppConfig controls application-level parameters.
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// SolanaConfig describes the chain connection and the trading keypair.
// The private key should come from the environment (TRADER_SOLANA_PRIVATE_KEY),
// never from a checked-in file.
type SolanaConfig struct {
	RPCURL     string        `mapstructure:"rpc_url"`
	WSURL      string        `mapstructure:"ws_url"`
	PrivateKey string        `mapstructure:"private_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// JupiterConfig describes the swap aggregator endpoints.
type JupiterConfig struct {
	QuoteURL string        `mapstructure:"quote_url"`
	SwapURL  string        `mapstructure:"swap_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TradingConfig carries the risk limits and execution parameters.
type TradingConfig struct {
	MaxTradeAmountSOL   float64       `mapstructure:"max_trade_amount_sol"`
	DefaultSlippageBps  int           `mapstructure:"default_slippage_bps"`
	MaxDailyTrades      int           `mapstructure:"max_daily_trades"`
	MaxHourlyTrades     int           `mapstructure:"max_hourly_trades"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	BreakerThresholdPct float64       `mapstructure:"breaker_threshold_pct"`
}

// RetryConfig controls the backoff retrier wrapping all network calls.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
}

// OpenAIConfig describes the LLM analyzer. Any OpenAI-compatible endpoint
// works; OpenRouter is the default.
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MarketDataConfig controls the market data collector.
type MarketDataConfig struct {
	CoinGeckoURL      string        `mapstructure:"coingecko_url"`
	CoinKarmaURL      string        `mapstructure:"coinkarma_url"`
	CoinKarmaToken    string        `mapstructure:"coinkarma_token"`
	CoinKarmaDeviceID string        `mapstructure:"coinkarma_device_id"`
	CoinKarmaEnabled  bool          `mapstructure:"coinkarma_enabled"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Backend       string `mapstructure:"backend"` // sqlite, postgres, memory
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"` // optional snapshot timeseries
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// SchedulerConfig controls the daemon's loop cadence.
type SchedulerConfig struct {
	CollectInterval time.Duration `mapstructure:"collect_interval"`
	AnalyzeInterval time.Duration `mapstructure:"analyze_interval"`
	AutoExecute     bool          `mapstructure:"auto_execute"`
	DryRun          bool          `mapstructure:"dry_run"`
}

// Validate performs basic sanity checks.
func (c *Config) Validate() error {
	var err error

	if c.Solana.RPCURL == "" {
		err = multierr.Append(err, errors.New("solana.rpc_url must not be empty"))
	}
	if c.Trading.MaxTradeAmountSOL <= 0 {
		err = multierr.Append(err, errors.New("trading.max_trade_amount_sol must be positive"))
	}
	if c.Trading.DefaultSlippageBps < 0 || c.Trading.DefaultSlippageBps > 10000 {
		err = multierr.Append(err, fmt.Errorf("trading.default_slippage_bps %d out of range [0, 10000]", c.Trading.DefaultSlippageBps))
	}
	if c.Trading.MaxDailyTrades <= 0 {
		err = multierr.Append(err, errors.New("trading.max_daily_trades must be positive"))
	}
	if c.Trading.MaxHourlyTrades <= 0 {
		err = multierr.Append(err, errors.New("trading.max_hourly_trades must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		err = multierr.Append(err, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BackoffFactor <= 1 {
		err = multierr.Append(err, errors.New("retry.backoff_factor must be greater than 1"))
	}
	switch c.Database.Backend {
	case "sqlite", "postgres", "memory":
	default:
		err = multierr.Append(err, fmt.Errorf("database.backend %q not one of sqlite, postgres, memory", c.Database.Backend))
	}
	if c.Database.Backend == "postgres" && c.Database.PostgresDSN == "" {
		err = multierr.Append(err, errors.New("database.postgres_dsn required for postgres backend"))
	}

	return err
}
