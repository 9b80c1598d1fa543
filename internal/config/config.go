// Package config loads the trader configuration from a YAML file merged
// with TRADER_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "trader"
)

// Load reads the configuration file and merges environment variables.
// When path is empty and the default file does not exist, defaults and
// environment variables alone apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	explicit := path != ""
	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.ws_url", "wss://api.mainnet-beta.solana.com")
	v.SetDefault("solana.timeout", "30s")
	// Empty defaults register the keys so AutomaticEnv can fill them.
	v.SetDefault("solana.private_key", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("marketdata.coinkarma_token", "")
	v.SetDefault("marketdata.coinkarma_device_id", "")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("database.clickhouse_dsn", "")

	v.SetDefault("jupiter.quote_url", "https://quote-api.jup.ag/v6/quote")
	v.SetDefault("jupiter.swap_url", "https://quote-api.jup.ag/v6/swap")
	v.SetDefault("jupiter.timeout", "15s")

	v.SetDefault("trading.max_trade_amount_sol", 0.1)
	v.SetDefault("trading.default_slippage_bps", 50)
	v.SetDefault("trading.max_daily_trades", 10)
	v.SetDefault("trading.max_hourly_trades", 3)
	v.SetDefault("trading.confirmation_timeout", "30s")
	v.SetDefault("trading.breaker_threshold_pct", 10.0)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")

	v.SetDefault("openai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openai.model", "anthropic/claude-sonnet-4")
	v.SetDefault("openai.timeout", "60s")

	v.SetDefault("marketdata.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("marketdata.coinkarma_url", "https://data.coinkarma.co")
	v.SetDefault("marketdata.coinkarma_enabled", false)
	v.SetDefault("marketdata.timeout", "10s")

	v.SetDefault("database.backend", "sqlite")
	v.SetDefault("database.sqlite_path", "data/trader.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9090")

	v.SetDefault("scheduler.collect_interval", "1m")
	v.SetDefault("scheduler.analyze_interval", "15m")
	v.SetDefault("scheduler.auto_execute", false)
	v.SetDefault("scheduler.dry_run", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
