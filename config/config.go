package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Chain source selection. The exchange exposes the same logical chain data
// through two endpoint shapes; which one feeds the normalizer is a
// configuration choice, not a separate client.
const (
	ChainSourceTicker       = "ticker"
	ChainSourceExchangeInfo = "exchange_info"
)

type Config struct {
	Optionflow OptionflowConfig `yaml:"optionflow"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Client     ClientConfig     `yaml:"client"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type OptionflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ExchangeConfig struct {
	OptionsAPIURL  string               `yaml:"options_api_url"`
	FuturesAPIURL  string               `yaml:"futures_api_url"`
	APIKey         string               `yaml:"api_key"`
	SecretKey      string               `yaml:"secret_key"`
	BaseAsset      string               `yaml:"base_asset"`
	QuoteAsset     string               `yaml:"quote_asset"`
	ChainSource    string               `yaml:"chain_source"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// ReferenceSymbol is the futures ticker symbol of the underlying, e.g.
// BTCUSDT for BTC options.
func (e ExchangeConfig) ReferenceSymbol() string {
	return e.BaseAsset + e.QuoteAsset
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ClientConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	Retry          RetryConfig   `yaml:"retry"`
	RefreshWorkers int           `yaml:"refresh_workers"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type StrategyConfig struct {
	StrikeDistance int    `yaml:"strike_distance"`
	OrderBookDepth int    `yaml:"order_book_depth"`
	Quantity       string `yaml:"quantity"`
	PlaceOrders    bool   `yaml:"place_orders"`
}

type MetricsConfig struct {
	UsedWeight  bool `yaml:"used_weight"`
	SystemUsage bool `yaml:"system_usage"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			UsedWeight:  true,
			SystemUsage: true,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials come from the environment when present; the yaml values
	// are a development convenience only.
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		config.Exchange.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		config.Exchange.SecretKey = strings.TrimSpace(v)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Exchange.BaseAsset == "" {
		cfg.Exchange.BaseAsset = "BTC"
	}
	if cfg.Exchange.QuoteAsset == "" {
		cfg.Exchange.QuoteAsset = "USDT"
	}
	if cfg.Exchange.ChainSource == "" {
		cfg.Exchange.ChainSource = ChainSourceTicker
	}
	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = 30 * time.Second
	}
	if cfg.Client.RefreshWorkers <= 0 {
		cfg.Client.RefreshWorkers = 1
	}
	if cfg.Strategy.OrderBookDepth <= 0 {
		cfg.Strategy.OrderBookDepth = 10
	}
	if cfg.Exchange.ConnectionPool.MaxIdleConns <= 0 {
		cfg.Exchange.ConnectionPool.MaxIdleConns = 10
	}
	if cfg.Exchange.ConnectionPool.MaxConnsPerHost <= 0 {
		cfg.Exchange.ConnectionPool.MaxConnsPerHost = 10
	}
	if cfg.Exchange.ConnectionPool.IdleConnTimeout <= 0 {
		cfg.Exchange.ConnectionPool.IdleConnTimeout = 90 * time.Second
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Optionflow.Name == "" {
		return fmt.Errorf("optionflow.name is required")
	}
	if cfg.Optionflow.Version == "" {
		return fmt.Errorf("optionflow.version is required")
	}

	if cfg.Exchange.OptionsAPIURL == "" {
		return fmt.Errorf("exchange.options_api_url is required")
	}
	if cfg.Exchange.FuturesAPIURL == "" {
		return fmt.Errorf("exchange.futures_api_url is required")
	}
	switch cfg.Exchange.ChainSource {
	case ChainSourceTicker, ChainSourceExchangeInfo:
	default:
		return fmt.Errorf("exchange.chain_source '%s' is invalid (must be %s or %s)",
			cfg.Exchange.ChainSource, ChainSourceTicker, ChainSourceExchangeInfo)
	}

	if cfg.Strategy.StrikeDistance <= 0 {
		return fmt.Errorf("strategy.strike_distance must be greater than 0")
	}

	if cfg.Strategy.PlaceOrders {
		if cfg.Exchange.APIKey == "" || cfg.Exchange.SecretKey == "" {
			return fmt.Errorf("exchange.api_key and exchange.secret_key are required when strategy.place_orders is enabled")
		}
		if cfg.Strategy.Quantity == "" {
			return fmt.Errorf("strategy.quantity is required when strategy.place_orders is enabled")
		}
	}

	return nil
}
