// Package config defines all configuration for the indexer.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// every field except logging.format overridable by the flat environment
// variables named in the service's external-interface contract
// (DATABASE_URL, POLYGON_RPC_URL, ...).
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	ConnPoolSize int           `mapstructure:"connection_pool_size"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// ChainConfig addresses the EVM RPC endpoint and the two contracts indexed.
type ChainConfig struct {
	RPCURL            string `mapstructure:"rpc_url"`
	ConditionalTokens string `mapstructure:"conditional_tokens_address"`
	CTFExchange       string `mapstructure:"ctf_exchange_address"`
	NegRiskAdapter    string `mapstructure:"neg_risk_adapter_address"`
	StartBlock        uint64 `mapstructure:"start_block"`
	BatchSize         int    `mapstructure:"batch_size"`
	MaxRetryAttempts  int    `mapstructure:"max_retry_attempts"`
}

// IndexerConfig controls the scheduler cadence.
type IndexerConfig struct {
	IntervalMinutes  int  `mapstructure:"interval_minutes"`
	TriggerImmediate bool `mapstructure:"trigger_immediate"`
}

// EnrichmentConfig addresses the off-chain market-metadata catalog.
type EnrichmentConfig struct {
	PolymarketAPIURL string `mapstructure:"polymarket_api_url"`
}

// RetentionConfig bounds how long time-series and archival rows are kept.
type RetentionConfig struct {
	PriceHistoryDays int `mapstructure:"price_history_retention_days"`
	EventLogDays     int `mapstructure:"event_log_retention_days"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Load reads config from a YAML file with flat environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine — every field can come from env + defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.start_block", 50_000_000)
	v.SetDefault("chain.batch_size", 100)
	v.SetDefault("chain.max_retry_attempts", 3)
	v.SetDefault("database.connection_pool_size", 20)
	v.SetDefault("database.query_timeout", 60*time.Second)
	v.SetDefault("indexer.interval_minutes", 5)
	v.SetDefault("indexer.trigger_immediate", false)
	v.SetDefault("retention.price_history_retention_days", 90)
	v.SetDefault("retention.event_log_retention_days", 30)
	v.SetDefault("enrichment.polymarket_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnv maps the flat environment variable names from the external
// interface contract onto the nested config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.connection_pool_size", "CONNECTION_POOL_SIZE")
	_ = v.BindEnv("database.query_timeout", "QUERY_TIMEOUT")
	_ = v.BindEnv("chain.rpc_url", "POLYGON_RPC_URL")
	_ = v.BindEnv("chain.start_block", "START_BLOCK")
	_ = v.BindEnv("chain.batch_size", "BATCH_SIZE")
	_ = v.BindEnv("chain.conditional_tokens_address", "CONDITIONAL_TOKENS_ADDRESS")
	_ = v.BindEnv("chain.ctf_exchange_address", "CTF_EXCHANGE_ADDRESS")
	_ = v.BindEnv("chain.neg_risk_adapter_address", "NEG_RISK_ADAPTER_ADDRESS")
	_ = v.BindEnv("chain.max_retry_attempts", "MAX_RETRY_ATTEMPTS")
	_ = v.BindEnv("indexer.interval_minutes", "INDEXER_INTERVAL_MINUTES")
	_ = v.BindEnv("indexer.trigger_immediate", "TRIGGER_IMMEDIATE")
	_ = v.BindEnv("retention.price_history_retention_days", "PRICE_HISTORY_RETENTION_DAYS")
	_ = v.BindEnv("retention.event_log_retention_days", "EVENT_LOG_RETENTION_DAYS")
	_ = v.BindEnv("enrichment.polymarket_api_url", "POLYMARKET_API_URL")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set DATABASE_URL)")
	}
	if _, err := url.Parse(c.Database.URL); err != nil {
		return fmt.Errorf("database.url is not a valid URL: %w", err)
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required (set POLYGON_RPC_URL)")
	}
	if _, err := url.Parse(c.Chain.RPCURL); err != nil {
		return fmt.Errorf("chain.rpc_url is not a valid URL: %w", err)
	}
	if err := validateAddress("chain.conditional_tokens_address", c.Chain.ConditionalTokens); err != nil {
		return err
	}
	if err := validateAddress("chain.ctf_exchange_address", c.Chain.CTFExchange); err != nil {
		return err
	}
	if c.Chain.NegRiskAdapter != "" {
		if err := validateAddress("chain.neg_risk_adapter_address", c.Chain.NegRiskAdapter); err != nil {
			return err
		}
	}
	if c.Chain.BatchSize < 1 || c.Chain.BatchSize > 10_000 {
		return fmt.Errorf("chain.batch_size must be in [1, 10000], got %d", c.Chain.BatchSize)
	}
	if c.Chain.MaxRetryAttempts < 1 {
		return fmt.Errorf("chain.max_retry_attempts must be >= 1")
	}
	if c.Indexer.IntervalMinutes < 1 || c.Indexer.IntervalMinutes > 60 {
		return fmt.Errorf("indexer.interval_minutes must be in [1, 60], got %d", c.Indexer.IntervalMinutes)
	}
	if c.Database.ConnPoolSize < 1 {
		return fmt.Errorf("database.connection_pool_size must be >= 1")
	}
	if c.Enrichment.PolymarketAPIURL == "" {
		return fmt.Errorf("enrichment.polymarket_api_url is required")
	}
	if c.Retention.PriceHistoryDays < 1 {
		return fmt.Errorf("retention.price_history_retention_days must be >= 1")
	}
	if c.Retention.EventLogDays < 1 {
		return fmt.Errorf("retention.event_log_retention_days must be >= 1")
	}
	return nil
}

func validateAddress(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !hexAddressRe.MatchString(addr) {
		return fmt.Errorf("%s must be a 42-char hex address, got %q", field, addr)
	}
	return nil
}
