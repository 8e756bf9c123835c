// Package config defines all configuration for the stockx inventory SDK.
// Config is loaded from a YAML file (default: config.yaml) with sensitive
// fields overridable via STOCKX_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Auth      AuthConfig      `mapstructure:"auth"`
	API       APIConfig       `mapstructure:"api"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AuthConfig holds OAuth refresh-token-grant credentials used to obtain
// short-lived bearer tokens. RefreshToken and ClientSecret are expected to be
// supplied via environment variables, never committed to a YAML file.
type AuthConfig struct {
	ClientID        string        `mapstructure:"client_id" validate:"required"`
	ClientSecret    string        `mapstructure:"client_secret" validate:"required"`
	RefreshToken    string        `mapstructure:"refresh_token" validate:"required"`
	Audience        string        `mapstructure:"audience"`
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	TokenURL        string        `mapstructure:"token_url" validate:"required,url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// APIConfig holds the marketplace API base URL and per-request timeout.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ThrottleConfig sets the minimum spacing between consecutive outbound requests.
type ThrottleConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval" validate:"gt=0"`
}

// RetryConfig tunes the exponential-backoff-with-jitter retry policy.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gt=0"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// CacheConfig sets the default size cap and TTL for memoized catalog/market lookups.
type CacheConfig struct {
	MaxSize        int           `mapstructure:"max_size"`
	ProductTTL     time.Duration `mapstructure:"product_ttl"`
	MarketDataTTL  time.Duration `mapstructure:"market_data_ttl"`
}

// BatchConfig bounds batch submission size and the await-completion poll budget.
type BatchConfig struct {
	MaxItemsPerBatch int           `mapstructure:"max_items_per_batch" validate:"gt=0,lte=500"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
	InitialPollSleep time.Duration `mapstructure:"initial_poll_sleep"`
}

// InventoryConfig carries the economic parameters used to compute payouts.
// ShippingFee and MinTransactionFee are account-level constants threaded
// straight into inventory.New; TransactionFeeRate/PaymentFeeRate are
// placeholders only — the live rates are always discovered via
// Inventory.LoadFees's mock-listing probe, never read from this config
// (mirroring the source SDK, whose minimum_transaction_fee/shipping_fee are
// constructor defaults that load_fees() never touches).
type InventoryConfig struct {
	CurrencyCode         string  `mapstructure:"currency_code"`
	TransactionFeeRate   float64 `mapstructure:"transaction_fee_rate"`
	PaymentFeeRate       float64 `mapstructure:"payment_fee_rate"`
	ShippingFee          float64 `mapstructure:"shipping_fee"`
	MinTransactionFee    float64 `mapstructure:"min_transaction_fee"`
	MockListingProductID string  `mapstructure:"mock_listing_product_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: STOCKX_CLIENT_ID, STOCKX_CLIENT_SECRET,
// STOCKX_REFRESH_TOKEN, STOCKX_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("STOCKX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if v := os.Getenv("STOCKX_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("STOCKX_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}
	if v := os.Getenv("STOCKX_REFRESH_TOKEN"); v != "" {
		cfg.Auth.RefreshToken = v
	}
	if v := os.Getenv("STOCKX_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero-valued tunables with sensible operational defaults
// so a minimal YAML file (just credentials) is still usable.
func (c *Config) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.Auth.RefreshInterval == 0 {
		c.Auth.RefreshInterval = time.Hour
	}
	if c.Throttle.MinInterval == 0 {
		c.Throttle.MinInterval = 2 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 500 * time.Millisecond
	}
	if c.Retry.Timeout == 0 {
		c.Retry.Timeout = 30 * time.Second
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 512
	}
	if c.Cache.MarketDataTTL == 0 {
		c.Cache.MarketDataTTL = 30 * time.Second
	}
	if c.Batch.MaxItemsPerBatch == 0 {
		c.Batch.MaxItemsPerBatch = 100
	}
	if c.Batch.PollTimeout == 0 {
		c.Batch.PollTimeout = 2 * time.Minute
	}
	if c.Batch.InitialPollSleep == 0 {
		c.Batch.InitialPollSleep = time.Second
	}
	if c.Inventory.CurrencyCode == "" {
		c.Inventory.CurrencyCode = "USD"
	}
	if c.Inventory.ShippingFee == 0 {
		c.Inventory.ShippingFee = 7
	}
	if c.Inventory.MinTransactionFee == 0 {
		c.Inventory.MinTransactionFee = 5
	}
}

var validate = validator.New()

// Validate checks all required fields and value ranges via struct tags,
// translating the first failing field into an actionable message (env vars
// are named explicitly for the credential fields, since those never come
// from the YAML file itself).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok || len(ve) == 0 {
			return err
		}
		fe := ve[0]
		if hint, ok := credentialEnvHints[fe.StructNamespace()]; ok {
			return fmt.Errorf("%s is required (set %s)", fe.Namespace(), hint)
		}
		return fmt.Errorf("%s failed validation: %s", fe.Namespace(), fe.Tag())
	}
	return nil
}

// credentialEnvHints maps struct-namespace paths for fields the caller is
// expected to supply via environment variable, not the YAML file, to the
// variable name to surface in the error.
var credentialEnvHints = map[string]string{
	"Config.Auth.ClientID":     "STOCKX_CLIENT_ID",
	"Config.Auth.ClientSecret": "STOCKX_CLIENT_SECRET",
	"Config.Auth.RefreshToken": "STOCKX_REFRESH_TOKEN",
	"Config.Auth.APIKey":       "STOCKX_API_KEY",
}

// parseLogLevel maps the config's textual log level to a slog.Level,
// defaulting to Info for anything unrecognized.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a *slog.Logger from the logging config: JSON handler when
// Format is "json", text handler otherwise, writing to stdout.
func (c LoggingConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.Level)}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
