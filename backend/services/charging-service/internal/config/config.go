package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargex/backend/libs/config"
	"chargex/backend/services/charging-service/internal/payment"
)

// Payment modes.
const (
	PaymentModeLive      = "live"
	PaymentModeSimulated = "simulated"
)

// Config defines charging service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Payment   PaymentConfig   `yaml:"payment"`
	Charging  ChargingConfig  `yaml:"charging"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Watch     WatchConfig     `yaml:"watch"`
}

type HTTPConfig struct {
	Port string `yaml:"port" env:"CHARGING_HTTP_PORT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING"`
}

// PaymentConfig configures the quote/verify provider and the live settlement backend.
type PaymentConfig struct {
	Mode            string `yaml:"mode" env:"PAYMENT_MODE"`
	FallbackEnabled bool   `yaml:"fallbackEnabled" env:"ENABLE_FALLBACK_MODE"`
	SettlementURL   string `yaml:"settlementUrl" env:"SETTLEMENT_URL"`
	APIKey          string `yaml:"apiKey" env:"SETTLEMENT_API_KEY"`
	APISecret       string `yaml:"apiSecret" env:"SETTLEMENT_API_SECRET"`
	Network         string `yaml:"network" env:"PAYMENT_NETWORK"`
	ChainID         int64  `yaml:"chainId" env:"PAYMENT_CHAIN_ID"`
	Currency        string `yaml:"currency" env:"PAYMENT_CURRENCY"`
	TokenContract   string `yaml:"tokenContract" env:"PAYMENT_TOKEN_CONTRACT"`
	QuoteTTLSeconds int    `yaml:"quoteTtlSeconds" env:"PAYMENT_QUOTE_TTL_SECONDS"`
	TimeoutMillis   int    `yaml:"timeoutMillis" env:"PAYMENT_TIMEOUT_MS"`
	MaxAttempts     uint   `yaml:"maxAttempts" env:"PAYMENT_MAX_ATTEMPTS"`
}

// ChargingConfig configures the progress model.
type ChargingConfig struct {
	FullChargeDurationSeconds int     `yaml:"fullChargeDurationSeconds" env:"FULL_CHARGE_DURATION_SECONDS"`
	TickSeconds               int     `yaml:"tickSeconds" env:"CHARGING_TICK_SECONDS"`
	TickIntervalMillis        int     `yaml:"tickIntervalMillis" env:"CHARGING_TICK_INTERVAL_MS"`
	InitialCreditSeconds      int     `yaml:"initialCreditSeconds" env:"CHARGING_INITIAL_CREDIT_SECONDS"`
	DefaultRate               float64 `yaml:"defaultRate" env:"DEFAULT_RATE"`
	Currency                  string  `yaml:"currency" env:"CHARGING_CURRENCY"`
}

type CatalogConfig struct {
	Path string `yaml:"path" env:"CATALOG_PATH"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"CHARGING_POSTGRES_DSN"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"CHARGING_REDIS_ADDR"`
	Password string `yaml:"password" env:"CHARGING_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"CHARGING_REDIS_DB"`
	TTL      int    `yaml:"ttlSeconds" env:"CHARGING_REDIS_TTL"`
}

type AdvisorConfig struct {
	URL            string `yaml:"url" env:"ADVISOR_URL"`
	APIKey         string `yaml:"apiKey" env:"ADVISOR_API_KEY"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"ADVISOR_TIMEOUT_SECONDS"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

type WatchConfig struct {
	IntervalMillis int `yaml:"intervalMillis" env:"WATCH_INTERVAL_MS"`
}

// Default returns configuration with built-in defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: "8085"},
		Log:  LogConfig{Level: "info", Encoding: "json"},
		Payment: PaymentConfig{
			Mode:            PaymentModeSimulated,
			FallbackEnabled: true,
			Network:         "base-sepolia",
			ChainID:         84532,
			Currency:        "USDC",
			QuoteTTLSeconds: 3600,
			TimeoutMillis:   5000,
			MaxAttempts:     2,
		},
		Charging: ChargingConfig{
			FullChargeDurationSeconds: 10800,
			TickSeconds:               300,
			TickIntervalMillis:        1000,
			InitialCreditSeconds:      60,
			DefaultRate:               20,
			Currency:                  "INR",
		},
		Redis:     RedisConfig{TTL: 86400},
		Advisor:   AdvisorConfig{TimeoutSeconds: 10},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Watch:     WatchConfig{IntervalMillis: 1000},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges after loading.
func (c *Config) Validate() error {
	var errs []error
	mode := strings.ToLower(strings.TrimSpace(c.Payment.Mode))
	if mode != PaymentModeLive && mode != PaymentModeSimulated {
		errs = append(errs, fmt.Errorf("payment mode %q must be live or simulated", c.Payment.Mode))
	}
	c.Payment.Mode = mode
	if c.Payment.MaxAttempts < 1 || c.Payment.MaxAttempts > payment.MaxAttempts {
		errs = append(errs, fmt.Errorf("payment maxAttempts must be between 1 and %d", payment.MaxAttempts))
	}
	if c.Charging.FullChargeDurationSeconds <= 0 {
		errs = append(errs, errors.New("charging fullChargeDurationSeconds must be positive"))
	}
	if c.Charging.TickSeconds <= 0 {
		errs = append(errs, errors.New("charging tickSeconds must be positive"))
	}
	if c.Charging.TickIntervalMillis <= 0 {
		errs = append(errs, errors.New("charging tickIntervalMillis must be positive"))
	}
	if c.Charging.InitialCreditSeconds < 0 {
		errs = append(errs, errors.New("charging initialCreditSeconds must not be negative"))
	}
	if c.Charging.DefaultRate <= 0 {
		errs = append(errs, errors.New("charging defaultRate must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// EffectivePaymentMode returns the mode the provider will run in. Live mode without a
// settlement URL or credentials is forced to simulated; reason explains why.
func (c *Config) EffectivePaymentMode() (mode, reason string) {
	if c.Payment.Mode != PaymentModeLive {
		return PaymentModeSimulated, ""
	}
	switch {
	case strings.TrimSpace(c.Payment.SettlementURL) == "":
		return PaymentModeSimulated, "settlement url not configured"
	case strings.TrimSpace(c.Payment.APIKey) == "" || strings.TrimSpace(c.Payment.APISecret) == "":
		return PaymentModeSimulated, "settlement credentials not configured"
	}
	return PaymentModeLive, ""
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ActiveSessionTTL returns ttl as duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// QuoteTTL returns the quote lifetime.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Payment.QuoteTTLSeconds) * time.Second
}

// PaymentTimeout bounds a single settlement call.
func (c *Config) PaymentTimeout() time.Duration {
	return time.Duration(c.Payment.TimeoutMillis) * time.Millisecond
}

// TickInterval is the wall time per progress tick.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Charging.TickIntervalMillis) * time.Millisecond
}

// AdvisorTimeout bounds advice generator calls.
func (c *Config) AdvisorTimeout() time.Duration {
	if c.Advisor.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Advisor.TimeoutSeconds) * time.Second
}

// WatchInterval is how often the watch stream pushes status.
func (c *Config) WatchInterval() time.Duration {
	if c.Watch.IntervalMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.Watch.IntervalMillis) * time.Millisecond
}
