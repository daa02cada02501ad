package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds worker and cart configuration loaded from the environment.
type Config struct {
	AppEnv      string
	DatabaseURL string
	RedisURL    string

	ReservationBackend     string
	ReservationTTL         time.Duration
	ReservationRedisPrefix string
	LockTTL                time.Duration
	LockRetryBackoff       time.Duration
	PurgeInterval          time.Duration

	Pricing Pricing

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsAddr      string
	TracingEnabled   bool
	OTLPEndpoint     string
}

// Pricing holds the cart pricing defaults.
type Pricing struct {
	Decimals       int32
	DefaultTaxRate decimal.Decimal
}

// LoadPricing reads only the PRICING_* keys, for tools that price carts
// without touching storage.
func LoadPricing() (Pricing, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("PRICING_", ".", func(s string) string { return s }), nil); err != nil {
		return Pricing{}, fmt.Errorf("load env: %w", err)
	}
	return parsePricing(k)
}

func parsePricing(k *koanf.Koanf) (Pricing, error) {
	decimals, err := strconv.Atoi(valueOrDefault(k.String("PRICING_DECIMALS"), "2"))
	if err != nil || decimals < 0 {
		return Pricing{}, errors.New("PRICING_DECIMALS must be a non-negative integer")
	}
	rate, err := decimal.NewFromString(valueOrDefault(k.String("PRICING_DEFAULT_TAX_RATE"), "0"))
	if err != nil || rate.IsNegative() {
		return Pricing{}, errors.New("PRICING_DEFAULT_TAX_RATE must be a non-negative number")
	}
	return Pricing{Decimals: int32(decimals), DefaultTaxRate: rate}, nil
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                 valueOrDefault(k.String("APP_ENV"), "development"),
		DatabaseURL:            k.String("DATABASE_URL"),
		RedisURL:               k.String("REDIS_URL"),
		ReservationBackend:     strings.ToLower(strings.TrimSpace(k.String("RESERVATION_BACKEND"))),
		ReservationTTL:         parseDuration(k.String("RESERVATION_TTL"), "15m"),
		ReservationRedisPrefix: valueOrDefault(k.String("RESERVATION_REDIS_PREFIX"), "cart:condition:reservation:"),
		LockTTL:                parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff:       parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		PurgeInterval:          parseDuration(k.String("PURGE_INTERVAL"), "5m"),
		LogFormat:              valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:               valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:       valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko_cart"),
		MetricsAddr:            strings.TrimSpace(k.String("OBS_METRICS_ADDR")),
		TracingEnabled:         parseBool(k.String("OBS_ENABLE_TRACING")),
		OTLPEndpoint:           strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
	}

	pricing, err := parsePricing(k)
	if err != nil {
		return nil, err
	}
	cfg.Pricing = pricing

	switch cfg.ReservationBackend {
	case "", "redis", "postgres":
	default:
		return nil, fmt.Errorf("RESERVATION_BACKEND %q is not supported", cfg.ReservationBackend)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" && cfg.ReservationBackend != "postgres" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
