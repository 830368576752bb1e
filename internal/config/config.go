package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	CORSAllowedOrigins []string

	// Cashback is the explicit pricing setting passed into every cascade
	// call; nothing in the engine reads it ambiently.
	CashbackEnabled      bool
	CashbackPercent      decimal.Decimal
	CashbackApplyToItems bool

	CatalogCacheTTL   time.Duration
	PortfolioCacheTTL time.Duration

	RateLimitPeriod   time.Duration
	RateLimitRequests int64

	WorkerConcurrency    int
	PortfolioRefreshCron string

	OTLPEndpoint string
	LogFormat    string
	LogLevel     string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:               valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                 valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:          k.String("DATABASE_URL"),
		RedisURL:             k.String("REDIS_URL"),
		CORSAllowedOrigins:   splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CashbackEnabled:      parseBool(k.String("CASHBACK_ENABLED")),
		CashbackPercent:      parseDecimal(k.String("CASHBACK_PERCENT"), "0"),
		CashbackApplyToItems: parseBool(k.String("CASHBACK_APPLY_TO_ITEMS")),
		CatalogCacheTTL:      parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		PortfolioCacheTTL:    parseDuration(k.String("PORTFOLIO_CACHE_TTL"), "10m"),
		RateLimitPeriod:      parseDuration(k.String("RATE_LIMIT_PERIOD"), "1m"),
		RateLimitRequests:    int64(k.Int("RATE_LIMIT_REQUESTS")),
		WorkerConcurrency:    k.Int("WORKER_CONCURRENCY"),
		PortfolioRefreshCron: valueOrDefault(k.String("PORTFOLIO_REFRESH_CRON"), "*/15 * * * *"),
		OTLPEndpoint:         strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
	}

	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 120
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 5
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// LoadForTests loads configuration with the given variables applied on
// top of the process environment, restoring the originals afterwards.
func LoadForTests(vars map[string]string) (*Config, error) {
	original := make(map[string]string, len(vars))
	for key, value := range vars {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, value); err != nil {
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

// CashbackSettings assembles the pricing value object from configuration.
func (c *Config) CashbackSettings() pricing.CashbackSettings {
	return pricing.CashbackSettings{
		Enabled:      c.CashbackEnabled,
		Percent:      c.CashbackPercent,
		ApplyToItems: c.CashbackApplyToItems,
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
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

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d = decimal.RequireFromString(fallback)
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
