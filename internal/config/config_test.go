package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":            "postgres://localhost:5432/cotiza",
		"REDIS_URL":               "redis://localhost:6379/0",
		"APP_ENV":                 "",
		"PORT":                    "",
		"CASHBACK_ENABLED":        "",
		"CASHBACK_PERCENT":        "",
		"CATALOG_CACHE_TTL":       "",
		"RATE_LIMIT_REQUESTS":     "",
		"WORKER_CONCURRENCY":      "",
		"PORTFOLIO_REFRESH_CRON":  "",
		"CORS_ALLOWED_ORIGINS":    "",
		"CASHBACK_APPLY_TO_ITEMS": "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, 10*time.Minute, cfg.PortfolioCacheTTL)
	require.EqualValues(t, 120, cfg.RateLimitRequests)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.Equal(t, "*/15 * * * *", cfg.PortfolioRefreshCron)
	require.False(t, cfg.CashbackSettings().Enabled)
}

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["REDIS_URL"] = ""
	_, err = LoadForTests(env)
	require.Error(t, err)
}

func TestLoadCashbackSettings(t *testing.T) {
	env := baseEnv()
	env["CASHBACK_ENABLED"] = "true"
	env["CASHBACK_PERCENT"] = "2.5"
	env["CASHBACK_APPLY_TO_ITEMS"] = "yes"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)

	settings := cfg.CashbackSettings()
	require.True(t, settings.Enabled)
	require.True(t, settings.Percent.Equal(decimal.RequireFromString("2.5")))
	require.True(t, settings.ApplyToItems)
}

func TestLoadParsesLists(t *testing.T) {
	env := baseEnv()
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example ,"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
