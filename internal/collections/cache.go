package collections

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const portfolioKey = "collections:portfolio"

// Cache keeps the portfolio rollup warm in Redis. Every method is
// nil-safe: with no client configured the service just recomputes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a portfolio cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetPortfolio returns the cached rollup if present.
func (c *Cache) GetPortfolio(ctx context.Context) (PortfolioStats, bool) {
	if c == nil || c.client == nil {
		return PortfolioStats{}, false
	}
	raw, err := c.client.Get(ctx, portfolioKey).Bytes()
	if err != nil {
		return PortfolioStats{}, false
	}
	var stats PortfolioStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return PortfolioStats{}, false
	}
	return stats, true
}

// SetPortfolio stores the rollup. Failures are swallowed; the cache is
// an accelerator, not a source of truth.
func (c *Cache) SetPortfolio(ctx context.Context, stats PortfolioStats) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, portfolioKey, raw, c.ttl).Err()
}

// InvalidatePortfolio drops the cached rollup after a payment mutation.
func (c *Cache) InvalidatePortfolio(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, portfolioKey).Err()
}
