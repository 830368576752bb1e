package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through Redis cache for catalog entries. Misses and
// marshal failures fall back to the database silently.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs an entry cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func entryKey(id uuid.UUID) string {
	return "catalog:entry:" + id.String()
}

// Get returns the cached entry when present.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (Entry, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return Entry{}, false
	}
	data, err := c.client.Get(ctx, entryKey(id)).Bytes()
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Set stores the entry with the configured TTL.
func (c *Cache) Set(ctx context.Context, entry Entry) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, entryKey(entry.ID), data, c.ttl).Err()
}

// Invalidate drops the cached entry after a write.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, entryKey(id)).Err()
}
