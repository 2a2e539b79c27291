// Package cache memoizes analyzer results in Redis. Keys embed the dataset
// generation, so re-ingesting a dataset invalidates every cached result for
// it without explicit deletes; entries also carry a TTL as a backstop.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/config"
)

const keyPrefix = "insights"

// Cache wraps a Redis client. A nil *Cache is valid and caches nothing, so
// callers never branch on whether caching is enabled.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis per config. Returns nil when disabled.
func New(cfg config.RedisConfig) *Cache {
	if !cfg.Enabled {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{rdb: rdb, ttl: cfg.TTL()}
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Close releases the client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// Key builds the cache key for one analyzer invocation: dataset + generation
// + analyzer name + a digest of the invocation parameters.
func Key(dc *analytics.DataContext, analyzer string, params ...interface{}) string {
	h := sha1.New()
	for _, p := range params {
		fmt.Fprintf(h, "%v|", p)
	}
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, dc.CacheKey(), analyzer, hex.EncodeToString(h.Sum(nil))[:12])
}

// Get loads a cached result into dest. The bool reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

// Set stores a result under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Do returns the cached result for key, computing and storing it on a miss.
// compute runs at most once; cache write failures are swallowed because a
// result that could not be cached is still a result.
func (c *Cache) Do(ctx context.Context, key string, dest interface{}, compute func() (interface{}, error)) error {
	if hit, err := c.Get(ctx, key, dest); err != nil {
		return err
	} else if hit {
		return nil
	}

	v, err := compute()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if c != nil {
		_ = c.rdb.Set(ctx, key, data, c.ttl).Err()
	}
	return json.Unmarshal(data, dest)
}
