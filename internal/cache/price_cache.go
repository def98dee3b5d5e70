package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seedscout/seedscout_api/internal/utils"
)

// PriceCache is the time-boxed read cache for price views. There is no
// write-path invalidation: staleness is bounded purely by TTL, so a read
// after a scrape converges within one TTL window.
type PriceCache struct {
	redis       *RedisClient
	readTTL     time.Duration
	trendingTTL time.Duration
}

// NewPriceCache creates a PriceCache with the configured TTLs.
func NewPriceCache(redis *RedisClient, readTTL, trendingTTL time.Duration) *PriceCache {
	return &PriceCache{
		redis:       redis,
		readTTL:     readTTL,
		trendingTTL: trendingTTL,
	}
}

// KeyToday is the cache key for the today's-prices view.
func KeyToday(day string) string {
	return fmt.Sprintf("prices:today:%s", day)
}

// KeySeed is the cache key for a single product's prices.
func KeySeed(slug string) string {
	return fmt.Sprintf("prices:seed:%s", slug)
}

// KeySearch is the cache key for a search query.
func KeySearch(query, seedType, breeder string) string {
	return fmt.Sprintf("prices:search:%s:%s:%s",
		strings.ToLower(strings.TrimSpace(query)), seedType, strings.ToLower(breeder))
}

// KeyCompare is the cache key for a compare request; slugs are joined in
// request order so distinct orderings cache separately.
func KeyCompare(slugs []string) string {
	return fmt.Sprintf("prices:compare:%s", strings.Join(slugs, ","))
}

// KeyTrending is the cache key for the trending list.
func KeyTrending() string {
	return "prices:trending"
}

// GetJSON loads and unmarshals a cached view into dest. Returns
// utils.ErrCacheMiss when the key is absent or expired.
func (c *PriceCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.redis.Get(ctx, key)
	if err == redis.Nil {
		return utils.ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dest)
}

// SetJSON marshals and stores a view with the standard read TTL.
func (c *PriceCache) SetJSON(ctx context.Context, key string, value interface{}) error {
	return c.setJSON(ctx, key, value, c.readTTL)
}

// SetJSONTrending marshals and stores the trending view with its longer TTL.
func (c *PriceCache) SetJSONTrending(ctx context.Context, key string, value interface{}) error {
	return c.setJSON(ctx, key, value, c.trendingTTL)
}

func (c *PriceCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached view: %w", err)
	}
	return c.redis.Set(ctx, key, string(raw), ttl)
}
