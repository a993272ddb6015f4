package address

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"listingdesk/config"
	"listingdesk/logging"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]Suggestion, bool, error)
	Set(ctx context.Context, key string, value []Suggestion, ttl time.Duration) error
}

// RedisCache stores suggestion lists as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       0,
	})}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Suggestion, bool, error) {
	data, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []Suggestion
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []Suggestion, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedProvider consults the cache before the wrapped provider. Cache
// failures degrade to a direct lookup.
type CachedProvider struct {
	next    Provider
	cache   Cache
	country string
	ttl     time.Duration
}

func NewCachedProvider(next Provider, cache Cache, country string, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, country: country, ttl: ttl}
}

func (p *CachedProvider) Search(ctx context.Context, query string) ([]Suggestion, error) {
	key := CacheKey(p.country, query)
	if hit, ok, err := p.cache.Get(ctx, key); err != nil {
		logging.Warnf("Address cache read failed: %v", err)
	} else if ok {
		return hit, nil
	}

	out, err := p.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, out, p.ttl); err != nil {
		logging.Warnf("Address cache write failed: %v", err)
	}
	return out, nil
}
