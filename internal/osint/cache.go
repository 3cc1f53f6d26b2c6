package osint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 24 * time.Hour

// Cache stores successful enrichment results per username.
type Cache interface {
	Get(ctx context.Context, username string) (Result, bool, error)
	Set(ctx context.Context, result Result) error
}

// RedisCache keeps results in Redis with a TTL.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("osint: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, username string) (Result, bool, error) {
	data, err := c.redis.Get(ctx, cacheKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("osint: cache get: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false, fmt.Errorf("osint: cache decode: %w", err)
	}
	return res, true, nil
}

// Set stores a result. Failed results are not cached so a later scan can
// succeed.
func (c *RedisCache) Set(ctx context.Context, result Result) error {
	if result.Failed() || result.Username == "" {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("osint: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, cacheKey(result.Username), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("osint: cache set: %w", err)
	}
	return nil
}

func cacheKey(username string) string {
	return fmt.Sprintf("osint:result:%s", strings.ToLower(username))
}
