package enrich

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQuoteCache backs the live-quote cache with redis. A nil client turns
// every operation into a no-op so the pipeline runs without redis.
type RedisQuoteCache struct {
	client *redis.Client
}

func NewRedisQuoteCache(client *redis.Client) *RedisQuoteCache {
	return &RedisQuoteCache{client: client}
}

func (c *RedisQuoteCache) Get(ctx context.Context, key string) (string, bool) {
	if c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *RedisQuoteCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("quote cache: set %s: %v", key, err)
	}
}
