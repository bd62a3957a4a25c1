package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisBatch = 500

// RedisCache stores entries in Redis with native TTLs.
type RedisCache struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "cache: ping redis %s", addr)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: redis get")
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return eris.Wrap(c.client.Set(ctx, key, value, ttl).Err(), "cache: redis set")
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return eris.Wrap(c.client.Del(ctx, key).Err(), "cache: redis del")
}

// Invalidate collects every key matching pattern with SCAN, then deletes
// them in batches. The keyspace is not modified until the scan completes.
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, redisBatch).Result()
		if err != nil {
			return 0, eris.Wrap(err, "cache: redis scan")
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	removed := 0
	for start := 0; start < len(keys); start += redisBatch {
		end := min(start+redisBatch, len(keys))
		n, err := c.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, eris.Wrap(err, "cache: redis del")
		}
		removed += int(n)
	}
	return removed, nil
}

// Cleanup is a no-op: Redis expires keys itself.
func (c *RedisCache) Cleanup(context.Context) (int, error) {
	return 0, nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
