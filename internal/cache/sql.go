package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-cli/internal/store"
)

// SQLCache stores entries in the store's cache_entries table. Expiry is
// passive: expired rows read as misses, and a miss triggers a cleanup at
// most once per cleanup interval.
type SQLCache struct {
	store   store.CacheStore
	cleanup *rate.Sometimes
	now     func() time.Time
}

// NewSQLCache wraps a cache store. cleanupEvery <= 0 defaults to 10 minutes.
func NewSQLCache(st store.CacheStore, cleanupEvery time.Duration) *SQLCache {
	if cleanupEvery <= 0 {
		cleanupEvery = 10 * time.Minute
	}
	return &SQLCache{
		store:   st,
		cleanup: &rate.Sometimes{Interval: cleanupEvery},
		now:     time.Now,
	}
}

func (c *SQLCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.store.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry == nil || entry.Expired(c.now()) {
		c.cleanup.Do(func() { c.sweep(ctx) })
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (c *SQLCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.SetCacheEntry(ctx, key, value, c.now().Add(ttl))
}

func (c *SQLCache) Delete(ctx context.Context, key string) error {
	return c.store.DeleteCacheEntry(ctx, key)
}

func (c *SQLCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	return c.store.DeleteCacheEntries(ctx, globToLike(pattern))
}

func (c *SQLCache) Cleanup(ctx context.Context) (int, error) {
	return c.store.DeleteExpiredCache(ctx, c.now())
}

func (c *SQLCache) sweep(ctx context.Context) {
	n, err := c.Cleanup(ctx)
	if err != nil {
		zap.L().Warn("cache: expired cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Debug("cache: removed expired entries", zap.Int("count", n))
	}
}
