package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Tiered puts a fast cache in front of a durable one. Reads that miss the
// front and hit the back fill the front for frontTTL.
type Tiered struct {
	front    Cache
	back     Cache
	frontTTL time.Duration
}

// NewTiered layers front over back.
func NewTiered(front, back Cache, frontTTL time.Duration) *Tiered {
	if frontTTL <= 0 {
		frontTTL = time.Hour
	}
	return &Tiered{front: front, back: back, frontTTL: frontTTL}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.front.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := t.back.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := t.front.Set(ctx, key, v, t.frontTTL); err != nil {
		zap.L().Debug("cache: front fill failed", zap.String("key", key), zap.Error(err))
	}
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.back.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	frontTTL := t.frontTTL
	if ttl > 0 && ttl < frontTTL {
		frontTTL = ttl
	}
	return t.front.Set(ctx, key, value, frontTTL)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.front.Delete(ctx, key); err != nil {
		return err
	}
	return t.back.Delete(ctx, key)
}

func (t *Tiered) Invalidate(ctx context.Context, pattern string) (int, error) {
	if _, err := t.front.Invalidate(ctx, pattern); err != nil {
		return 0, err
	}
	return t.back.Invalidate(ctx, pattern)
}

func (t *Tiered) Cleanup(ctx context.Context) (int, error) {
	if _, err := t.front.Cleanup(ctx); err != nil {
		return 0, err
	}
	return t.back.Cleanup(ctx)
}
