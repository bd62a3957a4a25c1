package resilience

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter paces calls to one provider. It halves its rate on a 429
// (down to a quarter of the initial rate) and grows it by 20% on success
// (up to twice the initial rate).
type AdaptiveLimiter struct {
	name    string
	limiter *rate.Limiter
	mu      sync.Mutex
	initial rate.Limit
	min     rate.Limit
	max     rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at initial requests/second.
func NewAdaptiveLimiter(name string, initial rate.Limit, burst int) *AdaptiveLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{
		name:    name,
		limiter: rate.NewLimiter(initial, burst),
		initial: initial,
		min:     initial / 4,
		max:     initial * 2,
	}
}

// Wait blocks until the limiter allows a call or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.limiter.Limit() * 1.2
	if next > a.max {
		next = a.max
	}
	a.limiter.SetLimit(next)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.limiter.Limit() * 0.5
	if next < a.min {
		next = a.min
	}
	a.limiter.SetLimit(next)
	zap.L().Warn("resilience: rate limited, reducing rate",
		zap.String("provider", a.name),
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	return a.limiter.Limit()
}

// Paced runs fn after waiting on l and feeds the outcome back into l.
// A nil limiter runs fn directly.
func Paced[T any](ctx context.Context, l *AdaptiveLimiter, fn func(ctx context.Context) (T, error)) (T, error) {
	if l == nil {
		return fn(ctx)
	}
	var zero T
	if err := l.Wait(ctx); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	switch {
	case err == nil:
		l.OnSuccess()
	case IsRateLimited(err):
		l.OnRateLimit()
	}
	return val, err
}
