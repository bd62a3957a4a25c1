package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/cache"
)

// DefaultTTL is how long a query's results stay cached.
const DefaultTTL = 24 * time.Hour

// Memoized serves queries from the cache, then the primary provider, then
// the optional secondary. The first success is cached.
type Memoized struct {
	cache     cache.Cache
	primary   Provider
	secondary Provider
	ttl       time.Duration
}

// NewMemoized builds a Memoized searcher. secondary may be nil; ttl <= 0
// uses DefaultTTL.
func NewMemoized(c cache.Cache, primary, secondary Provider, ttl time.Duration) *Memoized {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memoized{cache: c, primary: primary, secondary: secondary, ttl: ttl}
}

// Search returns cached results for query or fetches them.
func (m *Memoized) Search(ctx context.Context, query string) (*Response, error) {
	key := cache.Key(cache.PrefixSearch, query)

	cached, ok, err := cache.GetJSON[Response](ctx, m.cache, key)
	if err != nil {
		zap.L().Warn("search: cache read failed", zap.String("query", query), zap.Error(err))
	}
	if ok {
		cached.Cached = true
		return &cached, nil
	}

	resp, primaryErr := m.primary.Search(ctx, query)
	if primaryErr != nil {
		if m.secondary == nil {
			return nil, eris.Wrapf(primaryErr, "search: %s failed", m.primary.Name())
		}
		zap.L().Warn("search: primary failed, trying secondary",
			zap.String("primary", m.primary.Name()),
			zap.String("secondary", m.secondary.Name()),
			zap.String("query", query),
			zap.Error(primaryErr),
		)
		var secondaryErr error
		resp, secondaryErr = m.secondary.Search(ctx, query)
		if secondaryErr != nil {
			return nil, eris.Wrapf(secondaryErr, "search: both providers failed (%s: %v)", m.primary.Name(), primaryErr)
		}
	}

	if err := cache.SetJSON(ctx, m.cache, key, resp, m.ttl); err != nil {
		zap.L().Warn("search: cache write failed", zap.String("query", query), zap.Error(err))
	}
	return resp, nil
}
