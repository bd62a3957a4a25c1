// Package cache provides the TTL key-value cache shared by search and scrape.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Key prefixes for the two cached namespaces.
const (
	PrefixSearch = "search:"
	PrefixScrape = "scrape:"
)

// Cache is a TTL key-value store. Concurrent writers to one key are
// last-write-wins.
type Cache interface {
	// Get returns (nil, false, nil) on a miss or an expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Invalidate removes keys matching a glob pattern such as "scrape:*".
	Invalidate(ctx context.Context, pattern string) (int, error)
	// Cleanup removes expired entries and reports how many went.
	Cleanup(ctx context.Context) (int, error)
}

// Key builds a namespaced cache key from the SHA-256 of raw.
func Key(prefix, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return prefix + hex.EncodeToString(sum[:])
}

// GetJSON reads and decodes a JSON value. A value that no longer decodes is
// reported as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var zero T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, nil
	}
	return v, true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "cache: marshal value")
	}
	return c.Set(ctx, key, raw, ttl)
}

// globToLike converts a glob ("*", "?") into a SQL LIKE pattern escaped
// with backslash.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
