package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/store"
)

// Open builds the backend named by cfg.Backend. The sql and tiered backends
// persist through st.
func Open(ctx context.Context, cfg config.CacheConfig, st store.CacheStore) (Cache, error) {
	cleanup := time.Duration(cfg.CleanupMins) * time.Minute
	memTTL := time.Duration(cfg.MemoryTTLMins) * time.Minute

	switch cfg.Backend {
	case "sql", "":
		if st == nil {
			return nil, eris.New("cache: sql backend needs a store")
		}
		return NewSQLCache(st, cleanup), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "memory":
		return NewMemory(cfg.MemorySize, memTTL), nil
	case "tiered":
		if st == nil {
			return nil, eris.New("cache: tiered backend needs a store")
		}
		return NewTiered(NewMemory(cfg.MemorySize, memTTL), NewSQLCache(st, cleanup), memTTL), nil
	default:
		return nil, eris.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
