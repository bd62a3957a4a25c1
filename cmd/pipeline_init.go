package main

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-cli/internal/cache"
	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/cost"
	"github.com/sells-group/decision-cli/internal/events"
	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/pipeline"
	"github.com/sells-group/decision-cli/internal/resilience"
	"github.com/sells-group/decision-cli/internal/scrape"
	"github.com/sells-group/decision-cli/internal/search"
	"github.com/sells-group/decision-cli/internal/store"
	anthropicpkg "github.com/sells-group/decision-cli/pkg/anthropic"
	geminipkg "github.com/sells-group/decision-cli/pkg/gemini"
)

// pipelineEnv holds the store, cache, metrics registry and pipeline shared
// by the run/serve/worker commands.
type pipelineEnv struct {
	Store    store.Store
	Cache    cache.Cache
	Pipeline *pipeline.Pipeline
	Registry *prometheus.Registry
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if c, ok := pe.Cache.(io.Closer); ok {
		_ = c.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initClientEnv opens only the store and cache. It backs the commands that
// never call a provider (runs, cache, run --temporal).
func initClientEnv(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(config.ModeClient); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(ctx, cfg.Cache, st)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "open cache")
	}
	return &pipelineEnv{Store: st, Cache: c}, nil
}

// initPipeline sets up the store, cache, provider clients and event sinks,
// and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode config.Mode) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env, err := initClientEnv(ctx)
	if err != nil {
		return nil, err
	}

	calc := cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing))

	llmClient, err := initLLM(ctx, calc)
	if err != nil {
		env.Close()
		return nil, err
	}

	primary, err := search.NewProvider(cfg.Search.Primary, cfg, calc)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init primary search")
	}
	secondary, err := search.NewProvider(cfg.Search.Secondary, cfg, calc)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init secondary search")
	}
	searcher := search.NewMemoized(env.Cache, primary, secondary, hours(cfg.Cache.SearchTTLHours))

	chain, err := scrape.NewChainFromConfig(cfg)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init scrape chain")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := events.NewMetricsSink(reg)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init metrics")
	}

	env.Registry = reg
	env.Pipeline = pipeline.New(cfg.Pipeline, pipeline.Deps{
		LLM:        llmClient,
		Search:     searcher,
		Scraper:    chain,
		Cache:      env.Cache,
		Store:      env.Store,
		Sink:       events.Multi{events.NewLogSink(zap.L()), metrics, events.NewStoreSink(env.Store)},
		Calculator: calc,
	}, pipeline.WithScrapeLimits(cfg.Scrape.MaxWords, hours(cfg.Cache.ScrapeTTLHours)))

	zap.L().Info("pipeline initialized",
		zap.String("llm", cfg.LLM.Provider),
		zap.String("search_primary", cfg.Search.Primary),
		zap.String("search_secondary", cfg.Search.Secondary),
		zap.Strings("scrape_links", chain.Links()),
		zap.String("cache", cfg.Cache.Backend),
	)

	return env, nil
}

// initLLM builds the completion client for the configured provider.
func initLLM(ctx context.Context, calc *cost.Calculator) (llm.Client, error) {
	var (
		provider llm.Provider
		perSec   float64
	)
	switch cfg.LLM.Provider {
	case "anthropic":
		c, err := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "init anthropic")
		}
		provider = llm.NewAnthropicProvider(c, cfg.Anthropic.HaikuModel, cfg.Anthropic.SonnetModel)
		perSec = cfg.Anthropic.RateLimit
	case "gemini":
		c, err := geminipkg.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		provider = llm.NewGeminiProvider(c, cfg.Gemini.FlashModel, cfg.Gemini.ProModel)
		perSec = cfg.Gemini.RateLimit
	default:
		return nil, eris.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	opts := []llm.Option{
		llm.WithRetry(resilience.FromSchedule(provider.Name(), "generate", cfg.Retry.DelaysMs)),
		llm.WithCalculator(calc),
		llm.WithDefaults(cfg.LLM.MaxTokens, cfg.LLM.Temperature),
	}
	if perSec > 0 {
		opts = append(opts, llm.WithLimiter(resilience.NewAdaptiveLimiter(provider.Name(), rate.Limit(perSec), int(perSec)+1)))
	}
	return llm.NewClient(provider, opts...), nil
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
