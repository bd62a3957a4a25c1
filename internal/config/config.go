package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the top-level configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Exa        ExaConfig        `yaml:"exa" mapstructure:"exa"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig selects and tunes the search/scrape cache.
type CacheConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"`
	RedisAddr      string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB        int    `yaml:"redis_db" mapstructure:"redis_db"`
	MemorySize     int    `yaml:"memory_size" mapstructure:"memory_size"`
	MemoryTTLMins  int    `yaml:"memory_ttl_mins" mapstructure:"memory_ttl_mins"`
	SearchTTLHours int    `yaml:"search_ttl_hours" mapstructure:"search_ttl_hours"`
	ScrapeTTLHours int    `yaml:"scrape_ttl_hours" mapstructure:"scrape_ttl_hours"`
	CleanupMins    int    `yaml:"cleanup_mins" mapstructure:"cleanup_mins"`
}

// LLMConfig selects the completion provider and sampling settings.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	HaikuModel  string  `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string  `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	FlashModel string  `yaml:"flash_model" mapstructure:"flash_model"`
	ProModel   string  `yaml:"pro_model" mapstructure:"pro_model"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SearchConfig picks the primary and secondary search providers.
type SearchConfig struct {
	Primary    string `yaml:"primary" mapstructure:"primary"`
	Secondary  string `yaml:"secondary" mapstructure:"secondary"`
	NumResults int    `yaml:"num_results" mapstructure:"num_results"`
}

// ExaConfig holds Exa search settings.
type ExaConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// TavilyConfig holds Tavily search settings.
type TavilyConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JinaConfig holds Jina Reader and Search settings.
type JinaConfig struct {
	Key                 string  `yaml:"key" mapstructure:"key"`
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL       string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	BreakerFailures     int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutMs int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ScrapeConfig configures the fallback chain.
type ScrapeConfig struct {
	LocalFallback   bool `yaml:"local_fallback" mapstructure:"local_fallback"`
	BrowserFallback bool `yaml:"browser_fallback" mapstructure:"browser_fallback"`
	TimeoutSecs     int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxWords        int  `yaml:"max_words" mapstructure:"max_words"`

	ExcludePatterns []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
}

// RetryConfig overrides the provider retry schedule.
type RetryConfig struct {
	DelaysMs []int `yaml:"delays_ms" mapstructure:"delays_ms"`
}

// PipelineConfig sizes the stage worker pools and caps.
type PipelineConfig struct {
	SearchWorkers     int `yaml:"search_workers" mapstructure:"search_workers"`
	ScrapeWorkers     int `yaml:"scrape_workers" mapstructure:"scrape_workers"`
	EvidenceWorkers   int `yaml:"evidence_workers" mapstructure:"evidence_workers"`
	OptionConcurrency int `yaml:"option_concurrency" mapstructure:"option_concurrency"`
	MaxCandidates     int `yaml:"max_candidates" mapstructure:"max_candidates"`
	MinExtract        int `yaml:"min_extract" mapstructure:"min_extract"`
	MaxExtract        int `yaml:"max_extract" mapstructure:"max_extract"`
	MaxEvidence       int `yaml:"max_evidence" mapstructure:"max_evidence"`
	ComposeEvidence   int `yaml:"compose_evidence" mapstructure:"compose_evidence"`
	MaxOptions        int `yaml:"max_options" mapstructure:"max_options"`
}

// TemporalConfig configures the durable workflow client and worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    map[string]ModelPricing `yaml:"gemini" mapstructure:"gemini"`
	Exa       QueryPricing            `yaml:"exa" mapstructure:"exa"`
	Tavily    QueryPricing            `yaml:"tavily" mapstructure:"tavily"`
	Jina      JinaPricing             `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlPricing        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// QueryPricing is a flat per-search rate.
type QueryPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// JinaPricing holds Jina pricing.
type JinaPricing struct {
	PerMTok  float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlPricing holds Firecrawl pricing.
type FirecrawlPricing struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// MonitoringConfig configures the run-health checker and its webhook alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	StuckAfterMins       int     `yaml:"stuck_after_mins" mapstructure:"stuck_after_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DECISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "decision.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("cache.backend", "sql")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.memory_size", 2048)
	v.SetDefault("cache.memory_ttl_mins", 60)
	v.SetDefault("cache.search_ttl_hours", 24)
	v.SetDefault("cache.scrape_ttl_hours", 168)
	v.SetDefault("cache.cleanup_mins", 10)

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.rate_limit", 4.0)

	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.flash_model", "gemini-2.5-flash")
	v.SetDefault("gemini.pro_model", "gemini-2.5-pro")
	v.SetDefault("gemini.rate_limit", 4.0)

	v.SetDefault("search.primary", "exa")
	v.SetDefault("search.secondary", "tavily")
	v.SetDefault("search.num_results", 10)

	v.SetDefault("exa.key", "")
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.rate_limit", 5.0)
	v.SetDefault("tavily.key", "")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.rate_limit", 5.0)

	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit", 5.0)
	v.SetDefault("jina.breaker_failures", 5)
	v.SetDefault("jina.breaker_cooldown_secs", 30)

	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.timeout_ms", 30000)
	v.SetDefault("firecrawl.rate_limit", 10.0)

	v.SetDefault("scrape.local_fallback", false)
	v.SetDefault("scrape.browser_fallback", false)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.max_words", 5000)
	v.SetDefault("scrape.exclude_patterns", []string{})

	v.SetDefault("retry.delays_ms", []int{1000, 2000, 4000})

	v.SetDefault("pipeline.search_workers", 5)
	v.SetDefault("pipeline.scrape_workers", 10)
	v.SetDefault("pipeline.evidence_workers", 5)
	v.SetDefault("pipeline.option_concurrency", 6)
	v.SetDefault("pipeline.max_candidates", 60)
	v.SetDefault("pipeline.min_extract", 25)
	v.SetDefault("pipeline.max_extract", 35)
	v.SetDefault("pipeline.max_evidence", 40)
	v.SetDefault("pipeline.compose_evidence", 30)
	v.SetDefault("pipeline.max_options", 6)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "decision-analysis")

	v.SetDefault("server.port", 8080)

	v.SetDefault("pricing.exa.per_query", 0.005)
	v.SetDefault("pricing.tavily.per_query", 0.008)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.jina.per_query", 0.001)
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)
	v.SetDefault("monitoring.stuck_after_mins", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Mode names the command a configuration is validated for.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeServe  Mode = "serve"
	ModeWorker Mode = "worker"
	ModeClient Mode = "client"
)

// Validate checks that the credentials required by the selected providers
// are present. ModeClient (run --temporal, runs, cache) needs no provider keys.
func (c *Config) Validate(mode Mode) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}

	switch c.Cache.Backend {
	case "sql", "memory", "tiered":
	case "redis":
		if c.Cache.RedisAddr == "" {
			missing = append(missing, "cache.redis_addr")
		}
	default:
		return eris.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	if mode == ModeClient {
		return missingErr(missing)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key")
		}
	case "gemini":
		if c.Gemini.Key == "" {
			missing = append(missing, "gemini.key")
		}
	default:
		return eris.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}

	for _, p := range []string{c.Search.Primary, c.Search.Secondary} {
		switch p {
		case "":
		case "exa":
			if c.Exa.Key == "" {
				missing = append(missing, "exa.key")
			}
		case "tavily":
			if c.Tavily.Key == "" {
				missing = append(missing, "tavily.key")
			}
		case "jina":
			if c.Jina.Key == "" {
				missing = append(missing, "jina.key")
			}
		default:
			return eris.Errorf("config: unknown search provider %q", p)
		}
	}
	if c.Search.Primary == "" {
		missing = append(missing, "search.primary")
	}

	if c.Firecrawl.Key == "" {
		missing = append(missing, "firecrawl.key")
	}

	return missingErr(missing)
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
