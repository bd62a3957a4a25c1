package pipeline

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/cache"
	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/scrape"
)

// Extraction defaults.
const (
	DefaultScrapeWorkers = 10
	DefaultMinExtract    = 25
	DefaultMaxExtract    = 35
	DefaultMaxWords      = 5000
	DefaultScrapeTTL     = 7 * 24 * time.Hour
)

// cachedPage is the cached form of one scrape.
type cachedPage struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// ExtractorConfig sizes the extractor. Zero values use the defaults.
type ExtractorConfig struct {
	Workers  int
	Min      int
	Max      int
	MaxWords int
	TTL      time.Duration
}

// Extractor scrapes the top candidates through the cache.
type Extractor struct {
	cache   cache.Cache
	scraper scrape.Scraper
	cfg     ExtractorConfig
	now     func() time.Time
}

// NewExtractor creates an Extractor.
func NewExtractor(c cache.Cache, s scrape.Scraper, cfg ExtractorConfig) *Extractor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultScrapeWorkers
	}
	if cfg.Min <= 0 {
		cfg.Min = DefaultMinExtract
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMaxExtract
	}
	if cfg.Min > cfg.Max {
		cfg.Min = cfg.Max
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = DefaultMaxWords
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultScrapeTTL
	}
	return &Extractor{cache: c, scraper: s, cfg: cfg, now: time.Now}
}

// targetCount is the number of candidates to attempt: between Min and Max,
// never more than are available.
func (e *Extractor) targetCount(n int) int {
	return min(n, max(e.cfg.Min, min(e.cfg.Max, n)))
}

// Extract scrapes the best-scored candidates. Pages that fail every
// scraper are dropped.
func (e *Extractor) Extract(ctx context.Context, candidates []model.URLCandidate) ([]model.ExtractedContent, error) {
	sorted := make([]model.URLCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	selected := sorted[:e.targetCount(len(sorted))]

	pages, ok := collect(ctx, selected, e.cfg.Workers, func(ctx context.Context, c model.URLCandidate) (model.ExtractedContent, bool) {
		page := e.fetch(ctx, c.URL)
		if page == nil {
			return model.ExtractedContent{}, false
		}
		text, words := scrape.ClipWords(page.Text, e.cfg.MaxWords)
		return model.ExtractedContent{
			URL:          page.URL,
			Title:        page.Title,
			Text:         text,
			WordCount:    words,
			ExtractedAt:  page.ExtractedAt,
			SourceQuery:  c.Query,
			SourceIntent: c.Intent,
			Source:       page.Source,
		}, true
	})

	out := make([]model.ExtractedContent, 0, len(pages))
	for i, p := range pages {
		if ok[i] {
			out = append(out, p)
		}
	}

	zap.L().Info("pipeline: content extraction",
		zap.Int("attempted", len(selected)),
		zap.Int("succeeded", len(out)),
		zap.Int("failed", len(selected)-len(out)),
	)
	return out, nil
}

// fetch returns the cached page for url or scrapes and caches it. Nil
// means the page could not be fetched.
func (e *Extractor) fetch(ctx context.Context, url string) *cachedPage {
	key := cache.Key(cache.PrefixScrape, url)
	if e.cache != nil {
		hit, ok, err := cache.GetJSON[cachedPage](ctx, e.cache, key)
		if err != nil {
			zap.L().Warn("pipeline: scrape cache read failed", zap.String("url", url), zap.Error(err))
		}
		if ok && hit.Text != "" {
			return &hit
		}
	}

	res, err := e.scraper.Scrape(ctx, url)
	if err != nil {
		zap.L().Debug("pipeline: scrape failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	if res == nil || res.Text == "" {
		return nil
	}

	page := &cachedPage{
		URL:         url,
		Title:       res.Title,
		Text:        res.Text,
		Source:      res.Source,
		ExtractedAt: e.now().UTC(),
	}
	if res.URL != "" {
		page.URL = res.URL
	}
	if e.cache != nil {
		if err := cache.SetJSON(ctx, e.cache, key, page, e.cfg.TTL); err != nil {
			zap.L().Warn("pipeline: scrape cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return page
}
