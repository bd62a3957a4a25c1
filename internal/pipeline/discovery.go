package pipeline

import (
	"context"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/search"
)

// Discovery defaults.
const (
	DefaultSearchWorkers = 5
	DefaultMaxCandidates = 60
	nearDupThreshold     = 0.8
)

var trustedDomains = []string{
	"reuters.com",
	"bloomberg.com",
	"wsj.com",
	"ft.com",
	"economist.com",
	"hbr.org",
	"mckinsey.com",
	"bain.com",
	"bcg.com",
	"gartner.com",
	"forrester.com",
	"statista.com",
	"cbinsights.com",
	"techcrunch.com",
	"wired.com",
	"gov",
	"edu",
}

var nonWord = regexp.MustCompile(`\W+`)

// Searcher runs one web search. search.Memoized satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Response, error)
}

// DiscoveryResult is the shortlist of candidate URLs and its funnel counts.
type DiscoveryResult struct {
	Candidates   []model.URLCandidate `json:"candidates"`
	Found        int                  `json:"found"`
	Deduplicated int                  `json:"deduplicated"`
	Shortlisted  int                  `json:"shortlisted"`
	FailedPlans  int                  `json:"failedPlans"`
	Cost         float64              `json:"cost"`
}

// Discoverer turns query plans into a scored, deduplicated URL shortlist.
type Discoverer struct {
	search  Searcher
	workers int
	max     int
	now     func() time.Time
}

// NewDiscoverer creates a Discoverer. Non-positive sizes use the defaults.
func NewDiscoverer(s Searcher, workers, maxCandidates int) *Discoverer {
	if workers <= 0 {
		workers = DefaultSearchWorkers
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Discoverer{search: s, workers: workers, max: maxCandidates, now: time.Now}
}

// Discover searches every plan, merges the hits, drops exact and near
// duplicate URLs, scores the survivors and keeps the best.
func (d *Discoverer) Discover(ctx context.Context, plans []model.QueryPlan) (*DiscoveryResult, error) {
	zap.L().Info("pipeline: discovering urls", zap.Int("queries", len(plans)))

	responses, ok := collect(ctx, plans, d.workers, func(ctx context.Context, plan model.QueryPlan) (*search.Response, bool) {
		resp, err := d.search.Search(ctx, plan.Query)
		if err != nil {
			zap.L().Warn("pipeline: search failed, dropping query",
				zap.String("query", plan.Query),
				zap.Error(err),
			)
			return nil, false
		}
		return resp, true
	})

	res := &DiscoveryResult{}
	var raw []model.URLCandidate
	for i, resp := range responses {
		if !ok[i] || resp == nil {
			res.FailedPlans++
			continue
		}
		res.Cost += resp.Cost
		plan := plans[i]
		for _, r := range resp.Results {
			raw = append(raw, model.URLCandidate{
				URL:           r.URL,
				Title:         r.Title,
				Snippet:       r.Snippet,
				Query:         plan.Query,
				Intent:        plan.Intent,
				PublishedDate: r.PublishedDate,
				Freshness:     plan.Freshness,
			})
		}
	}
	res.Found = len(raw)

	kept := dedupeCandidates(raw)
	res.Deduplicated = len(kept)

	now := d.now()
	for i := range kept {
		kept[i].Score = scoreCandidate(kept[i], now)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > d.max {
		kept = kept[:d.max]
	}
	res.Candidates = kept
	res.Shortlisted = len(kept)

	zap.L().Info("pipeline: url discovery summary",
		zap.Int("found", res.Found),
		zap.Int("deduplicated", res.Deduplicated),
		zap.Int("shortlisted", res.Shortlisted),
		zap.Int("failed_queries", res.FailedPlans),
	)
	return res, nil
}

// dedupeCandidates keeps the first candidate per normalized URL, then
// drops candidates whose path nearly matches one already kept on the
// same host.
func dedupeCandidates(raw []model.URLCandidate) []model.URLCandidate {
	seen := make(map[string]struct{}, len(raw))
	pathsByHost := make(map[string][]string)
	var out []model.URLCandidate

	for _, c := range raw {
		host, p := splitURL(c.URL)
		key := host + p
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		near := false
		for _, kept := range pathsByHost[host] {
			if pathSimilarity(kept, p) >= nearDupThreshold {
				near = true
				break
			}
		}
		if near {
			continue
		}
		pathsByHost[host] = append(pathsByHost[host], p)
		out = append(out, c)
	}
	return out
}

// NormalizeURL lower-cases host and path and strips trailing slashes.
// Scheme, query and fragment are ignored.
func NormalizeURL(raw string) string {
	host, p := splitURL(raw)
	return host + p
}

func splitURL(raw string) (host, path string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", strings.TrimRight(strings.ToLower(raw), "/")
	}
	return strings.ToLower(u.Host), strings.TrimRight(strings.ToLower(u.Path), "/")
}

// pathSimilarity is the common-prefix length over the longer length.
func pathSimilarity(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return float64(i) / float64(maxLen)
}

func isTrustedDomain(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, t := range trustedDomains {
		if host == t || strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}

func titleOverlap(title string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := model.NormalizeText(title)
	hits := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func queryTokens(query, intent string) []string {
	var out []string
	for _, t := range nonWord.Split(model.NormalizeText(query+" "+intent), -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func snippetQuality(snippet string) float64 {
	n := len([]rune(strings.TrimSpace(snippet)))
	switch {
	case n >= 120 && n <= 320:
		return 1
	case n >= 60:
		return 0.6
	default:
		return 0.2
	}
}

func freshnessScore(published *time.Time, want model.Freshness, now time.Time) float64 {
	if published == nil || want == "" || want == model.FreshnessAny {
		return 0
	}
	age := now.Sub(*published)
	switch want {
	case model.FreshnessRealtime:
		if age <= 30*24*time.Hour {
			return 1
		}
		return 0.2
	default:
		if age <= 180*24*time.Hour {
			return 0.7
		}
		return 0.2
	}
}

// scoreCandidate is 30 + 40·titleOverlap + 15·snippetQuality +
// 10·domainTrust + 5·freshness, rounded and clamped to [0, 100].
func scoreCandidate(c model.URLCandidate, now time.Time) int {
	host, _ := splitURL(c.URL)
	domain := 0.3
	if isTrustedDomain(host) {
		domain = 1
	}
	score := 30 +
		titleOverlap(c.Title, queryTokens(c.Query, c.Intent))*40 +
		snippetQuality(c.Snippet)*15 +
		domain*10 +
		freshnessScore(c.PublishedDate, c.Freshness, now)*5
	return int(math.Max(0, math.Min(100, math.Round(score))))
}
