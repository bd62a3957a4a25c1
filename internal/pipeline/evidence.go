package pipeline

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// Evidence defaults.
const (
	DefaultEvidenceWorkers = 5
	DefaultMaxEvidence     = 40
)

type claim struct {
	Claim            string               `json:"claim"`
	SourceSnippet    string               `json:"sourceSnippet"`
	CredibilityScore float64              `json:"credibilityScore"`
	RelevanceScore   float64              `json:"relevanceScore"`
	Freshness        model.ClaimFreshness `json:"freshness"`
}

// EvidenceGenerator turns page text into ranked, deduplicated claims.
type EvidenceGenerator struct {
	llm     llm.Client
	workers int
	max     int
	ids     func(prefix string) string
}

// NewEvidenceGenerator creates an EvidenceGenerator. Non-positive sizes use
// the defaults.
func NewEvidenceGenerator(c llm.Client, workers, maxCards int) *EvidenceGenerator {
	if workers <= 0 {
		workers = DefaultEvidenceWorkers
	}
	if maxCards <= 0 {
		maxCards = DefaultMaxEvidence
	}
	return &EvidenceGenerator{llm: c, workers: workers, max: maxCards, ids: newID}
}

// Generate extracts claims per page, merges near-duplicates and returns the
// highest-ranked cards. A page whose extraction fails contributes nothing;
// a failed dedup pass keeps every claim.
func (g *EvidenceGenerator) Generate(ctx context.Context, pages []model.ExtractedContent, in model.DecisionInput) ([]model.EvidenceCard, model.TokenUsage, error) {
	var (
		mu    sync.Mutex
		total model.TokenUsage
	)

	perPage, _ := collect(ctx, pages, g.workers, func(ctx context.Context, page model.ExtractedContent) ([]model.EvidenceCard, bool) {
		claims, usage, err := llm.Complete[[]claim](ctx, g.llm, llm.Request{
			Operation: "extract_evidence",
			Tier:      llm.TierFast,
			System:    evidenceSystem,
			Prompt:    evidencePrompt(in, page),
			Schema:    llm.SchemaEvidenceClaims,
		})
		mu.Lock()
		total.Add(usage)
		mu.Unlock()
		if err != nil {
			zap.L().Warn("pipeline: evidence extraction failed", zap.String("url", page.URL), zap.Error(err))
			return nil, false
		}

		cards := make([]model.EvidenceCard, 0, len(claims))
		for _, c := range claims {
			cards = append(cards, model.EvidenceCard{
				ID:               g.ids("ev"),
				Claim:            c.Claim,
				SourceURL:        page.URL,
				SourceTitle:      page.Title,
				SourceSnippet:    c.SourceSnippet,
				CredibilityScore: c.CredibilityScore,
				RelevanceScore:   c.RelevanceScore,
				Freshness:        c.Freshness,
				ExtractedAt:      page.ExtractedAt,
			})
		}
		return cards, true
	})

	var flat []model.EvidenceCard
	for _, cards := range perPage {
		flat = append(flat, cards...)
	}
	zap.L().Info("pipeline: evidence extraction", zap.Int("pages", len(pages)), zap.Int("claims", len(flat)))

	deduped := flat
	if len(flat) > 1 {
		groups, usage, err := llm.Complete[[][]int](ctx, g.llm, llm.Request{
			Operation: "dedupe_evidence",
			Tier:      llm.TierFast,
			System:    jsonOnly,
			Prompt:    evidenceDedupePrompt(flat),
			Schema:    llm.SchemaEvidenceGroups,
		})
		total.Add(usage)
		if err != nil {
			zap.L().Warn("pipeline: evidence dedup failed, keeping all claims", zap.Error(err))
		} else {
			deduped = dropDuplicateClaims(flat, groups)
		}
	}

	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Rank() > deduped[j].Rank() })
	out := deduped
	if len(out) > g.max {
		out = out[:g.max]
	}

	zap.L().Info("pipeline: evidence deduped",
		zap.Int("raw", len(flat)),
		zap.Int("deduped", len(deduped)),
		zap.Int("returned", len(out)),
	)
	return out, total, nil
}

// dropDuplicateClaims keeps the highest-ranked card of every group of two
// or more in-range indices. Ties keep the earliest index.
func dropDuplicateClaims(cards []model.EvidenceCard, groups [][]int) []model.EvidenceCard {
	drop := make(map[int]struct{})
	for _, group := range groups {
		var members []int
		for _, i := range group {
			if i >= 0 && i < len(cards) {
				members = append(members, i)
			}
		}
		if len(members) < 2 {
			continue
		}
		best := members[0]
		for _, i := range members[1:] {
			ri, rb := cards[i].Rank(), cards[best].Rank()
			if ri > rb || (ri == rb && i < best) {
				best = i
			}
		}
		for _, i := range members {
			if i != best {
				drop[i] = struct{}{}
			}
		}
	}

	out := make([]model.EvidenceCard, 0, len(cards)-len(drop))
	for i, c := range cards {
		if _, ok := drop[i]; !ok {
			out = append(out, c)
		}
	}
	return out
}
