package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/events"
	"github.com/sells-group/decision-cli/internal/llm"
	llmmocks "github.com/sells-group/decision-cli/internal/llm/mocks"
	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/scrape"
	"github.com/sells-group/decision-cli/internal/search"
	"github.com/sells-group/decision-cli/internal/store"
)

// completion marshals v into a validated-looking completion.
func completion(t *testing.T, v any) *llm.Completion {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &llm.Completion{
		Data:     data,
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5-20250929",
		Usage:    model.TokenUsage{InputTokens: 100, OutputTokens: 20, Cost: 0.001},
	}
}

// operation matches requests issued by the named stage operation.
func operation(name string) any {
	return mock.MatchedBy(func(r llm.Request) bool { return r.Operation == name })
}

// handler answers one operation from the request.
type handler func(req llm.Request) (any, error)

// scriptedLLM builds a mock client that routes each operation to its
// handler. Operations without a handler fail the test when called.
func scriptedLLM(t *testing.T, handlers map[string]handler) *llmmocks.MockClient {
	t.Helper()
	m := llmmocks.NewMockClient(t)
	for op, h := range handlers {
		m.On("CompleteJSON", mock.Anything, operation(op)).Return(
			func(_ context.Context, req llm.Request) (*llm.Completion, error) {
				v, err := h(req)
				if err != nil {
					return &llm.Completion{Usage: model.TokenUsage{InputTokens: 10}}, err
				}
				return completion(t, v), nil
			},
			nil,
		).Maybe()
	}
	return m
}

// seqIDs returns a deterministic ID generator.
func seqIDs() func(prefix string) string {
	var mu sync.Mutex
	counts := map[string]int{}
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		counts[prefix]++
		return fmt.Sprintf("%s_%d", prefix, counts[prefix])
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// fakeSearcher answers queries from a fixed table.
type fakeSearcher struct {
	results map[string][]search.Result
	fail    map[string]bool
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*search.Response, error) {
	if f.fail[query] {
		return nil, fmt.Errorf("search: both providers failed for %q", query)
	}
	return &search.Response{Results: f.results[query], Source: "exa", Cost: 0.005}, nil
}

// fakeScraper serves page text by URL and counts calls.
type fakeScraper struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFakeScraper(pages map[string]string) *fakeScraper {
	return &fakeScraper{pages: pages, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*scrape.Result, error) {
	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	text, ok := f.pages[url]
	if !ok {
		return nil, nil
	}
	return &scrape.Result{URL: url, Title: "Title of " + url, Text: text, Source: "firecrawl"}, nil
}

func (f *fakeScraper) Name() string         { return "fake" }
func (f *fakeScraper) Supports(string) bool { return true }

func (f *fakeScraper) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// recordingSink keeps every progress update in order.
type recordingSink struct {
	events.Nop
	mu       sync.Mutex
	progress []model.Progress
	stages   []events.StageEvent
}

func (r *recordingSink) Progress(_ context.Context, _ string, p model.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingSink) StageCompleted(_ context.Context, ev events.StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, ev)
}

func (r *recordingSink) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.progress))
	for i, p := range r.progress {
		out[i] = p.Progress
	}
	return out
}

func testDecision() model.DecisionInput {
	return model.DecisionInput{
		DecisionFrame:  "Should we enter the European mid-market payroll segment in 2026?",
		DecisionType:   model.DecisionTypeMarketEntry,
		CompanyContext: "US payroll SaaS, 400 employees",
		Constraints: []model.Constraint{
			{Category: "budget", Description: "under $5M"},
		},
	}
}

func claimsFor(n int, prefix string) []claim {
	out := make([]claim, n)
	for i := range out {
		out[i] = claim{
			Claim:            fmt.Sprintf("%s claim %d", prefix, i),
			SourceSnippet:    fmt.Sprintf("%s snippet %d", prefix, i),
			CredibilityScore: float64(50 + i),
			RelevanceScore:   float64(60 + i),
			Freshness:        model.ClaimRecent,
		}
	}
	return out
}

func draftOptions(titles ...string) []optionDraft {
	out := make([]optionDraft, len(titles))
	for i, title := range titles {
		out[i] = optionDraft{
			Title:                    title,
			Summary:                  "Summary of " + strings.ToLower(title),
			CommitsTo:                []string{"commit " + title},
			Deprioritizes:            []string{"other work"},
			PrimaryUpside:            "upside",
			PrimaryRisk:              "risk",
			Reversibility:            3,
			ReversibilityExplanation: "moderate",
			GroundedInEvidence:       []string{"ev_1", "ev_2"},
		}
	}
	return out
}

func containsLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
