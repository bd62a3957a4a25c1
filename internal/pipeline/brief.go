package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

var citationRe = regexp.MustCompile(`\[E\d+\]`)

// BriefInput is everything the brief writer renders.
type BriefInput struct {
	Decision       model.FullDecision
	Options        []model.Option
	Scores         []model.OptionScore
	Recommendation model.Recommendation
	Evidence       []model.EvidenceCard
}

type briefDraft struct {
	Sections model.BriefSections `json:"sections"`
}

// BriefWriter produces the cited narrative brief.
type BriefWriter struct {
	llm llm.Client
	now func() time.Time
}

// NewBriefWriter creates a BriefWriter.
func NewBriefWriter(c llm.Client) *BriefWriter {
	return &BriefWriter{llm: c, now: time.Now}
}

// Write asks for the seven sections, resolves [En] citations against the
// evidence list and assembles the markdown. When no section cites anything
// every evidence item is listed and the brief is flagged.
func (w *BriefWriter) Write(ctx context.Context, in BriefInput) (*model.Brief, model.TokenUsage, error) {
	refs := make([]string, len(in.Evidence))
	for i, c := range in.Evidence {
		refs[i] = fmt.Sprintf("[E%d] %s — %s — \"%s\"", i+1, c.SourceTitle, c.SourceURL, c.SourceSnippet)
	}

	draft, usage, err := llm.Complete[briefDraft](ctx, w.llm, llm.Request{
		Operation: "write_brief",
		Tier:      llm.TierStrong,
		System:    jsonOnly,
		Prompt:    briefPrompt(in, refs),
		Schema:    llm.SchemaBrief,
	})
	if err != nil {
		return nil, usage, eris.Wrap(err, "pipeline: write brief")
	}

	used := citedIDs(draft.Sections)
	citations := make([]model.Citation, 0, len(in.Evidence))
	for i, c := range in.Evidence {
		id := fmt.Sprintf("E%d", i+1)
		if len(used) > 0 {
			if _, ok := used[id]; !ok {
				continue
			}
		}
		citations = append(citations, model.Citation{
			ID:          id,
			URL:         c.SourceURL,
			Title:       c.SourceTitle,
			AccessedAt:  c.ExtractedAt,
			SnippetHash: hashSnippet(c.SourceSnippet),
		})
	}

	unresolved := unresolvedIDs(used, len(in.Evidence))
	if len(unresolved) > 0 {
		zap.L().Warn("pipeline: brief cites evidence that does not exist",
			zap.String("decision_id", in.Decision.DecisionID),
			zap.Strings("ids", unresolved),
			zap.Int("evidence", len(in.Evidence)),
		)
	}

	fallback := len(used) == 0 && len(in.Evidence) > 0
	if fallback {
		zap.L().Warn("pipeline: brief cites no evidence, listing all sources",
			zap.String("decision_id", in.Decision.DecisionID),
			zap.Int("evidence", len(in.Evidence)),
		)
	}

	return &model.Brief{
		ID:               model.BriefID(in.Decision.DecisionID),
		DecisionID:       in.Decision.DecisionID,
		Sections:         draft.Sections,
		Citations:        citations,
		CitationFallback: fallback,
		GeneratedAt:      w.now().UTC(),
		Markdown:         RenderMarkdown(draft.Sections, citations),

		UnresolvedCitations: unresolved,
	}, usage, nil
}

// citedIDs collects the distinct E-numbers cited across all sections.
func citedIDs(s model.BriefSections) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, m := range citationRe.FindAllString(strings.Join(s.All(), "\n"), -1) {
		ids[strings.Trim(m, "[]")] = struct{}{}
	}
	return ids
}

// unresolvedIDs returns the cited ids, sorted, that are not E1..En.
func unresolvedIDs(used map[string]struct{}, n int) []string {
	var out []string
	for id := range used {
		if k, err := strconv.Atoi(strings.TrimPrefix(id, "E")); err == nil && k >= 1 && k <= n && id == fmt.Sprintf("E%d", k) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func hashSnippet(snippet string) string {
	sum := sha256.Sum256([]byte(snippet))
	return hex.EncodeToString(sum[:])
}

// RenderMarkdown assembles the brief under its fixed headings.
func RenderMarkdown(s model.BriefSections, citations []model.Citation) string {
	parts := []string{
		"# Decision Brief",
		"",
		"## Framing",
		s.Framing,
		"",
		"## Options Considered",
		s.OptionsConsidered,
		"",
		"## Evidence Summary",
		s.EvidenceSummary,
		"",
		"## Assumptions Ledger",
		s.AssumptionsLedger,
		"",
		"## Recommendation",
		s.Recommendation,
		"",
		"## Open Questions",
		s.OpenQuestions,
		"",
		"## Metadata",
		s.Metadata,
		"",
		"## Citations",
	}
	for _, c := range citations {
		parts = append(parts, fmt.Sprintf("- [%s] %s — %s", c.ID, c.Title, c.URL))
	}
	return strings.Join(parts, "\n")
}
