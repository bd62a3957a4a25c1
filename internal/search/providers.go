package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/pkg/exa"
	"github.com/sells-group/decision-cli/pkg/jina"
	"github.com/sells-group/decision-cli/pkg/tavily"
)

// maxSnippetRunes bounds snippets built from full page content.
const maxSnippetRunes = 500

// ExaProvider runs neural searches through Exa. Highlights become the snippet.
type ExaProvider struct {
	client exa.Client
	adapter
}

// NewExaProvider wraps an Exa client.
func NewExaProvider(client exa.Client, opts ...Option) *ExaProvider {
	return &ExaProvider{client: client, adapter: newAdapter("exa", opts)}
}

// Name implements Provider.
func (p *ExaProvider) Name() string { return p.name }

// Search implements Provider.
func (p *ExaProvider) Search(ctx context.Context, query string) (*Response, error) {
	resp, err := call(ctx, p.adapter, func(ctx context.Context) (*exa.SearchResponse, error) {
		return p.client.Search(ctx, exa.SearchRequest{
			Query:      query,
			NumResults: p.numResults,
			Type:       "neural",
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: exa")
	}

	out := &Response{Source: p.name, Cost: p.price(), Results: make([]Result, 0, len(resp.Results))}
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			URL:           r.URL,
			Title:         r.Title,
			Snippet:       clip(firstNonEmpty(strings.Join(r.Highlights, " "), r.Snippet, r.Text)),
			PublishedDate: parseDate(r.Published()),
		})
	}
	return out, nil
}

// TavilyProvider runs advanced-depth searches through Tavily.
type TavilyProvider struct {
	client tavily.Client
	adapter
}

// NewTavilyProvider wraps a Tavily client.
func NewTavilyProvider(client tavily.Client, opts ...Option) *TavilyProvider {
	return &TavilyProvider{client: client, adapter: newAdapter("tavily", opts)}
}

// Name implements Provider.
func (p *TavilyProvider) Name() string { return p.name }

// Search implements Provider.
func (p *TavilyProvider) Search(ctx context.Context, query string) (*Response, error) {
	resp, err := call(ctx, p.adapter, func(ctx context.Context) (*tavily.SearchResponse, error) {
		return p.client.Search(ctx, tavily.SearchRequest{
			Query:       query,
			MaxResults:  p.numResults,
			SearchDepth: "advanced",
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: tavily")
	}

	out := &Response{Source: p.name, Cost: p.price(), Results: make([]Result, 0, len(resp.Results))}
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			URL:           r.URL,
			Title:         r.Title,
			Snippet:       clip(firstNonEmpty(r.Content, r.Snippet)),
			PublishedDate: parseDate(r.PublishedDate),
		})
	}
	return out, nil
}

// JinaProvider searches through Jina Search. Jina returns no dates.
type JinaProvider struct {
	client jina.Client
	adapter
}

// NewJinaProvider wraps a Jina client.
func NewJinaProvider(client jina.Client, opts ...Option) *JinaProvider {
	return &JinaProvider{client: client, adapter: newAdapter("jina", opts)}
}

// Name implements Provider.
func (p *JinaProvider) Name() string { return p.name }

// Search implements Provider.
func (p *JinaProvider) Search(ctx context.Context, query string) (*Response, error) {
	resp, err := call(ctx, p.adapter, func(ctx context.Context) (*jina.SearchResponse, error) {
		return p.client.Search(ctx, query, jina.WithCount(p.numResults))
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}

	out := &Response{Source: p.name, Cost: p.price(), Results: make([]Result, 0, len(resp.Data))}
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: clip(firstNonEmpty(r.Description, r.Content)),
		})
	}
	return out, nil
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxSnippetRunes]))
}
