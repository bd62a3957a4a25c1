// Package exa provides a client for the Exa neural search API.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/resilience"
)

const (
	defaultBaseURL    = "https://api.exa.ai"
	defaultNumResults = 10
	defaultSearchType = "neural"
)

// Client performs searches against the Exa API.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the body for POST /search.
type SearchRequest struct {
	Query          string   `json:"query"`
	NumResults     int      `json:"num_results"`
	Type           string   `json:"type"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
	StartPublished string   `json:"startPublishedDate,omitempty"`
}

// SearchResponse is the response from POST /search.
type SearchResponse struct {
	RequestID string   `json:"requestId"`
	Results   []Result `json:"results"`
}

// Result is a single Exa hit. Exa has shipped both snake and camel case
// date fields, so both are decoded.
type Result struct {
	URL                string   `json:"url"`
	Title              string   `json:"title"`
	Snippet            string   `json:"snippet"`
	Text               string   `json:"text"`
	Highlights         []string `json:"highlights"`
	PublishedDate      string   `json:"publishedDate"`
	PublishedDateSnake string   `json:"published_date"`
	Score              float64  `json:"score"`
}

// Published returns whichever published date field is populated.
func (r Result) Published() string {
	if r.PublishedDate != "" {
		return r.PublishedDate
	}
	return r.PublishedDateSnake
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exa: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Exa API client.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if err := resilience.RequireKey("exa", apiKey); err != nil {
		return nil, err
	}
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.NumResults <= 0 {
		req.NumResults = defaultNumResults
	}
	if req.Type == "" {
		req.Type = defaultSearchType
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "exa: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "exa: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "exa: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "exa: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.ClassifyHTTPStatus(resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}), "exa: search")
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "exa: unmarshal response")
	}

	return &result, nil
}
