package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/resilience"
	"github.com/sells-group/decision-cli/pkg/firecrawl"
	firecrawlmocks "github.com/sells-group/decision-cli/pkg/firecrawl/mocks"
)

func TestFirecrawlScraper_Names(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	assert.Equal(t, "firecrawl", NewFirecrawlScraper(client, 0).Name())
	assert.Equal(t, "firecrawl-js", NewFirecrawlJSScraper(client, 0).Name())
	assert.True(t, NewFirecrawlScraper(client, 0).Supports("https://x.com"))
}

func TestFirecrawlScraper_Success(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	client.On("Scrape", mock.Anything, firecrawl.ScrapeRequest{
		URL:             "https://acme.com/report",
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		Timeout:         30000,
	}).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			Markdown: "# Report\n\n\n\n<b>Storage</b>   doubled &amp; grew.",
			Metadata: firecrawl.PageMetadata{Title: "Report", StatusCode: 200},
		},
	}, nil)

	s := NewFirecrawlScraper(client, 30000, noSleep())
	res, err := s.Scrape(context.Background(), "https://acme.com/report")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "firecrawl", res.Source)
	assert.Equal(t, "Report", res.Title)
	assert.Equal(t, "# Report\n\nStorage doubled & grew.", res.Text)
}

func TestFirecrawlJSScraper_SendsWaitFor(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	client.On("Scrape", mock.Anything, mock.MatchedBy(func(req firecrawl.ScrapeRequest) bool {
		return req.WaitFor == firecrawl.JSWaitMs && req.OnlyMainContent
	})).Return(&firecrawl.ScrapeResponse{Success: true, Data: firecrawl.PageData{Markdown: articleBody}}, nil)

	res, err := NewFirecrawlJSScraper(client, 0, noSleep()).Scrape(context.Background(), "https://spa.example.com")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "firecrawl-js", res.Source)
}

func TestFirecrawlScraper_PermanentIsMiss(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	perm := resilience.ClassifyHTTPStatus(403, errors.New("forbidden"))
	client.On("Scrape", mock.Anything, mock.Anything).Return(nil, perm).Once()

	res, err := NewFirecrawlScraper(client, 0, noSleep()).Scrape(context.Background(), "https://acme.com")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestFirecrawlScraper_PageStatusIsMiss(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	client.On("Scrape", mock.Anything, mock.Anything).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Markdown: "Not found", Metadata: firecrawl.PageMetadata{StatusCode: 404}},
	}, nil)

	res, err := NewFirecrawlScraper(client, 0, noSleep()).Scrape(context.Background(), "https://acme.com/gone")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestFirecrawlScraper_TransientRetriedThenFails(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	transient := resilience.ClassifyHTTPStatus(502, errors.New("bad gateway"))
	client.On("Scrape", mock.Anything, mock.Anything).Return(nil, transient).Times(4)

	res, err := NewFirecrawlScraper(client, 0, noSleep()).Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, resilience.IsTransient(err))
}

func TestFirecrawlScraper_Unsuccessful(t *testing.T) {
	client := firecrawlmocks.NewMockClient(t)
	client.On("Scrape", mock.Anything, mock.Anything).Return(&firecrawl.ScrapeResponse{Success: false, Error: "timeout"}, nil)

	_, err := NewFirecrawlScraper(client, 0, noSleep()).Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
