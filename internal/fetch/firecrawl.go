package fetch

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/SFZPL/lead-automation-system-sub000/internal/resilience"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/firecrawl"
)

// FirecrawlFetcher wraps a Firecrawl client as the last fetcher in the chain.
// It retries transient API errors with backoff before giving up.
type FirecrawlFetcher struct {
	client firecrawl.Client
	retry  resilience.RetryConfig
}

// NewFirecrawlFetcher creates a FirecrawlFetcher from a Firecrawl client.
func NewFirecrawlFetcher(client firecrawl.Client) *FirecrawlFetcher {
	return &FirecrawlFetcher{
		client: client,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			OnRetry:     resilience.RetryLogger("firecrawl", "scrape"),
		},
	}
}

// Name implements Fetcher.
func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

// Supports returns true. Firecrawl can attempt any URL as a fallback.
func (f *FirecrawlFetcher) Supports(_ string) bool { return true }

// Fetch scrapes a single URL via Firecrawl, rendered as markdown.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             targetURL,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
		if err != nil {
			var apiErr *firecrawl.APIError
			if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
				return nil, resilience.NewTransient(err, apiErr.StatusCode)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.New("firecrawl: scrape not successful")
	}

	title := resp.Data.Title
	if title == "" {
		title = resp.Data.Metadata.Title
	}
	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = resp.Data.Metadata.SourceURL
	}
	if pageURL == "" {
		pageURL = targetURL
	}

	return &Page{
		URL:        pageURL,
		Title:      title,
		Text:       resp.Data.Markdown,
		Source:     "firecrawl",
		StatusCode: resp.Data.StatusCode,
	}, nil
}
