// Package fetch turns URLs into plaintext pages for field extraction.
// Fetchers are chained in cost order: plain HTTP first, then the Jina
// reader, then Firecrawl. The first fetcher that returns usable content
// wins; anti-bot blocks and thin responses fall through to the next.
package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Page holds one fetched web page reduced to text. HTML carries the raw
// document only when the local fetcher produced the page; the reader
// services return markdown and leave it empty.
type Page struct {
	URL        string
	Title      string
	Text       string
	HTML       string
	Source     string // e.g. "local_http", "jina", "firecrawl"
	StatusCode int
}

// Empty reports whether the page carries no usable text.
func (p *Page) Empty() bool {
	return p == nil || strings.TrimSpace(p.Text) == ""
}

// Fetcher fetches a single URL and returns its content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
	Supports(url string) bool
}

// Chain tries fetchers in priority order, returning the first success.
type Chain struct {
	filter   *URLFilter
	fetchers []Fetcher
}

// NewChain creates a Chain with the given URL filter and fetchers.
// Fetchers are tried in order; the first successful page is returned.
func NewChain(filter *URLFilter, fetchers ...Fetcher) *Chain {
	if filter == nil {
		filter = NewURLFilter(nil)
	}
	return &Chain{filter: filter, fetchers: fetchers}
}

// Fetch tries each fetcher in order for a single URL.
// Returns the first successful page, or an error if all fail.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if c.filter.Skip(targetURL) {
		return nil, eris.Errorf("fetch: url skipped by filter: %s", targetURL)
	}

	var lastErr error
	for _, f := range c.fetchers {
		if !f.Supports(targetURL) {
			continue
		}
		page, err := f.Fetch(ctx, targetURL)
		if err == nil && page != nil {
			return page, nil
		}
		if err != nil {
			zap.L().Debug("fetch: fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
		// A dead context means the lead budget is spent; stop burning
		// fallbacks that would fail the same way.
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "fetch: all fetchers failed")
	}
	return nil, eris.Errorf("fetch: no fetcher for url: %s", targetURL)
}

// FetchAll fetches multiple URLs in parallel through the chain.
// maxConcurrent controls the concurrency limit. Failed URLs are skipped.
func (c *Chain) FetchAll(ctx context.Context, urls []string, maxConcurrent int) []Page {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	var (
		mu    sync.Mutex
		pages []Page
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, u := range urls {
		g.Go(func() error {
			page, err := c.Fetch(gCtx, u)
			if err != nil {
				zap.L().Debug("fetch: chain failed for url",
					zap.String("url", u),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			pages = append(pages, *page)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return pages
}
