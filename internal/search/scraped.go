package search

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Search engines answer obvious bot agents with captchas, so the scraped
// engines present a plain desktop browser.
const scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxResultPage caps how much of a result page is read.
const maxResultPage = 2 << 20

// EngineOption configures a scraped engine.
type EngineOption func(*scrapedEngine)

// WithBaseURL overrides the engine endpoint.
func WithBaseURL(u string) EngineOption {
	return func(e *scrapedEngine) {
		e.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) EngineOption {
	return func(e *scrapedEngine) {
		e.client = hc
	}
}

// scrapedEngine is the shared HTTP layer under the keyless engines.
type scrapedEngine struct {
	baseURL string
	client  *http.Client
}

func newScrapedEngine(defaultBase string, opts []EngineOption) scrapedEngine {
	e := scrapedEngine{
		baseURL: defaultBase,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// get fetches a result page. Non-200 statuses are errors so the fan-out
// client treats them as an empty set for this engine.
func (e *scrapedEngine) get(ctx context.Context, rawURL, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrapf(err, "%s: build request", name)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "%s: get", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("%s: status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultPage))
	if err != nil {
		return "", eris.Wrapf(err, "%s: read body", name)
	}
	return string(body), nil
}
