package fetch

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/SFZPL/lead-automation-system-sub000/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; LeadEnrichBot/1.0)"

// LocalOptions configures the local HTTP fetcher.
type LocalOptions struct {
	UserAgent string
	Timeout   time.Duration
	MaxBody   int64 // byte cap on response bodies
}

// LocalFetcher fetches HTML via net/http, decodes the charset, detects
// blocks, and converts to plaintext. Free, no API calls. Falls through to
// Jina/Firecrawl when blocked.
type LocalFetcher struct {
	client *http.Client
	opts   LocalOptions
	retry  resilience.RetryConfig
}

// NewLocalFetcher creates a LocalFetcher with sensible defaults.
func NewLocalFetcher(opts LocalOptions) *LocalFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 2 << 20
	}
	return &LocalFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		opts: opts,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			OnRetry:     resilience.RetryLogger("local_http", "fetch"),
		},
	}
}

func (l *LocalFetcher) Name() string { return "local_http" }

// Supports skips hosts that answer plain HTTP with a login wall every time;
// the reader services get further there.
func (l *LocalFetcher) Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com")
}

// Fetch fetches a URL with retry on 429/5xx, detects blocks, and strips
// HTML to plaintext.
func (l *LocalFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*Page, error) {
		return l.fetchOnce(ctx, targetURL)
	})
}

func (l *LocalFetcher) fetchOnce(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.opts.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.opts.MaxBody))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	// Block detection first: a cf-ray 403 is a block, not a plain 403.
	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if resp.StatusCode >= 400 {
		statusErr := eris.Errorf("local_http: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransient(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	body = decodeCharset(body, resp.Header.Get("Content-Type"))

	return &Page{
		URL:        targetURL,
		Title:      extractTitle(body),
		Text:       stripHTML(string(body)),
		HTML:       string(body),
		Source:     "local_http",
		StatusCode: resp.StatusCode,
	}, nil
}

// decodeCharset converts the body to UTF-8 using the charset declared in the
// Content-Type header. Missing or unknown charsets leave the body unchanged.
func decodeCharset(body []byte, contentType string) []byte {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	name := strings.ToLower(params["charset"])
	if name == "" || name == "utf-8" || name == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return body
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return body
	}
	return decoded
}

var titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext suitable for extraction.
func stripHTML(html string) string {
	// Remove script, style, nav, footer blocks entirely.
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	// Strip remaining HTML tags.
	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	// Decode common HTML entities.
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	// Collapse runs of spaces and blank lines.
	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
