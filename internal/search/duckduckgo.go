package search

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

const duckDefaultBaseURL = "https://html.duckduckgo.com/html/"

var (
	duckResultRe  = regexp.MustCompile(`(?is)<a[^>]*class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	duckSnippetRe = regexp.MustCompile(`(?is)<a[^>]*class="result__snippet"[^>]*>(.*?)</a>`)
)

// DuckDuckGo scrapes the no-JavaScript HTML endpoint.
type DuckDuckGo struct {
	scrapedEngine
}

// NewDuckDuckGo builds the engine. No API key required.
func NewDuckDuckGo(opts ...EngineOption) *DuckDuckGo {
	return &DuckDuckGo{scrapedEngine: newScrapedEngine(duckDefaultBaseURL, opts)}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, mode Mode) ([]Candidate, error) {
	page, err := d.get(ctx, d.baseURL+"?q="+url.QueryEscape(query), d.Name())
	if err != nil {
		return nil, err
	}

	out := d.parse(page)
	if len(out) == 0 {
		out = fallbackLinks(page, "duckduckgo.com", d.Name())
	}
	if mode == ModeProfileURL {
		out = keepProfiles(append(out, profileHits(page, d.Name())...))
	}
	return dedupByURL(out), nil
}

// parse extracts structured result blocks. Result links are wrapped in a
// redirect whose uddg parameter carries the real URL.
func (d *DuckDuckGo) parse(page string) []Candidate {
	links := duckResultRe.FindAllStringSubmatch(page, -1)
	snippets := duckSnippetRe.FindAllStringSubmatch(page, -1)

	var out []Candidate
	for i, m := range links {
		cand := Candidate{
			URL:    decodeDuckHref(htmlUnescape(m[1])),
			Title:  stripTags(m[2]),
			Engine: d.Name(),
		}
		if i < len(snippets) {
			cand.Snippet = stripTags(snippets[i][1])
		}
		out = append(out, cand)
	}
	return out
}

// decodeDuckHref unwraps the /l/?uddg= redirect around result URLs.
func decodeDuckHref(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if real := u.Query().Get("uddg"); real != "" {
		return real
	}
	return href
}
