package search

import (
	"context"
	"net/url"
	"regexp"
)

const bingDefaultBaseURL = "https://www.bing.com/search"

var (
	bingLinkRe    = regexp.MustCompile(`(?is)<h2[^>]*>\s*<a[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	bingCaptionRe = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	bingSplitRe   = regexp.MustCompile(`<li[^>]*class="b_algo`)
)

// Bing scrapes the standard web results page.
type Bing struct {
	scrapedEngine
}

// NewBing builds the engine. No API key required.
func NewBing(opts ...EngineOption) *Bing {
	return &Bing{scrapedEngine: newScrapedEngine(bingDefaultBaseURL, opts)}
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) Search(ctx context.Context, query string, mode Mode) ([]Candidate, error) {
	page, err := b.get(ctx, b.baseURL+"?q="+url.QueryEscape(query)+"&count=20", b.Name())
	if err != nil {
		return nil, err
	}

	out := b.parse(page)
	if len(out) == 0 {
		out = fallbackLinks(page, "bing.com", b.Name())
	}
	if mode == ModeProfileURL {
		out = keepProfiles(append(out, profileHits(page, b.Name())...))
	}
	return dedupByURL(out), nil
}

// parse splits the page into b_algo result blocks and pulls the heading
// link and caption out of each.
func (b *Bing) parse(page string) []Candidate {
	blocks := bingSplitRe.Split(page, -1)
	if len(blocks) < 2 {
		return nil
	}

	var out []Candidate
	for _, block := range blocks[1:] {
		m := bingLinkRe.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		cand := Candidate{
			URL:    htmlUnescape(m[1]),
			Title:  stripTags(m[2]),
			Engine: b.Name(),
		}
		if caption := bingCaptionRe.FindStringSubmatch(block); caption != nil {
			cand.Snippet = stripTags(caption[1])
		}
		out = append(out, cand)
	}
	return out
}
