package search

import (
	"context"
	"net/url"
	"regexp"
)

const braveDefaultBaseURL = "https://search.brave.com/search"

var (
	// Matches the result container only, not snippet-description children.
	braveSplitRe  = regexp.MustCompile(`<div[^>]*class="snippet(?: [^"]*)?"`)
	braveLinkRe   = regexp.MustCompile(`(?is)<a[^>]+href="(https?://[^"]+)"`)
	braveTitleRe  = regexp.MustCompile(`(?is)<div[^>]*class="title[^"]*"[^>]*>(.*?)</div>`)
	braveDescRe   = regexp.MustCompile(`(?is)<div[^>]*class="snippet-description[^"]*"[^>]*>(.*?)</div>`)
	braveAnchorRe = regexp.MustCompile(`(?is)<a[^>]+href="https?://[^"]+"[^>]*>(.*?)</a>`)
)

// Brave scrapes the server-rendered results page.
type Brave struct {
	scrapedEngine
}

// NewBrave builds the engine. No API key required.
func NewBrave(opts ...EngineOption) *Brave {
	return &Brave{scrapedEngine: newScrapedEngine(braveDefaultBaseURL, opts)}
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query string, mode Mode) ([]Candidate, error) {
	page, err := b.get(ctx, b.baseURL+"?q="+url.QueryEscape(query), b.Name())
	if err != nil {
		return nil, err
	}

	out := b.parse(page)
	if len(out) == 0 {
		out = fallbackLinks(page, "brave.com", b.Name())
	}
	if mode == ModeProfileURL {
		out = keepProfiles(append(out, profileHits(page, b.Name())...))
	}
	return dedupByURL(out), nil
}

// parse splits the page into snippet blocks; each carries one outbound link,
// a title div, and usually a description div.
func (b *Brave) parse(page string) []Candidate {
	blocks := braveSplitRe.Split(page, -1)
	if len(blocks) < 2 {
		return nil
	}

	var out []Candidate
	for _, block := range blocks[1:] {
		link := braveLinkRe.FindStringSubmatch(block)
		if link == nil {
			continue
		}
		cand := Candidate{
			URL:    htmlUnescape(link[1]),
			Engine: b.Name(),
		}
		if title := braveTitleRe.FindStringSubmatch(block); title != nil {
			cand.Title = stripTags(title[1])
		} else if anchor := braveAnchorRe.FindStringSubmatch(block); anchor != nil {
			cand.Title = stripTags(anchor[1])
		}
		if desc := braveDescRe.FindStringSubmatch(block); desc != nil {
			cand.Snippet = stripTags(desc[1])
		}
		out = append(out, cand)
	}
	return out
}
