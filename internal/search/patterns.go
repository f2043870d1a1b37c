package search

import (
	"regexp"
	"strings"
)

// profileURLRe matches professional-network profile URLs, including
// country-subdomain variants, up to the handle.
var profileURLRe = regexp.MustCompile(`https?://(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9%_.\-]+`)

// IsProfileURL reports whether a URL points at a person profile.
func IsProfileURL(raw string) bool {
	m := profileURLRe.FindString(raw)
	// Anchored match only: a profile URL buried in a redirect query string
	// does not make the outer URL a profile.
	return m != "" && strings.HasPrefix(strings.TrimSpace(raw), m)
}

// profileHits scans raw page text for profile URLs that the structured
// result parse may have missed (links inside snippets, sidebars).
func profileHits(page, engine string) []Candidate {
	var out []Candidate
	for _, m := range profileURLRe.FindAllString(page, -1) {
		out = append(out, Candidate{URL: m, Engine: engine})
	}
	return out
}

// keepProfiles filters candidates down to profile URLs, trimming each to the
// bare scheme+host+handle so tracking suffixes never reach the caller.
func keepProfiles(in []Candidate) []Candidate {
	var out []Candidate
	for _, c := range in {
		m := profileURLRe.FindString(c.URL)
		if m == "" || !strings.HasPrefix(strings.TrimSpace(c.URL), m) {
			continue
		}
		c.URL = m
		out = append(out, c)
	}
	return out
}

// dedupByURL drops later candidates whose canonical URL was already seen,
// so a hit found both structurally and in the raw-text scan counts once.
func dedupByURL(in []Candidate) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, c := range in {
		key := CanonicalURL(c.URL)
		if key == "" {
			key = c.URL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

var hrefRe = regexp.MustCompile(`(?i)<a[^>]+href="(https?://[^"]+)"`)

// fallbackLinks extracts external hrefs from a result page when the
// structured parse found nothing, e.g. after an engine layout change. Links
// back to the engine itself are dropped.
func fallbackLinks(page, selfHost, engine string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, m := range hrefRe.FindAllStringSubmatch(page, -1) {
		link := htmlUnescape(m[1])
		if strings.Contains(link, selfHost) || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, Candidate{URL: link, Engine: engine})
	}
	return out
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&nbsp;", " ",
)

// stripTags removes markup and entities from result titles and snippets.
func stripTags(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// htmlUnescape resolves entities inside attribute values, where engines
// escape ampersands in result hrefs.
func htmlUnescape(s string) string {
	return entityReplacer.Replace(s)
}
