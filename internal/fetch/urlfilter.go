package fetch

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns drop site sections that never carry contact or
// company facts worth extracting.
var defaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/careers/*",
	"/privacy*",
	"/terms*",
}

// assetExtensions are binary or styling assets the extractor cannot read.
var assetExtensions = map[string]struct{}{
	".pdf": {}, ".zip": {}, ".gz": {}, ".doc": {}, ".docx": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".ico": {}, ".mp4": {}, ".mp3": {}, ".css": {}, ".js": {}, ".woff": {},
	".woff2": {}, ".xml": {},
}

// URLFilter decides which URLs are worth fetching at all. It drops non-HTTP
// schemes, binary assets, and glob-excluded site sections, so link-following
// from search results does not waste fetch budget on blog posts and PDFs.
type URLFilter struct {
	patterns []string
}

// NewURLFilter creates a URLFilter from glob path patterns (e.g. "/blog/*").
// Falls back to default patterns if none are provided.
func NewURLFilter(patterns []string) *URLFilter {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &URLFilter{patterns: patterns}
}

// Patterns returns the configured patterns.
func (f *URLFilter) Patterns() []string {
	return f.patterns
}

// Skip reports whether a URL should not be fetched. Unparseable URLs are
// skipped. Callers must pass absolute http(s) URLs.
func (f *URLFilter) Skip(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return true
	}
	if _, ok := assetExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return true
	}
	return f.pathExcluded(u.Path)
}

func (f *URLFilter) pathExcluded(urlPath string) bool {
	urlPath = strings.ToLower(urlPath)
	for _, pattern := range f.patterns {
		if matchSegmented(strings.ToLower(pattern), urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where a pattern like "/blog/*"
// matches both "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	// For patterns ending in "/*", also match any deeper path under the
	// pattern's directory prefix.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}

	// Trailing "*" without a slash covers variants like "/privacy-policy".
	if strings.HasSuffix(pattern, "*") && !strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(urlPath, prefix) {
			return true
		}
	}

	return false
}
