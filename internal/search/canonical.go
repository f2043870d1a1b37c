package search

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization, on
// top of the utm_ prefix family.
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"trk":     true,
}

// CanonicalURL normalizes a URL for deduplication: scheme and host are
// lowercased, tracking parameters, fragments, and the trailing slash are
// stripped. Returns "" for anything that is not a usable http(s) URL, which
// callers treat as "drop this candidate".
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
