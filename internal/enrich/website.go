package enrich

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/extract"
	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
)

// WebsiteAdapter mines the lead's company website. The URL comes from the
// website field when set, otherwise from the email domain. The LLM extractor
// runs first when configured; heuristics always run and fill what it missed.
type WebsiteAdapter struct {
	fetcher PageFetcher
	llm     *extract.LLMExtractor
}

// NewWebsiteAdapter builds the website adapter. llm may be nil.
func NewWebsiteAdapter(fetcher PageFetcher, llm *extract.LLMExtractor) *WebsiteAdapter {
	return &WebsiteAdapter{fetcher: fetcher, llm: llm}
}

func (a *WebsiteAdapter) Name() string   { return "website" }
func (a *WebsiteAdapter) Source() string { return model.SourceWeb }

// Enrich fetches the company site and extracts what it can. Fetch failures
// cost the lead nothing but this source.
func (a *WebsiteAdapter) Enrich(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error) {
	bag := model.NewFieldBag()

	target := siteURL(rec)
	if target == "" {
		zap.L().Debug("website: no usable url", zap.String("lead", rec.ID))
		return bag, nil
	}

	page, err := a.fetcher.Fetch(ctx, target)
	if err != nil || page.Empty() {
		zap.L().Debug("website: fetch failed", zap.String("url", target), zap.Error(err))
		return bag, nil
	}

	if a.llm.Configured() {
		fold(bag, a.llm.Extract(ctx, page, rec))
	}
	fold(bag, extract.FromPage(page))

	if about := aboutURL(page); about != "" {
		if aboutPage, aboutErr := a.fetcher.Fetch(ctx, about); aboutErr == nil && !aboutPage.Empty() {
			fold(bag, extract.FromPage(aboutPage))
		}
	}

	return bag, nil
}

// siteURL picks the URL to fetch: the website field, else the email domain
// when it is not a consumer mail provider.
func siteURL(rec *model.LeadRecord) string {
	if w := strings.TrimSpace(rec.Website); w != "" {
		if !strings.Contains(w, "://") {
			w = "https://" + w
		}
		if u, err := url.Parse(w); err == nil && u.Host != "" {
			return w
		}
		return ""
	}
	domain := rec.EmailDomain()
	if domain == "" || isPublicMailProvider(domain) {
		return ""
	}
	return "https://" + domain
}

var aboutHrefRe = regexp.MustCompile(`(?i)href="([^"#]*(?:about|company|our-story|our-team|who-we-are)[^"#]*)"`)

// aboutURL finds one same-host about/company link worth a second fetch.
// Only local fetches carry HTML; reader-service pages skip the follow-up.
func aboutURL(page *fetch.Page) string {
	if page.HTML == "" {
		return ""
	}
	base, err := url.Parse(page.URL)
	if err != nil || base.Host == "" {
		return ""
	}
	for _, m := range aboutHrefRe.FindAllStringSubmatch(page.HTML, 8) {
		href := strings.ReplaceAll(m[1], "&amp;", "&")
		ref, refErr := url.Parse(href)
		if refErr != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host || resolved.String() == page.URL {
			continue
		}
		return resolved.String()
	}
	return ""
}
