package enrich

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/apify"
)

// LinkedInAdapter scrapes the lead's professional profile through the actor
// service. Scraped profiles are cached by handle so reruns inside the TTL
// don't spend actor credits.
type LinkedInAdapter struct {
	scraper apify.Client
	cache   ProfileCache

	disabledOnce sync.Once
}

// NewLinkedInAdapter builds the direct profile adapter. A nil scraper
// disables it for the run; a nil cache only disables caching.
func NewLinkedInAdapter(scraper apify.Client, cache ProfileCache) *LinkedInAdapter {
	return &LinkedInAdapter{scraper: scraper, cache: cache}
}

func (a *LinkedInAdapter) Name() string   { return "linkedin" }
func (a *LinkedInAdapter) Source() string { return model.SourceLinkedIn }

// Enrich scrapes the profile URL already on the record, if any.
func (a *LinkedInAdapter) Enrich(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error) {
	raw := strings.TrimSpace(rec.ProfileURL)
	if raw == "" {
		return model.NewFieldBag(), nil
	}
	if !search.IsProfileURL(raw) {
		zap.L().Debug("linkedin: not a profile url", zap.String("url", raw))
		return model.NewFieldBag(), nil
	}
	return a.scrape(ctx, raw), nil
}

// scrape runs one profile URL through cache and scraper. Shared with the
// search-mode adapter, which probes candidate URLs directly.
func (a *LinkedInAdapter) scrape(ctx context.Context, profileURL string) model.FieldBag {
	bag := model.NewFieldBag()

	if a.scraper == nil {
		a.disabledOnce.Do(func() {
			zap.L().Warn("linkedin: scraping service not configured, adapter disabled")
		})
		return bag
	}

	handle := profileHandle(profileURL)
	if handle == "" {
		return bag
	}
	log := zap.L().With(zap.String("handle", handle))

	if p, ok := a.cached(ctx, handle); ok {
		log.Debug("linkedin: profile cache hit")
		return profileBag(p)
	}

	profiles, err := a.scraper.ScrapeProfiles(ctx, []string{profileURL})
	if err != nil {
		log.Debug("linkedin: scrape failed", zap.Error(err))
		return bag
	}
	if len(profiles) == 0 {
		log.Debug("linkedin: scrape returned no profile")
		return bag
	}

	a.putCached(ctx, handle, profiles[0])
	return profileBag(profiles[0])
}

func (a *LinkedInAdapter) cached(ctx context.Context, handle string) (apify.Profile, bool) {
	if a.cache == nil {
		return apify.Profile{}, false
	}
	payload, err := a.cache.CachedProfile(ctx, handle)
	if err != nil {
		zap.L().Debug("linkedin: cache read failed", zap.String("handle", handle), zap.Error(err))
		return apify.Profile{}, false
	}
	if len(payload) == 0 {
		return apify.Profile{}, false
	}
	var p apify.Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		zap.L().Debug("linkedin: cache payload corrupt", zap.String("handle", handle), zap.Error(err))
		return apify.Profile{}, false
	}
	return p, true
}

func (a *LinkedInAdapter) putCached(ctx context.Context, handle string, p apify.Profile) {
	if a.cache == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := a.cache.PutCachedProfile(ctx, handle, payload); err != nil {
		zap.L().Debug("linkedin: cache write failed", zap.String("handle", handle), zap.Error(err))
	}
}

// profileHandle extracts the handle segment from a profile URL:
// https://www.linkedin.com/in/jane-doe-1b2c3 -> jane-doe-1b2c3.
func profileHandle(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p != "in" || i+1 >= len(parts) {
			continue
		}
		h, escErr := url.PathUnescape(parts[i+1])
		if escErr != nil {
			h = parts[i+1]
		}
		return strings.ToLower(h)
	}
	return ""
}

// profileBag normalizes a scraped profile into a bag. The headline covers
// for missing title/company fields ("VP of Engineering at Acme Corp").
func profileBag(p apify.Profile) model.FieldBag {
	bag := model.NewFieldBag()

	title, company := splitHeadline(p.Headline)
	if p.JobTitle != "" {
		title = p.JobTitle
	}
	if p.CompanyName != "" {
		company = p.CompanyName
	}

	bag.Set(model.FieldFullName, p.FullName)
	bag.Set(model.FieldJobTitle, title)
	bag.Set(model.FieldCompanyName, company)
	bag.Set(model.FieldIndustry, p.Industry)
	bag.Set(model.FieldCompanySize, p.CompanySize)
	bag.Set(model.FieldLocation, p.Location)
	bag.Set(model.FieldProfileURL, p.URL)

	if p.Connections > 0 {
		bag.SetExtra("connections", strconv.Itoa(p.Connections))
	}
	bag.SetExtra("bio", truncateBio(p.About))

	return bag
}

// splitHeadline splits "VP of Engineering at Acme Corp" into title and
// company. Trailing headline flair after "|" is dropped first.
func splitHeadline(headline string) (title, company string) {
	h := strings.TrimSpace(headline)
	if i := strings.Index(h, "|"); i > 0 {
		h = strings.TrimSpace(h[:i])
	}
	if h == "" {
		return "", ""
	}
	for _, sep := range []string{" at ", " @ "} {
		if i := strings.Index(h, sep); i > 0 {
			return strings.TrimSpace(h[:i]), strings.TrimSpace(h[i+len(sep):])
		}
	}
	return h, ""
}

const maxBioLen = 500

// truncateBio caps the profile about-text for the extras map, cutting at a
// word boundary.
func truncateBio(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxBioLen {
		return s
	}
	cut := s[:maxBioLen]
	if i := strings.LastIndexByte(cut, ' '); i > maxBioLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
