package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
)

// maxProfileAttempts bounds scrape attempts per query in search mode.
const maxProfileAttempts = 3

// LinkedInSearchAdapter hunts for a profile when the lead has no URL:
// name/company query variants through the search client in profile mode,
// then the direct adapter's scraper against the top candidates.
type LinkedInSearchAdapter struct {
	searcher Searcher
	direct   *LinkedInAdapter
}

// NewLinkedInSearchAdapter builds the search-mode profile adapter. It shares
// the direct adapter so cache and scraper configuration stay in one place.
func NewLinkedInSearchAdapter(searcher Searcher, direct *LinkedInAdapter) *LinkedInSearchAdapter {
	return &LinkedInSearchAdapter{searcher: searcher, direct: direct}
}

func (a *LinkedInSearchAdapter) Name() string   { return "linkedin_search" }
func (a *LinkedInSearchAdapter) Source() string { return model.SourceLinkedInSearch }

// Enrich tries each query variant until one candidate scrapes into a profile
// that plausibly belongs to the lead.
func (a *LinkedInSearchAdapter) Enrich(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error) {
	bag := model.NewFieldBag()
	if a.searcher == nil || a.direct == nil {
		return bag, nil
	}

	queries := profileQueries(rec)
	if len(queries) == 0 {
		return bag, nil
	}

	tried := make(map[string]struct{})
	for _, q := range queries {
		if ctx.Err() != nil {
			return bag, nil
		}

		attempts := 0
		for _, c := range a.searcher.Search(ctx, q, search.ModeProfileURL) {
			if attempts >= maxProfileAttempts {
				break
			}
			key := search.CanonicalURL(c.URL)
			if key == "" {
				key = c.URL
			}
			if _, seen := tried[key]; seen {
				continue
			}
			tried[key] = struct{}{}
			if !search.IsProfileURL(c.URL) {
				continue
			}
			attempts++

			got := a.direct.scrape(ctx, c.URL)
			if got.Len() == 0 {
				continue
			}
			if !nameMatches(rec.FullName, got.Get(model.FieldFullName)) {
				zap.L().Debug("linkedin_search: candidate name mismatch",
					zap.String("url", c.URL),
					zap.String("got", got.Get(model.FieldFullName)),
				)
				continue
			}
			zap.L().Debug("linkedin_search: profile found",
				zap.String("query", q),
				zap.String("url", c.URL),
			)
			return got, nil
		}
	}
	return bag, nil
}

// profileQueries builds the searches most likely to surface the lead's
// profile. Company variants run first; bare-name is the long shot.
func profileQueries(rec *model.LeadRecord) []string {
	name := strings.TrimSpace(rec.FullName)
	if name == "" {
		return nil
	}
	var queries []string
	if company := strings.TrimSpace(rec.CompanyName); company != "" {
		queries = append(queries, fmt.Sprintf("%q %q site:linkedin.com/in", name, company))
		if short := normalizeCompany(company); short != "" && !strings.EqualFold(short, company) {
			queries = append(queries, fmt.Sprintf("%q %s linkedin", name, short))
		}
	}
	return append(queries, fmt.Sprintf("%q linkedin profile", name))
}

// nameMatches guards against merging the wrong person: when both names are
// known they must share at least one token.
func nameMatches(want, got string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	got = strings.ToLower(strings.TrimSpace(got))
	if want == "" || got == "" {
		return true
	}
	gotTokens := make(map[string]struct{})
	for _, t := range strings.Fields(got) {
		gotTokens[strings.Trim(t, ".,")] = struct{}{}
	}
	for _, t := range strings.Fields(want) {
		if _, ok := gotTokens[strings.Trim(t, ".,")]; ok {
			return true
		}
	}
	return false
}
