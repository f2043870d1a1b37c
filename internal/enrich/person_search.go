package enrich

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/SFZPL/lead-automation-system-sub000/internal/extract"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
)

const (
	// maxLinkFollows bounds follow-up fetches of bio-looking result pages.
	maxLinkFollows = 3
	maxTitleLen    = 60
)

// PersonSearchAdapter mines general web search results for the person: role
// phrases near their name, a profile URL if one surfaces, and co-occurrence
// confirmation that they belong to the company on record.
type PersonSearchAdapter struct {
	searcher Searcher
	fetcher  PageFetcher
}

// NewPersonSearchAdapter builds the person-search adapter. fetcher may be
// nil, which disables follow-up page fetches.
func NewPersonSearchAdapter(searcher Searcher, fetcher PageFetcher) *PersonSearchAdapter {
	return &PersonSearchAdapter{searcher: searcher, fetcher: fetcher}
}

func (a *PersonSearchAdapter) Name() string   { return "person_search" }
func (a *PersonSearchAdapter) Source() string { return model.SourcePersonSearch }

// Enrich runs the query variants and scans results until the high-value
// signals (role and profile URL) are in hand or the variants run out.
func (a *PersonSearchAdapter) Enrich(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error) {
	bag := model.NewFieldBag()
	if a.searcher == nil {
		return bag, nil
	}
	name := strings.TrimSpace(rec.FullName)
	if name == "" {
		return bag, nil
	}

	var texts []string
	follows := 0
	for _, q := range personQueries(rec) {
		if ctx.Err() != nil {
			break
		}
		for _, c := range a.searcher.Search(ctx, q, search.ModeGeneralInfo) {
			text := strings.TrimSpace(c.Title + " " + c.Snippet)
			texts = append(texts, text)

			if bag.Get(model.FieldProfileURL) == "" && search.IsProfileURL(c.URL) {
				bag.Set(model.FieldProfileURL, c.URL)
			}
			if bag.Get(model.FieldJobTitle) == "" {
				bag.Set(model.FieldJobTitle, titleNear(text, name))
			}

			if follows < maxLinkFollows && a.fetcher != nil && looksLikeBioPage(c.URL) {
				follows++
				if page, err := a.fetcher.Fetch(ctx, c.URL); err == nil && !page.Empty() && !extract.IsLoginWall(page.Text) {
					texts = append(texts, page.Text)
					fold(bag, extract.FromText(page.Text))
					if bag.Get(model.FieldJobTitle) == "" {
						bag.Set(model.FieldJobTitle, titleNear(page.Text, name))
					}
				}
			}
		}
		if bag.Get(model.FieldJobTitle) != "" && bag.Get(model.FieldProfileURL) != "" {
			break
		}
	}

	all := strings.Join(texts, "\n")
	if hint := industryHint(all); hint != "" {
		bag.SetExtra("industry_hint", hint)
	}
	if confirmsCompany(all, name, rec.CompanyName) {
		bag.SetExtra("company_confirmed", "true")
	}
	return bag, nil
}

// personQueries builds the free-text variants: role-focused, domain-focused,
// then bare name.
func personQueries(rec *model.LeadRecord) []string {
	name := strings.TrimSpace(rec.FullName)
	var queries []string
	if company := strings.TrimSpace(rec.CompanyName); company != "" {
		queries = append(queries, fmt.Sprintf("%q %q role OR title OR founder OR director", name, company))
	}
	if domain := rec.EmailDomain(); domain != "" && !isPublicMailProvider(domain) {
		queries = append(queries, fmt.Sprintf("%q %s", name, domain))
	}
	return append(queries, fmt.Sprintf("%q", name))
}

// roleKeywordRe gates the loose name-dash-phrase pattern: without a role
// word the captured phrase is usually a company or a location.
var roleKeywordRe = regexp.MustCompile(`(?i)\b(chief|officer|president|founder|co-founder|owner|partner|principal|director|manager|lead|head|vp|vice president|engineer|developer|architect|consultant|analyst|specialist|coordinator|executive|ceo|cto|cfo|coo|cmo)\b`)

// titleNear scans text for a role phrase adjacent to the person's name.
// Patterns cover the forms search snippets actually use: "Jane Doe,
// Marketing Lead at Acme", "Jane Doe is the VP of Sales at Acme", "Jane Doe
// - Chief Executive Officer". Commas are excluded from the capture so list
// constructions don't swallow neighbouring names.
func titleNear(text, name string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(name) == "" {
		return ""
	}
	quoted := `(?i:` + regexp.QuoteMeta(name) + `)`
	patterns := []string{
		quoted + `\s*[,–—-]\s*([A-Z][^,.;!?\n|•]{1,60}?)\s+(?:at|@|of|for|with)\s+`,
		quoted + `\s+is\s+(?:the\s+|an?\s+)?([A-Z][^,.;!?\n|•]{1,60}?)\s+(?:at|of|for|with)\s+`,
		quoted + `\s*[,–—-]\s*([A-Z][^,.;!?\n|•]{1,60})`,
	}
	for i, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		title := cleanTitle(m[1])
		if title == "" {
			continue
		}
		if i == len(patterns)-1 && !roleKeywordRe.MatchString(title) {
			continue
		}
		return title
	}
	return ""
}

// cleanTitle trims stray connectives and punctuation off a captured role.
func cleanTitle(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	for _, suffix := range []string{" at", " of", " for", " with"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.TrimSpace(s)
	if len(s) < 3 || len(s) > maxTitleLen {
		return ""
	}
	return s
}

var bioPathRe = regexp.MustCompile(`(?i)/(about|team|people|leadership|staff|our-team|meet|bio|profile|author)(?:[/-]|\.|$)`)

// looksLikeBioPage reports whether a result URL is worth fetching for person
// context. Profile URLs are excluded: those need the scraping service, not a
// plain fetch.
func looksLikeBioPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if search.IsProfileURL(raw) {
		return false
	}
	return bioPathRe.MatchString(u.Path)
}

var companySuffixRe = regexp.MustCompile(`(?i)\s*,?\s*(llc|l\.l\.c\.|inc\.?|incorporated|corp\.?|corporation|co\.?|company|ltd\.?|limited|llp|lp|pllc|p\.c\.|group|holdings)\s*\.?\s*$`)

// normalizeCompany strips legal suffixes and folds whitespace for loose
// matching: "Acme Corp, LLC" -> "acme".
func normalizeCompany(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for {
		stripped := companySuffixRe.ReplaceAllString(n, "")
		if stripped == n {
			break
		}
		n = stripped
	}
	return strings.Join(strings.Fields(n), " ")
}

// confirmsCompany reports whether the person and company names co-occur in
// the gathered search text.
func confirmsCompany(text, name, company string) bool {
	company = normalizeCompany(company)
	if company == "" {
		return false
	}
	t := strings.ToLower(text)
	return strings.Contains(t, strings.ToLower(strings.TrimSpace(name))) && strings.Contains(t, company)
}

// industryKeywords map search-text phrases to the industry labels the
// revenue estimator understands. Ordered: more specific phrases first.
var industryKeywords = []struct {
	phrase string
	label  string
}{
	{"saas", "SaaS"},
	{"software", "Software"},
	{"information technology", "Information Technology"},
	{"fintech", "Fintech"},
	{"financial services", "Financial Services"},
	{"insurance", "Insurance"},
	{"construction", "Construction"},
	{"manufacturing", "Manufacturing"},
	{"real estate", "Real Estate"},
	{"logistics", "Logistics"},
	{"health care", "Healthcare"},
	{"healthcare", "Healthcare"},
	{"marketing agency", "Marketing"},
	{"law firm", "Legal"},
	{"legal services", "Legal"},
	{"retail", "Retail"},
	{"hospitality", "Hospitality"},
	{"education", "Education"},
	{"nonprofit", "Nonprofit"},
	{"consulting", "Consulting"},
	{"staffing", "Staffing"},
	{"energy", "Energy"},
}

// industryHint returns the label for the first industry phrase found.
func industryHint(text string) string {
	t := strings.ToLower(text)
	for _, kw := range industryKeywords {
		if strings.Contains(t, kw.phrase) {
			return kw.label
		}
	}
	return ""
}
