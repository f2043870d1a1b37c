// Package extract pulls lead fields out of fetched pages. Heuristic
// extraction always runs and costs nothing; the LLM extractor is layered on
// top when a key is configured and fills what the heuristics missed.
package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
)

// maxDescriptionLen caps the meta-description extra.
const maxDescriptionLen = 300

// FromPage runs heuristic extraction over a fetched page: meta tags and
// JSON-LD when raw HTML is present, text regexes always. The result is a
// sparse bag; anything not found is simply absent.
func FromPage(page *fetch.Page) model.FieldBag {
	bag := model.NewFieldBag()
	if page == nil {
		return bag
	}

	if page.HTML != "" {
		metaFields(page.HTML, bag)
		jsonLDFields(page.HTML, bag)
	}

	// Company name priority: og:site_name / JSON-LD (above) beat the page
	// title, which beats the domain.
	if bag.Get(model.FieldCompanyName) == "" {
		if name := cleanTitleToName(page.Title); name != "" {
			bag.Set(model.FieldCompanyName, name)
		} else if name := domainToName(page.URL); name != "" {
			bag.Set(model.FieldCompanyName, name)
		}
	}

	textFields(page.Text, bag)
	return bag
}

// FromText runs only the text regexes. Used when re-extracting from search
// snippets or reader markdown where no HTML exists.
func FromText(text string) model.FieldBag {
	bag := model.NewFieldBag()
	textFields(text, bag)
	return bag
}

func textFields(text string, bag model.FieldBag) {
	if text == "" {
		return
	}
	if bag.Get(model.FieldFoundedYear) == "" {
		if year := foundedYear(text); year != "" {
			bag.Set(model.FieldFoundedYear, year)
		}
	}
	if bag.Get(model.FieldCompanySize) == "" {
		if size := companySize(text); size != "" {
			bag.Set(model.FieldCompanySize, size)
		}
	}
	if bag.Get(model.FieldPhone) == "" {
		if phone := firstPhone(text); phone != "" {
			bag.Set(model.FieldPhone, phone)
		}
	}
}

// --- meta tags ---

var metaContentRe = regexp.MustCompile(`(?i)<meta\s[^>]*?(?:property|name)\s*=\s*["']([^"']+)["'][^>]*?content\s*=\s*["']([^"']*?)["']`)
var metaContentRevRe = regexp.MustCompile(`(?i)<meta\s[^>]*?content\s*=\s*["']([^"']*?)["'][^>]*?(?:property|name)\s*=\s*["']([^"']+)["']`)

// metaContent returns the content of a <meta> tag by property or name,
// handling both attribute orders.
func metaContent(html, name string) string {
	lowerName := strings.ToLower(name)
	for _, m := range metaContentRe.FindAllStringSubmatch(html, -1) {
		if strings.ToLower(m[1]) == lowerName {
			return m[2]
		}
	}
	for _, m := range metaContentRevRe.FindAllStringSubmatch(html, -1) {
		if strings.ToLower(m[2]) == lowerName {
			return m[1]
		}
	}
	return ""
}

func metaFields(html string, bag model.FieldBag) {
	if v := strings.TrimSpace(metaContent(html, "og:site_name")); v != "" {
		bag.Set(model.FieldCompanyName, v)
	}
	if bag.Get(model.FieldCompanyName) == "" {
		if v := cleanTitleToName(metaContent(html, "og:title")); v != "" {
			bag.Set(model.FieldCompanyName, v)
		}
	}

	desc := metaContent(html, "og:description")
	if desc == "" {
		desc = metaContent(html, "description")
	}
	if desc = strings.TrimSpace(desc); desc != "" {
		if len(desc) > maxDescriptionLen {
			desc = desc[:maxDescriptionLen]
		}
		bag.SetExtra("meta_description", desc)
	}
}

// --- JSON-LD ---

var jsonLDRe = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

// jsonLDOrg is the subset of a schema.org Organization block we care about.
type jsonLDOrg struct {
	Type      string `json:"@type"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Telephone string `json:"telephone"`
	Founding  string `json:"foundingDate"`
	Employees any    `json:"numberOfEmployees"`
	Address   any    `json:"address"`
}

func jsonLDFields(html string, bag model.FieldBag) {
	for _, m := range jsonLDRe.FindAllStringSubmatch(html, -1) {
		raw := strings.TrimSpace(m[1])

		var orgs []jsonLDOrg
		var single jsonLDOrg
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			orgs = append(orgs, single)
		} else if err := json.Unmarshal([]byte(raw), &orgs); err != nil {
			continue
		}

		for _, org := range orgs {
			if !isOrgType(org.Type) {
				continue
			}
			fillFromOrg(org, bag)
		}
	}
}

func isOrgType(t string) bool {
	lower := strings.ToLower(t)
	return lower == "organization" || lower == "localbusiness" ||
		lower == "corporation" || strings.HasSuffix(lower, "business")
}

func fillFromOrg(org jsonLDOrg, bag model.FieldBag) {
	if name := strings.TrimSpace(org.Name); name != "" && bag.Get(model.FieldCompanyName) == "" {
		bag.Set(model.FieldCompanyName, name)
	}
	if org.URL != "" && bag.Get(model.FieldWebsite) == "" {
		bag.Set(model.FieldWebsite, strings.TrimSpace(org.URL))
	}
	if org.Telephone != "" && bag.Get(model.FieldPhone) == "" {
		bag.Set(model.FieldPhone, strings.TrimSpace(org.Telephone))
	}
	if bag.Get(model.FieldFoundedYear) == "" {
		// foundingDate may be "1987" or "1987-04-01".
		if len(org.Founding) >= 4 {
			if year := validYear(org.Founding[:4]); year != "" {
				bag.Set(model.FieldFoundedYear, year)
			}
		}
	}
	if bag.Get(model.FieldCompanySize) == "" {
		switch n := org.Employees.(type) {
		case float64:
			if n > 0 {
				bag.Set(model.FieldCompanySize, strconv.Itoa(int(n)))
			}
		case string:
			if s := strings.TrimSpace(n); s != "" {
				bag.Set(model.FieldCompanySize, s)
			}
		case map[string]any:
			// QuantitativeValue {"value": 250} or {"minValue":51,"maxValue":200}.
			if v, ok := n["value"].(float64); ok && v > 0 {
				bag.Set(model.FieldCompanySize, strconv.Itoa(int(v)))
			} else if lo, ok := n["minValue"].(float64); ok {
				if hi, ok := n["maxValue"].(float64); ok {
					bag.Set(model.FieldCompanySize, strconv.Itoa(int(lo))+"-"+strconv.Itoa(int(hi)))
				}
			}
		}
	}
	if bag.Get(model.FieldLocation) == "" {
		if loc := orgLocation(org.Address); loc != "" {
			bag.Set(model.FieldLocation, loc)
		}
	}
}

// orgLocation renders a JSON-LD address (object or string) as "City, Region".
func orgLocation(addr any) string {
	switch a := addr.(type) {
	case map[string]any:
		city, _ := a["addressLocality"].(string)
		region, _ := a["addressRegion"].(string)
		city, region = strings.TrimSpace(city), strings.TrimSpace(region)
		switch {
		case city != "" && region != "":
			return city + ", " + region
		case city != "":
			return city
		case region != "":
			return region
		}
	case string:
		return strings.TrimSpace(a)
	}
	return ""
}

// --- page title / domain ---

// titleSuffixes are common trailing patterns stripped from <title> tags.
var titleSuffixes = []string{
	" - Home",
	" | Home",
	" - Homepage",
	" | Homepage",
	" - Official Site",
	" | Official Site",
	" - Official Website",
	" | Official Website",
	" - Welcome",
	" | Welcome",
}

// cleanTitleToName strips common boilerplate from a page title.
func cleanTitleToName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(strings.ToLower(title), strings.ToLower(suffix)) {
			title = title[:len(title)-len(suffix)]
			break
		}
	}
	// If title has " - " or " | " separators, take the first segment.
	for _, sep := range []string{" | ", " - ", " — ", " – "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}
	return strings.TrimSpace(title)
}

// domainToName converts a URL's domain to a readable company name.
// "acme-construction.com" → "Acme Construction"
func domainToName(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil || u.Host == "" {
			return ""
		}
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	words := strings.Split(parts[0], "-")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// --- text regexes ---

var foundedRe = regexp.MustCompile(`(?i)\b(?:founded|established|est\.?|serving\s+customers|in\s+business)\s+(?:in\s+)?(1[89]\d{2}|20\d{2})\b`)
var sinceRe = regexp.MustCompile(`(?i)\bsince\s+(1[89]\d{2}|20\d{2})\b`)

// foundedYear pulls a founding year out of prose like "founded in 1987" or
// "serving customers since 2004".
func foundedYear(text string) string {
	if m := foundedRe.FindStringSubmatch(text); len(m) > 1 {
		return validYear(m[1])
	}
	if m := sinceRe.FindStringSubmatch(text); len(m) > 1 {
		return validYear(m[1])
	}
	return ""
}

// validYear keeps only plausible founding years.
func validYear(s string) string {
	year, err := strconv.Atoi(s)
	if err != nil {
		return ""
	}
	if year < 1800 || year > time.Now().Year() {
		return ""
	}
	return s
}

var sizeRangeRe = regexp.MustCompile(`(?i)\b(\d[\d,]*\s*[-–]\s*\d[\d,]*)\s+employees\b`)
var sizeCountRe = regexp.MustCompile(`(?i)\b(\d[\d,]*\+?)\s+(?:employees|staff members|team members)\b`)
var teamOfRe = regexp.MustCompile(`(?i)\bteam\s+of\s+(?:over\s+|more\s+than\s+)?(\d[\d,]*\+?)\b`)

// companySize pulls a headcount like "51-200 employees", "250+ employees",
// or "team of 40" out of prose.
func companySize(text string) string {
	if m := sizeRangeRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.ReplaceAll(strings.ReplaceAll(m[1], " ", ""), "–", "-")
	}
	if m := sizeCountRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.ReplaceAll(m[1], ",", "")
	}
	if m := teamOfRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.ReplaceAll(m[1], ",", "")
	}
	return ""
}

var phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

// firstPhone returns the first US-shaped phone number in the text.
func firstPhone(text string) string {
	return strings.TrimSpace(phoneRe.FindString(text))
}
