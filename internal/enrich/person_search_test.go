package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
)

func TestPersonSearchAdapter_TitleAndProfileFromSnippets(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return []search.Candidate{{
			Title:   "Jane Doe - Acme",
			URL:     "https://www.linkedin.com/in/janedoe",
			Snippet: "Jane Doe, Marketing Lead at Acme.",
			Engine:  "duckduckgo",
		}}
	}}
	adapter := NewPersonSearchAdapter(searcher, nil)

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{
		FullName: "Jane Doe",
		Email:    "jane@acme.test",
	})
	require.NoError(t, err)

	assert.Equal(t, "Marketing Lead", bag.Get(model.FieldJobTitle))
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", bag.Get(model.FieldProfileURL))
	assert.Equal(t, []search.Mode{search.ModeGeneralInfo}, searcher.modes)
	// Both signals landed on the first query, so the bare-name variant
	// never ran.
	assert.Len(t, searcher.searched(), 1)
}

func TestPersonSearchAdapter_FollowsBioPages(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, q string, _ search.Mode) []search.Candidate {
		if !strings.Contains(q, "Initech") {
			return nil
		}
		return []search.Candidate{{
			URL:     "https://initech.com/about/leadership",
			Title:   "Leadership",
			Snippet: "Meet the team behind Initech.",
		}}
	}}
	fetcher := &fakeFetcher{fn: func(_ context.Context, url string) (*fetch.Page, error) {
		return &fetch.Page{
			URL:  url,
			Text: "Bob Roe is the Chief Operating Officer at Initech. Founded in 2001, Initech employs 120 employees across Texas.",
		}, nil
	}}
	adapter := NewPersonSearchAdapter(searcher, fetcher)

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{
		FullName:    "Bob Roe",
		CompanyName: "Initech",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://initech.com/about/leadership"}, fetcher.fetched())
	assert.Equal(t, "Chief Operating Officer", bag.Get(model.FieldJobTitle))
	assert.Equal(t, "2001", bag.Get(model.FieldFoundedYear))
	assert.Equal(t, "true", bag.Extras["company_confirmed"])
}

func TestPersonSearchAdapter_FollowBudget(t *testing.T) {
	t.Parallel()

	var candidates []search.Candidate
	for i := range 5 {
		candidates = append(candidates, search.Candidate{
			URL: fmt.Sprintf("https://corp.example/team/member-%d", i),
		})
	}
	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return candidates
	}}
	fetcher := &fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Page, error) {
		return nil, errors.New("unreachable")
	}}
	adapter := NewPersonSearchAdapter(searcher, fetcher)

	_, err := adapter.Enrich(context.Background(), &model.LeadRecord{FullName: "Jane Doe"})
	require.NoError(t, err)

	assert.Len(t, fetcher.fetched(), maxLinkFollows)
}

func TestPersonSearchAdapter_LoginWallNotMined(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return []search.Candidate{{URL: "https://corp.example/team", Snippet: "Our team"}}
	}}
	wall := "Welcome back. Please log in to view this page. " + strings.Repeat("placeholder ", 10) + "Founded in 1950."
	fetcher := &fakeFetcher{fn: func(_ context.Context, url string) (*fetch.Page, error) {
		return &fetch.Page{URL: url, Text: wall}, nil
	}}
	adapter := NewPersonSearchAdapter(searcher, fetcher)

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{FullName: "Jane Doe"})
	require.NoError(t, err)

	assert.Len(t, fetcher.fetched(), 1)
	assert.Empty(t, bag.Get(model.FieldFoundedYear))
}

func TestPersonSearchAdapter_IndustryHint(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return []search.Candidate{{
			Snippet: "Jane Doe leads a growing construction company in Texas.",
		}}
	}}
	adapter := NewPersonSearchAdapter(searcher, nil)

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{FullName: "Jane Doe"})
	require.NoError(t, err)

	assert.Equal(t, "Construction", bag.Extras["industry_hint"])
}

func TestPersonSearchAdapter_CompanyNotConfirmed(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return []search.Candidate{{Snippet: "Jane Doe spoke at a conference."}}
	}}
	adapter := NewPersonSearchAdapter(searcher, nil)

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{
		FullName:    "Jane Doe",
		CompanyName: "Globex",
	})
	require.NoError(t, err)

	assert.Empty(t, bag.Extras["company_confirmed"])
}

func TestPersonSearchAdapter_NoNameDoesNothing(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	adapter := NewPersonSearchAdapter(searcher, nil)

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{Email: "x@initech.io"})
	require.NoError(t, err)

	assert.True(t, bag.IsEmpty())
	assert.Empty(t, searcher.searched())
}

func TestPersonQueries(t *testing.T) {
	t.Parallel()

	t.Run("full record", func(t *testing.T) {
		t.Parallel()
		got := personQueries(&model.LeadRecord{
			FullName:    "Jane Doe",
			CompanyName: "Acme Corp",
			Email:       "jane@acme.io",
		})
		assert.Equal(t, []string{
			`"Jane Doe" "Acme Corp" role OR title OR founder OR director`,
			`"Jane Doe" acme.io`,
			`"Jane Doe"`,
		}, got)
	})

	t.Run("public mail domain dropped", func(t *testing.T) {
		t.Parallel()
		got := personQueries(&model.LeadRecord{FullName: "Jane Doe", Email: "jane@gmail.com"})
		assert.Equal(t, []string{`"Jane Doe"`}, got)
	})
}

func TestTitleNear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"comma at", "Jane Doe, Senior Engineer at Initech since 2019.", "Senior Engineer"},
		{"is the", "Jane Doe is the Chief Revenue Officer at Acme.", "Chief Revenue Officer"},
		{"dash with role word", "Jane Doe - Marketing Director", "Marketing Director"},
		{"dash without role word", "Jane Doe - Acme Corp", ""},
		{"name case-insensitive", "JANE DOE, Sales Manager at Globex.", "Sales Manager"},
		{"name absent", "Bob Smith, CEO at Initech.", ""},
		{"empty text", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, titleNear(tt.text, "Jane Doe"))
		})
	}
}

func TestLooksLikeBioPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://acme.com/about", true},
		{"https://acme.com/about-us", true},
		{"https://acme.com/team/jane", true},
		{"https://acme.com/leadership.html", true},
		{"https://acme.com/pricing", false},
		{"https://www.linkedin.com/in/jane", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, looksLikeBioPage(tt.url))
		})
	}
}

func TestNormalizeCompany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp, LLC", "acme"},
		{"Globex Corporation", "globex"},
		{"Wayne Enterprises Inc.", "wayne enterprises"},
		{"Stark Industries", "stark industries"},
		{"  Umbrella  Co ", "umbrella"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeCompany(tt.in))
		})
	}
}

func TestIndustryHint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Construction", industryHint("a commercial construction firm"))
	assert.Equal(t, "SaaS", industryHint("the fastest growing SaaS platform"))
	assert.Empty(t, industryHint("a nice afternoon walk"))
}
