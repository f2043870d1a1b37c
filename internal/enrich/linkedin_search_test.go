package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/apify"
)

type fakeSearcher struct {
	fn func(ctx context.Context, query string, mode search.Mode) []search.Candidate

	mu      sync.Mutex
	queries []string
	modes   []search.Mode
}

func (s *fakeSearcher) Search(ctx context.Context, query string, mode search.Mode) []search.Candidate {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.modes = append(s.modes, mode)
	s.mu.Unlock()
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, query, mode)
}

func (s *fakeSearcher) searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func TestLinkedInSearchAdapter_FindsProfile(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return []search.Candidate{
			{URL: "https://acme.com/team", Title: "Our team"},
			{URL: "https://www.linkedin.com/in/jane-doe-12345", Title: "Jane Doe - Acme Corp"},
		}
	}}
	scraper := &fakeScraper{fn: func(_ context.Context, urls []string) ([]apify.Profile, error) {
		return []apify.Profile{{
			URL:      urls[0],
			FullName: "Jane Doe",
			JobTitle: "VP of Engineering",
		}}, nil
	}}
	adapter := NewLinkedInSearchAdapter(searcher, NewLinkedInAdapter(scraper, nil))

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{
		FullName:    "Jane Doe",
		CompanyName: "Acme Corp",
	})
	require.NoError(t, err)

	// First query hit, so the remaining variants never ran; the non-profile
	// candidate never reached the scraper.
	assert.Len(t, searcher.searched(), 1)
	assert.Equal(t, []search.Mode{search.ModeProfileURL}, searcher.modes)
	assert.Equal(t, [][]string{{"https://www.linkedin.com/in/jane-doe-12345"}}, scraper.urls)
	assert.Equal(t, "Jane Doe", bag.Get(model.FieldFullName))
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe-12345", bag.Get(model.FieldProfileURL))
}

func TestLinkedInSearchAdapter_AttemptCapPerQuery(t *testing.T) {
	t.Parallel()

	candidates := []search.Candidate{
		{URL: "https://www.linkedin.com/in/one"},
		{URL: "https://www.linkedin.com/in/two"},
		{URL: "https://www.linkedin.com/in/three"},
		{URL: "https://www.linkedin.com/in/four"},
		{URL: "https://www.linkedin.com/in/five"},
	}
	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return candidates
	}}
	scraper := &fakeScraper{fn: func(_ context.Context, _ []string) ([]apify.Profile, error) {
		return []apify.Profile{}, nil
	}}
	adapter := NewLinkedInSearchAdapter(searcher, NewLinkedInAdapter(scraper, nil))

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{
		FullName:    "Jane Doe",
		CompanyName: "Acme Corp",
	})
	require.NoError(t, err)

	// Three attempts on the first query; the rerun of the same candidates on
	// the later query variants is deduplicated away.
	assert.Len(t, searcher.searched(), 3)
	assert.Equal(t, int32(3), scraper.calls.Load())
	assert.True(t, bag.IsEmpty())
}

func TestLinkedInSearchAdapter_NameMismatchRejected(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		return []search.Candidate{
			{URL: "https://www.linkedin.com/in/bob-smith"},
			{URL: "https://www.linkedin.com/in/jane-doe"},
		}
	}}
	scraper := &fakeScraper{fn: func(_ context.Context, urls []string) ([]apify.Profile, error) {
		name := "Jane Doe-Jones"
		if urls[0] == "https://www.linkedin.com/in/bob-smith" {
			name = "Bob Smith"
		}
		return []apify.Profile{{URL: urls[0], FullName: name}}, nil
	}}
	adapter := NewLinkedInSearchAdapter(searcher, NewLinkedInAdapter(scraper, nil))

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{FullName: "Jane Doe"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), scraper.calls.Load())
	assert.Equal(t, "Jane Doe-Jones", bag.Get(model.FieldFullName))
}

func TestLinkedInSearchAdapter_DedupsAcrossQueries(t *testing.T) {
	t.Parallel()

	var searches atomic.Int32
	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, _ search.Mode) []search.Candidate {
		url := "https://www.linkedin.com/in/jane-doe"
		if searches.Add(1) > 1 {
			url += "?utm_source=share"
		}
		return []search.Candidate{{URL: url}}
	}}
	scraper := &fakeScraper{fn: func(_ context.Context, _ []string) ([]apify.Profile, error) {
		return nil, nil
	}}
	adapter := NewLinkedInSearchAdapter(searcher, NewLinkedInAdapter(scraper, nil))

	_, err := adapter.Enrich(context.Background(), &model.LeadRecord{
		FullName:    "Jane Doe",
		CompanyName: "Acme Corp",
	})
	require.NoError(t, err)

	// Tracking-parameter variants of the same profile collapse to one scrape.
	assert.Equal(t, int32(3), searches.Load())
	assert.Equal(t, int32(1), scraper.calls.Load())
}

func TestLinkedInSearchAdapter_NoNameNoQueries(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	adapter := NewLinkedInSearchAdapter(searcher, NewLinkedInAdapter(&fakeScraper{}, nil))

	bag, err := adapter.Enrich(context.Background(), &model.LeadRecord{Email: "x@initech.io"})
	require.NoError(t, err)

	assert.True(t, bag.IsEmpty())
	assert.Empty(t, searcher.searched())
}

func TestProfileQueries(t *testing.T) {
	t.Parallel()

	t.Run("with company", func(t *testing.T) {
		t.Parallel()
		got := profileQueries(&model.LeadRecord{FullName: "Jane Doe", CompanyName: "Acme Corp"})
		assert.Equal(t, []string{
			`"Jane Doe" "Acme Corp" site:linkedin.com/in`,
			`"Jane Doe" acme linkedin`,
			`"Jane Doe" linkedin profile`,
		}, got)
	})

	t.Run("company without suffix collapses", func(t *testing.T) {
		t.Parallel()
		got := profileQueries(&model.LeadRecord{FullName: "Jane Doe", CompanyName: "Initech"})
		assert.Equal(t, []string{
			`"Jane Doe" "Initech" site:linkedin.com/in`,
			`"Jane Doe" linkedin profile`,
		}, got)
	})

	t.Run("name only", func(t *testing.T) {
		t.Parallel()
		got := profileQueries(&model.LeadRecord{FullName: "Jane Doe"})
		assert.Equal(t, []string{`"Jane Doe" linkedin profile`}, got)
	})

	t.Run("no name", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, profileQueries(&model.LeadRecord{CompanyName: "Acme"}))
	})
}

func TestNameMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
		got  string
		ok   bool
	}{
		{"exact", "Jane Doe", "Jane Doe", true},
		{"shared token", "Jane Doe", "Jane Doe-Jones", true},
		{"married name", "Jane Doe", "Dr. Jane Smith", true},
		{"different person", "Jane Doe", "Bob Smith", false},
		{"unknown lead name", "", "Bob Smith", true},
		{"unknown profile name", "Jane Doe", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, nameMatches(tt.want, tt.got))
		})
	}
}
