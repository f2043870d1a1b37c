package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/config"
	"github.com/SFZPL/lead-automation-system-sub000/internal/extract"
	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/anthropic"
)

type stubAdapter struct {
	name   string
	source string
	fn     func(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error)
	calls  int
}

func (s *stubAdapter) Enrich(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error) {
	s.calls++
	if s.fn == nil {
		return model.NewFieldBag(), nil
	}
	return s.fn(ctx, rec)
}

func (s *stubAdapter) Name() string   { return s.name }
func (s *stubAdapter) Source() string { return s.source }

func bagOf(pairs ...string) model.FieldBag {
	bag := model.NewFieldBag()
	for i := 0; i+1 < len(pairs); i += 2 {
		bag.Set(model.Field(pairs[i]), pairs[i+1])
	}
	return bag
}

func staticAdapter(name, source string, bag model.FieldBag) *stubAdapter {
	return &stubAdapter{
		name:   name,
		source: source,
		fn: func(_ context.Context, _ *model.LeadRecord) (model.FieldBag, error) {
			return bag, nil
		},
	}
}

func TestEngine_MergesInAdapterOrder(t *testing.T) {
	t.Parallel()

	web := staticAdapter("website", model.SourceWeb, bagOf("job_title", "VP", "industry", "Software"))
	direct := staticAdapter("linkedin", model.SourceLinkedIn, bagOf("job_title", "VP of Engineering"))
	searchMode := staticAdapter("linkedin_search", model.SourceLinkedInSearch, bagOf("job_title", "should never run"))
	person := staticAdapter("person_search", model.SourcePersonSearch, bagOf("phone", "(512) 555-0100"))

	eng := NewEngine("", web, direct, searchMode, person)
	rec := &model.LeadRecord{ID: "L-1", FullName: "Jane Roe"}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	// Longer title from the profile replaced the web one; search mode was
	// skipped because the direct adapter contributed.
	assert.Equal(t, "VP of Engineering", rec.JobTitle)
	assert.Equal(t, "(512) 555-0100", rec.Phone)
	assert.Zero(t, searchMode.calls)
	assert.Equal(t, []string{model.SourceWeb, model.SourceLinkedIn, model.SourcePersonSearch}, rec.Sources)
	assert.Equal(t, model.StatusEnriched, rec.Status)
	assert.Equal(t, "4", rec.QualityScore)
}

func TestEngine_PolicyAlwaysRunsSearchMode(t *testing.T) {
	t.Parallel()

	direct := staticAdapter("linkedin", model.SourceLinkedIn, bagOf("job_title", "CTO"))
	searchMode := staticAdapter("linkedin_search", model.SourceLinkedInSearch, bagOf("industry", "Software"))

	eng := NewEngine(config.PolicyAlways, direct, searchMode)
	rec := &model.LeadRecord{}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	assert.Equal(t, 1, searchMode.calls)
	assert.Equal(t, "Software", rec.Industry)
}

func TestEngine_SearchModeRunsWhenDirectEmpty(t *testing.T) {
	t.Parallel()

	direct := staticAdapter("linkedin", model.SourceLinkedIn, model.NewFieldBag())
	searchMode := staticAdapter("linkedin_search", model.SourceLinkedInSearch, bagOf("job_title", "CTO"))

	eng := NewEngine(config.PolicySkipOnDirect, direct, searchMode)
	rec := &model.LeadRecord{}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	assert.Equal(t, 1, searchMode.calls)
	assert.Equal(t, "CTO", rec.JobTitle)
	assert.Equal(t, []string{model.SourceLinkedInSearch}, rec.Sources)
}

func TestEngine_PartiallyEnrichedWhenNothingChanges(t *testing.T) {
	t.Parallel()

	eng := NewEngine("",
		staticAdapter("website", model.SourceWeb, model.NewFieldBag()),
		staticAdapter("person_search", model.SourcePersonSearch, model.NewFieldBag()),
	)
	rec := &model.LeadRecord{FullName: "Jane Roe"}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	assert.Equal(t, model.StatusPartiallyEnriched, rec.Status)
	assert.Empty(t, rec.Sources)
	assert.Equal(t, "1", rec.QualityScore)
}

func TestEngine_AdapterErrorFailsLead(t *testing.T) {
	t.Parallel()

	bad := &stubAdapter{name: "linkedin", source: model.SourceLinkedIn, fn: func(_ context.Context, _ *model.LeadRecord) (model.FieldBag, error) {
		return model.FieldBag{}, errors.New("boom")
	}}
	after := staticAdapter("person_search", model.SourcePersonSearch, bagOf("phone", "555"))

	eng := NewEngine("", staticAdapter("website", model.SourceWeb, bagOf("industry", "Retail")), bad, after)
	rec := &model.LeadRecord{}
	err := eng.EnrichLead(context.Background(), rec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter linkedin")
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Equal(t, "boom", rec.LastError)
	assert.Zero(t, after.calls)
	// Merges before the failure stay on the record.
	assert.Equal(t, "Retail", rec.Industry)
}

func TestEngine_PanicRecovered(t *testing.T) {
	t.Parallel()

	eng := NewEngine("", &stubAdapter{name: "website", source: model.SourceWeb, fn: func(_ context.Context, _ *model.LeadRecord) (model.FieldBag, error) {
		panic("kaboom")
	}})
	rec := &model.LeadRecord{}
	err := eng.EnrichLead(context.Background(), rec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, model.StatusFailed, rec.Status)
}

func TestEngine_ExpiredContextTimesOut(t *testing.T) {
	t.Parallel()

	adapter := staticAdapter("website", model.SourceWeb, bagOf("industry", "Retail"))
	eng := NewEngine("", adapter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &model.LeadRecord{}
	err := eng.EnrichLead(ctx, rec)

	require.Error(t, err)
	assert.Equal(t, model.StatusTimedOut, rec.Status)
	assert.Zero(t, adapter.calls)
}

func TestEngine_ExpiryMidChainTimesOut(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	first := &stubAdapter{name: "website", source: model.SourceWeb, fn: func(_ context.Context, _ *model.LeadRecord) (model.FieldBag, error) {
		cancel()
		return bagOf("industry", "Retail"), nil
	}}
	second := staticAdapter("person_search", model.SourcePersonSearch, bagOf("phone", "555"))

	eng := NewEngine("", first, second)
	rec := &model.LeadRecord{}
	err := eng.EnrichLead(ctx, rec)

	require.Error(t, err)
	assert.Equal(t, model.StatusTimedOut, rec.Status)
	assert.Zero(t, second.calls)
	// The engine does not roll back; discarding partial merges is the
	// orchestrator's clone-and-publish job.
	assert.Equal(t, "Retail", rec.Industry)
}

func TestEngine_RevenueEstimateFill(t *testing.T) {
	t.Parallel()

	adapter := staticAdapter("linkedin", model.SourceLinkedIn,
		bagOf("industry", "Software", "company_size", "51-200"))

	eng := NewEngine("", adapter)
	rec := &model.LeadRecord{}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	assert.Equal(t, "$25.0M (estimated)", rec.RevenueEstimate)
}

func TestEngine_RevenueEstimateNeverOverwrites(t *testing.T) {
	t.Parallel()

	adapter := staticAdapter("linkedin", model.SourceLinkedIn,
		bagOf("industry", "Software", "company_size", "51-200"))

	eng := NewEngine("", adapter)
	rec := &model.LeadRecord{RevenueEstimate: "$3.2M"}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	assert.Equal(t, "$3.2M", rec.RevenueEstimate)
}

// TestEngine_EndToEnd wires the real adapters with fake seams: the website
// yields an industry via the LLM, the profile adapters find nothing, and
// person search delivers the role and profile URL from a snippet.
func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()

	llm := extract.NewLLMExtractor(&fakeModel{fn: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(`{"industry": "Technology"}`), nil
	}}, "claude-haiku-4-5-20251001")

	fetcher := &fakeFetcher{fn: func(_ context.Context, url string) (*fetch.Page, error) {
		if url != "https://acme.test" {
			return nil, errors.New("unexpected url: " + url)
		}
		return &fetch.Page{Text: "Acme builds enterprise tooling for builders."}, nil
	}}

	searcher := &fakeSearcher{fn: func(_ context.Context, _ string, mode search.Mode) []search.Candidate {
		if mode != search.ModeGeneralInfo {
			return nil
		}
		return []search.Candidate{{
			Title:   "Jane Doe - Acme",
			URL:     "https://www.linkedin.com/in/janedoe",
			Snippet: "Jane Doe, Marketing Lead at Acme.",
			Engine:  "duckduckgo",
		}}
	}}

	direct := NewLinkedInAdapter(nil, nil)
	eng := NewEngine(config.PolicySkipOnDirect,
		NewWebsiteAdapter(fetcher, llm),
		direct,
		NewLinkedInSearchAdapter(searcher, direct),
		NewPersonSearchAdapter(searcher, fetcher),
	)

	rec := &model.LeadRecord{ID: "L-42", FullName: "Jane Doe", Email: "jane@acme.test"}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))

	assert.Equal(t, model.StatusEnriched, rec.Status)
	assert.Equal(t, []string{model.SourceWeb, model.SourcePersonSearch}, rec.Sources)
	assert.Equal(t, "Technology", rec.Industry)
	assert.Equal(t, "Marketing Lead", rec.JobTitle)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", rec.ProfileURL)
	assert.Equal(t, "4", rec.QualityScore)
	assert.Empty(t, rec.RevenueEstimate)

	// Field provenance: the profile URL came from person search, so a later
	// re-run could still upgrade employer-context fields from a real profile.
	assert.Equal(t, model.SourcePersonSearch, rec.FieldSource(model.FieldProfileURL))
	assert.Equal(t, model.SourceWeb, rec.FieldSource(model.FieldIndustry))

	// Only the website fetch ran; the profile candidate was never fetched.
	assert.Equal(t, []string{"https://acme.test"}, fetcher.fetched())
}

func TestEngine_ScoreRecomputable(t *testing.T) {
	t.Parallel()

	adapter := staticAdapter("linkedin", model.SourceLinkedIn, bagOf(
		"full_name", "Jane Doe",
		"job_title", "VP of Engineering",
		"industry", "Construction",
		"company_size", "51-200",
		"professional_profile_url", "https://www.linkedin.com/in/janedoe",
	))

	eng := NewEngine("", adapter)
	rec := &model.LeadRecord{CompanyName: "Acme"}
	require.NoError(t, eng.EnrichLead(context.Background(), rec))
	first := rec.QualityScore

	// Enriching an already-settled record converges: nothing changes and
	// the score stays put.
	require.NoError(t, eng.EnrichLead(context.Background(), rec))
	assert.Equal(t, first, rec.QualityScore)
	assert.Equal(t, model.StatusPartiallyEnriched, rec.Status)

	require.True(t, strings.HasPrefix(rec.RevenueEstimate, "$"))
}
