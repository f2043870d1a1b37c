package enrich

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/config"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/resilience"
)

type fakeEnricher struct {
	fn func(ctx context.Context, rec *model.LeadRecord) error
}

func (f *fakeEnricher) EnrichLead(ctx context.Context, rec *model.LeadRecord) error {
	if f.fn == nil {
		rec.Status = model.StatusEnriched
		return nil
	}
	return f.fn(ctx, rec)
}

func makeLeads(n int) []*model.LeadRecord {
	leads := make([]*model.LeadRecord, n)
	for i := range n {
		leads[i] = &model.LeadRecord{
			ID:    "L-" + string(rune('0'+i)),
			Email: "lead@example.test",
		}
	}
	return leads
}

func TestOrchestrator_BatchCardinality(t *testing.T) {
	t.Parallel()

	engine := &fakeEnricher{fn: func(_ context.Context, rec *model.LeadRecord) error {
		switch rec.ID {
		case "L-1":
			rec.Status = model.StatusFailed
			return errors.New("adapter exploded")
		case "L-4":
			rec.Status = model.StatusPartiallyEnriched
			return nil
		default:
			rec.Status = model.StatusEnriched
			return nil
		}
	}}

	o := NewOrchestrator(engine, config.EnrichConfig{BatchSize: 3}, nil)
	leads := makeLeads(7)
	sum := o.Run(context.Background(), leads)

	assert.Equal(t, 7, sum.Leads)
	assert.Equal(t, 5, sum.Enriched)
	assert.Equal(t, 1, sum.Partial)
	assert.Equal(t, 1, sum.Failed)
	assert.Zero(t, sum.TimedOut)

	require.Len(t, sum.Batches, 3)
	assert.Equal(t, []int{3, 3, 1}, []int{sum.Batches[0].Extracted, sum.Batches[1].Extracted, sum.Batches[2].Extracted})
	for _, b := range sum.Batches {
		assert.Equal(t, b.Extracted, b.Settled())
	}

	// Output stays position-aligned with the input regardless of which
	// goroutine settles first.
	require.Len(t, sum.Records, 7)
	for i, rec := range sum.Records {
		assert.Equal(t, leads[i].ID, rec.ID)
	}

	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "L-1", sum.Errors[0].LeadID)
	assert.Equal(t, "enrich", sum.Errors[0].Stage)
	assert.Equal(t, "unexpected", sum.Errors[0].Category)
	assert.Equal(t, "adapter exploded", sum.Errors[0].Error)

	// The published records are clones; the caller's slice is untouched.
	assert.Empty(t, leads[0].Status)
}

func TestOrchestrator_TimeoutPublishesOriginal(t *testing.T) {
	t.Parallel()

	engine := &fakeEnricher{fn: func(ctx context.Context, rec *model.LeadRecord) error {
		if rec.ID == "L-stuck" {
			rec.JobTitle = "Half-Merged Title"
			<-ctx.Done()
			rec.Status = model.StatusTimedOut
			return ctx.Err()
		}
		rec.Status = model.StatusEnriched
		return nil
	}}

	o := &Orchestrator{engine: engine, batchSize: 3, leadTimeout: 150 * time.Millisecond}
	leads := []*model.LeadRecord{
		{ID: "L-a"},
		{ID: "L-stuck"},
		{ID: "L-b"},
	}

	start := time.Now()
	sum := o.Run(context.Background(), leads)
	require.Less(t, time.Since(start), time.Second, "stuck lead must be cut off by its own timeout")

	assert.Equal(t, 2, sum.Enriched)
	assert.Equal(t, 1, sum.TimedOut)
	assert.Empty(t, sum.Errors, "a timeout is an outcome, not an error")

	// The clone with the half-merged title is discarded; the original record
	// comes back with only the status changed.
	stuck := sum.Records[1]
	assert.Same(t, leads[1], stuck)
	assert.Equal(t, model.StatusTimedOut, stuck.Status)
	assert.Empty(t, stuck.JobTitle)
}

func TestOrchestrator_FailedLeadKeepsPartialMerges(t *testing.T) {
	t.Parallel()

	engine := &fakeEnricher{fn: func(_ context.Context, rec *model.LeadRecord) error {
		rec.CompanyName = "Acme Corp"
		return errors.New("salesforce said no")
	}}

	o := NewOrchestrator(engine, config.EnrichConfig{BatchSize: 2}, nil)
	leads := []*model.LeadRecord{{ID: "L-0", Email: "jane@acme.test"}}
	sum := o.Run(context.Background(), leads)

	rec := sum.Records[0]
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Equal(t, "Acme Corp", rec.CompanyName, "merges made before the failure are kept")
	assert.Empty(t, leads[0].CompanyName, "the caller's record is never mutated on failure")

	require.Len(t, sum.Errors, 1)
	assert.Equal(t, model.LeadError{
		LeadID:   "L-0",
		Email:    "jane@acme.test",
		Stage:    "enrich",
		Category: "unexpected",
		Error:    "salesforce said no",
	}, sum.Errors[0])
}

func TestOrchestrator_ErrorCategories(t *testing.T) {
	t.Parallel()

	engine := &fakeEnricher{fn: func(_ context.Context, rec *model.LeadRecord) error {
		rec.Status = model.StatusFailed
		if rec.ID == "L-flaky" {
			return resilience.NewTransient(errors.New("upstream 503"), 503)
		}
		return errors.New("nil deref")
	}}

	o := NewOrchestrator(engine, config.EnrichConfig{BatchSize: 2}, nil)
	sum := o.Run(context.Background(), []*model.LeadRecord{
		{ID: "L-flaky"},
		{ID: "L-broken"},
	})

	require.Len(t, sum.Errors, 2)
	byLead := map[string]string{}
	for _, e := range sum.Errors {
		byLead[e.LeadID] = e.Category
	}
	assert.Equal(t, "transient", byLead["L-flaky"])
	assert.Equal(t, "unexpected", byLead["L-broken"])
}

func TestOrchestrator_ProgressCallback(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []model.Progress
	)
	o := NewOrchestrator(&fakeEnricher{}, config.EnrichConfig{BatchSize: 2}, func(p model.Progress) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	sum := o.Run(context.Background(), makeLeads(5))
	assert.Equal(t, 5, sum.Enriched)

	// Callbacks fire on their own goroutines; wait for all three batches.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(got, func(i, j int) bool { return got[i].Batch < got[j].Batch })
	assert.Equal(t, []model.Progress{
		{Batch: 1, Batches: 3, Processed: 0, Total: 5},
		{Batch: 2, Batches: 3, Processed: 2, Total: 5},
		{Batch: 3, Batches: 3, Processed: 4, Total: 5},
	}, got)
}

func TestOrchestrator_CanceledRunSettlesEveryLead(t *testing.T) {
	t.Parallel()

	engine := &fakeEnricher{fn: func(ctx context.Context, rec *model.LeadRecord) error {
		if ctx.Err() != nil {
			rec.Status = model.StatusTimedOut
			return ctx.Err()
		}
		rec.Status = model.StatusEnriched
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := &Orchestrator{
		engine:      engine,
		batchSize:   2,
		leadTimeout: time.Minute,
		batchDelay:  10 * time.Second,
	}

	start := time.Now()
	sum := o.Run(ctx, makeLeads(4))
	require.Less(t, time.Since(start), time.Second, "a dead context must also skip the inter-batch delay")

	assert.Equal(t, 4, sum.TimedOut)
	require.Len(t, sum.Records, 4)
	for _, rec := range sum.Records {
		assert.Equal(t, model.StatusTimedOut, rec.Status)
	}
}

func TestOrchestrator_BatchDelay(t *testing.T) {
	t.Parallel()

	t.Run("applies between batches", func(t *testing.T) {
		t.Parallel()
		o := &Orchestrator{engine: &fakeEnricher{}, batchSize: 2, leadTimeout: time.Minute, batchDelay: 200 * time.Millisecond}

		start := time.Now()
		o.Run(context.Background(), makeLeads(4))
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
		assert.Less(t, elapsed, time.Second)
	})

	t.Run("none after the last batch", func(t *testing.T) {
		t.Parallel()
		o := &Orchestrator{engine: &fakeEnricher{}, batchSize: 5, leadTimeout: time.Minute, batchDelay: 5 * time.Second}

		start := time.Now()
		o.Run(context.Background(), makeLeads(3))
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestOrchestrator_EmptyInput(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(&fakeEnricher{}, config.EnrichConfig{}, nil)
	sum := o.Run(context.Background(), nil)

	assert.NotNil(t, sum.Records)
	assert.Empty(t, sum.Records)
	assert.Zero(t, sum.Leads)
	assert.Empty(t, sum.Batches)

	_, err := uuid.Parse(sum.RunID)
	assert.NoError(t, err)
}

func TestOrchestrator_ConfigDefaults(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(&fakeEnricher{}, config.EnrichConfig{}, nil)
	assert.Equal(t, 5, o.batchSize)
	assert.Equal(t, 2*time.Minute, o.leadTimeout)
	assert.Zero(t, o.batchDelay)
}
