package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SFZPL/lead-automation-system-sub000/internal/config"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/resilience"
)

// LeadEnricher settles one lead into a terminal status. *Engine implements
// it; tests substitute fakes.
type LeadEnricher interface {
	EnrichLead(ctx context.Context, rec *model.LeadRecord) error
}

// Orchestrator fans leads out in fixed-size, order-preserving batches. Each
// lead runs on its own goroutine under its own timeout and works on a clone,
// publishing only on settlement.
type Orchestrator struct {
	engine      LeadEnricher
	batchSize   int
	leadTimeout time.Duration
	batchDelay  time.Duration
	onProgress  func(model.Progress)

	processed atomic.Int64
}

// NewOrchestrator builds an orchestrator from the enrich config. onProgress
// may be nil.
func NewOrchestrator(engine LeadEnricher, cfg config.EnrichConfig, onProgress func(model.Progress)) *Orchestrator {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 5
	}
	timeout := cfg.LeadTimeout()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Orchestrator{
		engine:      engine,
		batchSize:   batch,
		leadTimeout: timeout,
		batchDelay:  cfg.BatchDelay(),
		onProgress:  onProgress,
	}
}

// Run enriches every lead and returns the aggregated summary. The returned
// records are position-aligned with the input, and every lead lands in a
// terminal status even when the run context dies mid-way.
func (o *Orchestrator) Run(ctx context.Context, leads []*model.LeadRecord) *model.PipelineSummary {
	summary := &model.PipelineSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	if len(leads) == 0 {
		summary.Records = []*model.LeadRecord{}
		return summary
	}

	out := make([]*model.LeadRecord, len(leads))
	batches := (len(leads) + o.batchSize - 1) / o.batchSize
	log := zap.L().With(zap.String("run_id", summary.RunID))
	log.Info("orchestrate: starting run",
		zap.Int("leads", len(leads)),
		zap.Int("batches", batches),
		zap.Int("batch_size", o.batchSize),
	)

	for bi := range batches {
		lo := bi * o.batchSize
		hi := min(lo+o.batchSize, len(leads))

		o.notify(model.Progress{
			Batch:     bi + 1,
			Batches:   batches,
			Processed: int(o.processed.Load()),
			Total:     len(leads),
		})

		outcome := o.runBatch(ctx, bi, leads[lo:hi], out[lo:hi])
		summary.Add(outcome)
		log.Info("orchestrate: batch settled",
			zap.Int("batch", bi+1),
			zap.Int("enriched", outcome.Enriched),
			zap.Int("partial", outcome.Partial),
			zap.Int("failed", outcome.Failed),
			zap.Int("timed_out", outcome.TimedOut),
			zap.Int64("duration_ms", outcome.Duration),
		)

		if bi < batches-1 && o.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.batchDelay):
			}
		}
	}

	summary.Records = out
	summary.Duration = time.Since(summary.StartedAt).Milliseconds()
	log.Info("orchestrate: run complete",
		zap.Int("leads", summary.Leads),
		zap.Int("enriched", summary.Enriched),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
		zap.Int("timed_out", summary.TimedOut),
		zap.Int64("duration_ms", summary.Duration),
	)
	return summary
}

// runBatch settles one batch of leads into the aligned out slice.
func (o *Orchestrator) runBatch(ctx context.Context, index int, leads, out []*model.LeadRecord) model.BatchOutcome {
	start := time.Now()
	outcome := model.BatchOutcome{Index: index, Extracted: len(leads)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchSize)

	for i, lead := range leads {
		g.Go(func() error {
			rec, leadErr := o.runLead(gctx, lead)
			mu.Lock()
			out[i] = rec
			outcome.Count(rec.Status)
			if leadErr != nil {
				outcome.Errors = append(outcome.Errors, *leadErr)
			}
			mu.Unlock()
			return nil // a failed lead never aborts its batch
		})
	}
	_ = g.Wait()

	outcome.Duration = time.Since(start).Milliseconds()
	return outcome
}

// runLead enriches a clone under the per-lead timeout and decides what to
// publish. A timeout discards the clone so partial merges never leak; any
// other error keeps the partial record, marked failed.
func (o *Orchestrator) runLead(ctx context.Context, lead *model.LeadRecord) (*model.LeadRecord, *model.LeadError) {
	leadCtx, cancel := context.WithTimeout(ctx, o.leadTimeout)
	defer cancel()

	clone := lead.Clone()
	err := o.engine.EnrichLead(leadCtx, clone)
	o.processed.Add(1)

	if err == nil {
		return clone, nil
	}
	if clone.Status == model.StatusTimedOut {
		zap.L().Warn("orchestrate: lead timed out",
			zap.String("lead", lead.ID),
			zap.String("email", lead.Email),
			zap.Duration("timeout", o.leadTimeout),
		)
		lead.Status = model.StatusTimedOut
		return lead, nil
	}

	if !clone.Status.Terminal() {
		clone.Status = model.StatusFailed
	}
	category := resilience.Classify(err)
	zap.L().Error("orchestrate: lead failed",
		zap.String("lead", lead.ID),
		zap.String("email", lead.Email),
		zap.String("category", string(category)),
		zap.Error(err),
	)
	return clone, &model.LeadError{
		LeadID:   lead.ID,
		Email:    lead.Email,
		Stage:    "enrich",
		Category: string(category),
		Error:    err.Error(),
	}
}

// notify fires the progress callback on its own goroutine so a slow consumer
// never stalls a batch.
func (o *Orchestrator) notify(p model.Progress) {
	if o.onProgress == nil {
		return
	}
	go o.onProgress(p)
}
