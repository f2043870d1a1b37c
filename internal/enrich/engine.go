package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/config"
	"github.com/SFZPL/lead-automation-system-sub000/internal/estimate"
	"github.com/SFZPL/lead-automation-system-sub000/internal/merge"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/scorer"
)

// Engine drives one lead through the adapter chain: fixed order, merge after
// each adapter, then derived fills and the quality score.
type Engine struct {
	adapters []Adapter
	policy   string
}

// NewEngine builds the per-lead engine. Adapter order is the run order;
// policy decides whether the search-mode profile adapter still runs after a
// direct hit (config.PolicySkipOnDirect or config.PolicyAlways).
func NewEngine(policy string, adapters ...Adapter) *Engine {
	if policy == "" {
		policy = config.PolicySkipOnDirect
	}
	return &Engine{adapters: adapters, policy: policy}
}

// EnrichLead runs the chain and settles rec into a terminal status. The
// returned error is nil for every normal outcome, a wrapped context error
// when the lead budget expired, and the adapter error otherwise; rec.Status
// always matches.
func (e *Engine) EnrichLead(ctx context.Context, rec *model.LeadRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrich: adapter panic: %v", r)
			rec.Status = model.StatusFailed
			rec.LastError = err.Error()
		}
	}()

	log := zap.L().With(zap.String("lead", rec.ID), zap.String("email", rec.Email))
	rec.Status = model.StatusEnriching

	changed := 0
	directChanged := 0
	for _, a := range e.adapters {
		if ctx.Err() != nil {
			rec.Status = model.StatusTimedOut
			return eris.Wrap(ctx.Err(), "enrich: lead budget expired")
		}
		if e.skip(a, directChanged) {
			log.Debug("enrich: adapter skipped", zap.String("adapter", a.Name()))
			continue
		}

		start := time.Now()
		bag, aErr := a.Enrich(ctx, rec)
		if aErr != nil {
			rec.Status = model.StatusFailed
			rec.LastError = aErr.Error()
			return eris.Wrapf(aErr, "enrich: adapter %s", a.Name())
		}

		n := merge.Apply(rec, bag, a.Source())
		changed += n
		if a.Source() == model.SourceLinkedIn {
			directChanged += n
		}
		log.Debug("enrich: adapter done",
			zap.String("adapter", a.Name()),
			zap.Int("fields", n),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}

	// Expiry during the last adapter still counts as a timeout so the
	// orchestrator can discard the partial merge.
	if ctx.Err() != nil {
		rec.Status = model.StatusTimedOut
		return eris.Wrap(ctx.Err(), "enrich: lead budget expired")
	}

	if rec.RevenueEstimate == "" {
		if est, ok := estimate.Estimate(rec.Industry, rec.CompanySize); ok {
			rec.RevenueEstimate = est.Label()
		}
	}
	rec.QualityScore = scorer.Score(rec)

	if changed > 0 {
		rec.Status = model.StatusEnriched
	} else {
		rec.Status = model.StatusPartiallyEnriched
	}
	log.Info("enrich: lead settled",
		zap.String("status", string(rec.Status)),
		zap.Int("fields", changed),
		zap.String("score", rec.QualityScore),
		zap.Strings("sources", rec.Sources),
	)
	return nil
}

// skip applies the search policy: under skip_on_direct the search-mode
// profile adapter only runs when the direct adapter contributed nothing.
func (e *Engine) skip(a Adapter, directChanged int) bool {
	return a.Source() == model.SourceLinkedInSearch &&
		e.policy == config.PolicySkipOnDirect &&
		directChanged > 0
}
