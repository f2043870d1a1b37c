package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/crmmap"
	"github.com/SFZPL/lead-automation-system-sub000/internal/enrich"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/scorer"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/notion"
	sfpkg "github.com/SFZPL/lead-automation-system-sub000/pkg/salesforce"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich pending Salesforce leads in batches",
	Long:  "Queries Salesforce for leads awaiting enrichment, runs them through the adapter chain in batches, persists the run, and writes results back.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		limit := batchLimit
		if limit <= 0 {
			limit = cfg.Enrich.MaxLeads
		}

		leads, err := sfpkg.FindLeadsToEnrich(ctx, env.Salesforce, env.Mapping.StatusField, limit)
		if err != nil {
			return eris.Wrap(err, "find leads")
		}
		if len(leads) == 0 {
			zap.L().Info("no leads awaiting enrichment")
			return nil
		}
		zap.L().Info("leads pulled from salesforce", zap.Int("count", len(leads)))

		run, summary, err := runStored(ctx, env, "cli", crmmap.RecordsFromLeads(leads))
		if err != nil {
			return err
		}
		postRun(ctx, env, run.ID, summary.Records)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max leads to pull (default enrich.max_leads)")
	rootCmd.AddCommand(batchCmd)
}

// runStored drives one persisted enrichment run: create the run row, enrich
// every lead through the orchestrator, then record the summary. The summary
// is written even when ctx died mid-run.
func runStored(ctx context.Context, env *enrichEnv, origin string, recs []*model.LeadRecord) (*model.Run, *model.PipelineSummary, error) {
	run, err := env.Store.CreateRun(ctx, origin)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create run")
	}
	log := zap.L().With(zap.String("run", run.ID), zap.String("origin", origin))

	orch := enrich.NewOrchestrator(env.Engine, cfg.Enrich, func(p model.Progress) {
		log.Info("batch starting",
			zap.Int("batch", p.Batch),
			zap.Int("batches", p.Batches),
			zap.Int("processed", p.Processed),
			zap.Int("total", p.Total),
		)
	})
	summary := orch.Run(ctx, recs)

	persist := context.WithoutCancel(ctx)
	if err := env.Store.FinishRun(persist, run.ID, summary, nil); err != nil {
		log.Error("persist run failed", zap.Error(err))
	}

	log.Info("run complete",
		zap.Int("leads", summary.Leads),
		zap.Int("enriched", summary.Enriched),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
		zap.Int("timed_out", summary.TimedOut),
		zap.Int64("duration_ms", summary.Duration),
	)
	return run, summary, nil
}

// postRun pushes a finished run outward: CRM writeback, low-score review
// flags, and a cache sweep. Everything here is best-effort and logged.
func postRun(ctx context.Context, env *enrichEnv, runID string, recs []*model.LeadRecord) {
	ctx = context.WithoutCancel(ctx)

	if env.Salesforce != nil {
		ok, failed := writeBack(ctx, env.Salesforce, env.Mapping, recs)
		if ok+failed > 0 {
			zap.L().Info("crm writeback", zap.String("run", runID), zap.Int("updated", ok), zap.Int("failed", failed))
		}
	}

	if env.Notion != nil {
		if n := flagLowScores(ctx, env.Notion, cfg.Notion.ReviewDB, cfg.Review.Threshold, runID, recs); n > 0 {
			zap.L().Info("leads flagged for review", zap.String("run", runID), zap.Int("count", n))
		}
	}

	if n, err := env.Store.PurgeExpiredProfiles(ctx); err != nil {
		zap.L().Warn("profile cache purge failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("profile cache purged", zap.Int("expired", n))
	}
}

// writeBack pushes settled records with CRM ids to Salesforce. A transport
// error fails the un-sent remainder; per-record rejections are counted and
// logged.
func writeBack(ctx context.Context, sf sfpkg.Client, mapping *crmmap.Config, recs []*model.LeadRecord) (ok, failed int) {
	updates := mapping.Updates(recs)
	if len(updates) == 0 {
		return 0, 0
	}

	results, err := sfpkg.BulkUpdateLeads(ctx, sf, updates)
	if err != nil {
		zap.L().Error("bulk lead update failed", zap.Error(err))
		return 0, len(updates)
	}
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		failed++
		zap.L().Warn("lead update rejected",
			zap.String("lead", r.ID),
			zap.Strings("errors", r.Errors),
		)
	}
	return ok, failed
}

// flagLowScores files enriched-but-thin leads into the review queue.
// Unscored records (failed or timed out before scoring) are not review
// candidates.
func flagLowScores(ctx context.Context, nc notion.Client, dbID string, threshold int, runID string, recs []*model.LeadRecord) int {
	flagged := 0
	for _, rec := range recs {
		if rec == nil || !scoreBelow(rec.QualityScore, threshold) {
			continue
		}
		item := notion.ReviewItem{
			LeadID:   rec.ID,
			FullName: rec.FullName,
			Email:    rec.Email,
			Company:  rec.CompanyName,
			Score:    rec.QualityScore,
			Missing:  scorer.Missing(rec),
			RunID:    runID,
		}
		if _, err := notion.FlagForReview(ctx, nc, dbID, item); err != nil {
			zap.L().Warn("review flag failed", zap.String("email", rec.Email), zap.Error(err))
			continue
		}
		flagged++
	}
	return flagged
}

// scoreBelow parses the stored score; an empty or unparseable score never
// flags.
func scoreBelow(score string, threshold int) bool {
	n, err := strconv.Atoi(score)
	if err != nil {
		return false
	}
	return n < threshold
}
