package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/crmmap"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	sfpkg "github.com/SFZPL/lead-automation-system-sub000/pkg/salesforce"
)

var (
	enrichEmail   string
	enrichName    string
	enrichCompany string
	enrichWebsite string
	enrichPush    bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single lead and print the result",
	Long:  "Runs one lead through the adapter chain. When Salesforce is configured the lead is looked up by email first so CRM values seed the record.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := resolveLead(ctx, env)
		if err != nil {
			return err
		}

		leadCtx, cancel := context.WithTimeout(ctx, cfg.Enrich.LeadTimeout())
		defer cancel()

		if err := env.Engine.EnrichLead(leadCtx, rec); err != nil {
			zap.L().Warn("enrichment incomplete", zap.String("email", rec.Email), zap.Error(err))
		}

		zap.L().Info("lead settled",
			zap.String("email", rec.Email),
			zap.String("status", string(rec.Status)),
			zap.String("score", rec.QualityScore),
			zap.Strings("sources", rec.Sources),
		)

		if enrichPush && env.Salesforce != nil && rec.ID != "" {
			fields := env.Mapping.UpdateFor(rec)
			if err := sfpkg.UpdateLead(ctx, env.Salesforce, rec.ID, fields); err != nil {
				zap.L().Error("crm update failed", zap.String("lead", rec.ID), zap.Error(err))
			} else {
				zap.L().Info("crm updated", zap.String("lead", rec.ID), zap.Int("fields", len(fields)))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// resolveLead builds the record to enrich: the Salesforce lead matching
// --email when the CRM is configured, otherwise a fresh record from flags.
func resolveLead(ctx context.Context, env *enrichEnv) (*model.LeadRecord, error) {
	if env.Salesforce != nil {
		lead, err := sfpkg.FindLeadByEmail(ctx, env.Salesforce, enrichEmail)
		if err != nil {
			return nil, eris.Wrap(err, "find lead")
		}
		if lead != nil {
			zap.L().Info("lead found in salesforce", zap.String("id", lead.ID))
			return crmmap.RecordFromLead(*lead), nil
		}
		zap.L().Info("lead not in salesforce, starting from flags", zap.String("email", enrichEmail))
	}

	return &model.LeadRecord{
		FullName:    enrichName,
		Email:       enrichEmail,
		CompanyName: enrichCompany,
		Website:     enrichWebsite,
		Status:      model.StatusNotStarted,
	}, nil
}

func init() {
	enrichCmd.Flags().StringVar(&enrichEmail, "email", "", "lead email (required)")
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "lead full name")
	enrichCmd.Flags().StringVar(&enrichCompany, "company", "", "company name")
	enrichCmd.Flags().StringVar(&enrichWebsite, "website", "", "company website URL")
	enrichCmd.Flags().BoolVar(&enrichPush, "push", false, "write the result back to Salesforce")
	_ = enrichCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(enrichCmd)
}
