package main

import (
	"context"
	"encoding/csv"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/crmmap"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	sfpkg "github.com/SFZPL/lead-automation-system-sub000/pkg/salesforce"
)

var (
	importFile string
	importOut  string
	importPush bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Enrich leads from a spreadsheet",
	Long:  "Reads leads from an .xlsx or .csv file, enriches them, writes the enriched sheet next to the input, and optionally pushes new leads to Salesforce.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := readLeadsFile(importFile)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			zap.L().Info("no importable rows", zap.String("file", importFile))
			return nil
		}
		if cfg.Enrich.MaxLeads > 0 && len(recs) > cfg.Enrich.MaxLeads {
			zap.L().Warn("input trimmed to enrich.max_leads",
				zap.Int("rows", len(recs)),
				zap.Int("max", cfg.Enrich.MaxLeads),
			)
			recs = recs[:cfg.Enrich.MaxLeads]
		}

		run, summary, err := runStored(ctx, env, "import", recs)
		if err != nil {
			return err
		}

		out := importOut
		if out == "" {
			out = enrichedPath(importFile)
		}
		if err := writeLeadsFile(out, summary.Records); err != nil {
			return err
		}
		zap.L().Info("enriched sheet written", zap.String("file", out))

		if importPush {
			if env.Salesforce == nil {
				return eris.New("cannot push: salesforce is not configured")
			}
			pushed, rejected := pushNewLeads(ctx, env, summary.Records)
			zap.L().Info("leads pushed to salesforce", zap.Int("created", pushed), zap.Int("rejected", rejected))
		}

		postRun(ctx, env, run.ID, summary.Records)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "input .xlsx or .csv (required)")
	importCmd.Flags().StringVar(&importOut, "out", "", "output path (default <input>_enriched.<ext>)")
	importCmd.Flags().BoolVar(&importPush, "push", false, "create the enriched leads in Salesforce")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// enrichedPath derives the default output path: leads.xlsx -> leads_enriched.xlsx.
func enrichedPath(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_enriched" + ext
}

// headerAliases maps common spreadsheet column names onto canonical fields.
// Exact canonical names are matched before this table is consulted.
var headerAliases = map[string]model.Field{
	"name":          model.FieldFullName,
	"email_address": model.FieldEmail,
	"company":       model.FieldCompanyName,
	"url":           model.FieldWebsite,
	"title":         model.FieldJobTitle,
	"phone_number":  model.FieldPhone,
	"linkedin":      model.FieldProfileURL,
	"linkedin_url":  model.FieldProfileURL,
	"profile_url":   model.FieldProfileURL,
}

// normalizeHeader lowercases a column name and squashes separators so
// "Email Address" and "email-address" both resolve.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// readLeadsFile parses an input sheet into lead records. The first row is
// the header; rows without an email and a name are skipped.
func readLeadsFile(path string) ([]*model.LeadRecord, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readRowsXLSX(path)
	case ".csv":
		rows, err = readRowsCSV(path)
	default:
		return nil, eris.Errorf("import: unsupported file type %q (want .xlsx or .csv)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	cols := make(map[int]model.Field)
	for i, h := range rows[0] {
		norm := normalizeHeader(h)
		if model.KnownField(norm) {
			cols[i] = model.Field(norm)
			continue
		}
		if f, ok := headerAliases[norm]; ok {
			cols[i] = f
		}
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("import: no recognizable columns in %s", path)
	}

	var recs []*model.LeadRecord
	for _, row := range rows[1:] {
		rec := &model.LeadRecord{Status: model.StatusNotStarted}
		for i, f := range cols {
			if i >= len(row) {
				continue
			}
			rec.Set(f, strings.TrimSpace(row[i]))
		}
		if rec.Email == "" && rec.FullName == "" {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func readRowsCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "import: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // allow variable fields
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "import: read csv")
	}
	return rows, nil
}

func readRowsXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "import: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("import: no sheets in %s", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// outputColumns is the enriched sheet layout: every canonical field plus the
// enrichment outcome.
var outputColumns = []string{
	"full_name", "company_name", "email", "website", "job_title", "industry",
	"company_size", "revenue_estimate", "founded_year", "phone",
	"professional_profile_url", "location",
	"status", "quality_score", "sources", "error",
}

func outputRow(rec *model.LeadRecord) []string {
	row := make([]string, 0, len(outputColumns))
	for _, f := range model.Fields {
		row = append(row, rec.Get(f))
	}
	return append(row,
		string(rec.Status),
		rec.QualityScore,
		strings.Join(rec.Sources, ";"),
		rec.LastError,
	)
}

// writeLeadsFile writes the enriched records in the same format as the
// input.
func writeLeadsFile(path string, recs []*model.LeadRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeRowsXLSX(path, recs)
	case ".csv":
		return writeRowsCSV(path, recs)
	default:
		return eris.Errorf("import: unsupported output type %q", filepath.Ext(path))
	}
}

func writeRowsCSV(path string, recs []*model.LeadRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "import: create csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(outputColumns); err != nil {
		return eris.Wrap(err, "import: write header")
	}
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if err := w.Write(outputRow(rec)); err != nil {
			return eris.Wrap(err, "import: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "import: flush csv")
}

func writeRowsXLSX(path string, recs []*model.LeadRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "import: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range outputColumns {
		header.AddCell().Value = col
	}
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		row := sheet.AddRow()
		for _, v := range outputRow(rec) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(f.Save(path), "import: save xlsx")
}

// pushNewLeads creates enriched records that have no CRM id yet as new
// Salesforce leads.
func pushNewLeads(ctx context.Context, env *enrichEnv, recs []*model.LeadRecord) (pushed, rejected int) {
	records := insertRecords(env.Mapping, recs)
	if len(records) == 0 {
		return 0, 0
	}

	results, err := sfpkg.InsertLeads(ctx, env.Salesforce, records)
	if err != nil {
		zap.L().Error("lead insert failed", zap.Error(err))
		return 0, len(records)
	}
	for _, r := range results {
		if r.Success {
			pushed++
			continue
		}
		rejected++
		zap.L().Warn("lead insert rejected", zap.Strings("errors", r.Errors))
	}
	return pushed, rejected
}

// insertRecords builds Salesforce insert payloads for records without ids.
// Lead requires LastName and Company; the email stands in for a missing
// name and a missing company becomes Unknown.
func insertRecords(mapping *crmmap.Config, recs []*model.LeadRecord) []map[string]any {
	var out []map[string]any
	for _, rec := range recs {
		if rec == nil || rec.ID != "" || rec.Email == "" {
			continue
		}
		fields := mapping.UpdateFor(rec)

		first, last := splitName(rec.FullName)
		if last == "" {
			last = rec.Email
		}
		if first != "" {
			fields["FirstName"] = first
		}
		fields["LastName"] = last
		fields["Email"] = rec.Email
		if _, ok := fields["Company"]; !ok {
			fields["Company"] = "Unknown"
		}
		out = append(out, fields)
	}
	return out
}

// splitName splits a display name on its last space.
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	if i := strings.LastIndex(full, " "); i > 0 {
		return strings.TrimSpace(full[:i]), strings.TrimSpace(full[i+1:])
	}
	return "", full
}
