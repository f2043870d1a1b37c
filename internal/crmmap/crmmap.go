// Package crmmap translates between lead records and Salesforce Lead fields.
//
// The built-in mapping covers the standard Lead object plus the custom
// enrichment-tracking fields. A YAML file named by crm.mapping_path overlays
// it per org: individual field bindings, the metadata field names, or the
// target object can all be replaced without touching the rest.
package crmmap

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/SFZPL/lead-automation-system-sub000/internal/estimate"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/salesforce"
)

// Mapping binds one canonical lead field to a Salesforce field.
type Mapping struct {
	SFField   string `yaml:"sf_field"`
	MaxLength int    `yaml:"max_length,omitempty"`
	Skip      bool   `yaml:"skip,omitempty"`
}

// Config is the full writeback mapping for one org.
type Config struct {
	// Object is the SObject updates target.
	Object string `yaml:"object"`

	// StatusField receives the terminal enrichment status. It is also the
	// field the unenriched-leads query filters on, so writing it is what
	// keeps a lead from being fetched twice.
	StatusField string `yaml:"status_field"`

	// ScoreField, SourcesField and ErrorField receive the quality score,
	// the joined source tags and the last error. An empty name disables
	// that write.
	ScoreField   string `yaml:"score_field"`
	SourcesField string `yaml:"sources_field"`
	ErrorField   string `yaml:"error_field"`

	// Fields maps canonical field names to Salesforce bindings.
	Fields map[string]Mapping `yaml:"fields"`
}

// Default returns the built-in mapping: standard Lead fields where they
// exist, `__c` custom fields for the enrichment-only values. full_name and
// email are mapped but skipped; the name is split across FirstName/LastName
// in Salesforce and the email is the match key, so neither is written back.
func Default() *Config {
	return &Config{
		Object:       "Lead",
		StatusField:  "Enrichment_Status__c",
		ScoreField:   "Lead_Quality_Score__c",
		SourcesField: "Enrichment_Sources__c",
		Fields: map[string]Mapping{
			"full_name":                {Skip: true},
			"email":                    {Skip: true},
			"company_name":             {SFField: "Company", MaxLength: 255},
			"website":                  {SFField: "Website", MaxLength: 255},
			"job_title":                {SFField: "Title", MaxLength: 128},
			"industry":                 {SFField: "Industry"},
			"company_size":             {SFField: "Company_Size__c", MaxLength: 40},
			"revenue_estimate":         {SFField: "Revenue_Estimate__c", MaxLength: 40},
			"founded_year":             {SFField: "Founded_Year__c", MaxLength: 10},
			"phone":                    {SFField: "Phone", MaxLength: 40},
			"professional_profile_url": {SFField: "LinkedIn_Profile__c", MaxLength: 255},
			"location":                 {SFField: "Location__c", MaxLength: 255},
		},
	}
}

// fileConfig mirrors Config with pointer metadata fields so an overlay can
// distinguish "not mentioned" (keep the default) from "" (disable the write).
type fileConfig struct {
	Object       *string            `yaml:"object"`
	StatusField  *string            `yaml:"status_field"`
	ScoreField   *string            `yaml:"score_field"`
	SourcesField *string            `yaml:"sources_field"`
	ErrorField   *string            `yaml:"error_field"`
	Fields       map[string]Mapping `yaml:"fields"`
}

// Load reads a mapping overlay from a YAML file and applies it over the
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "crmmap: read mapping %s", path)
	}

	// The YAML has a top-level "crm" key.
	var wrapper struct {
		CRM fileConfig `yaml:"crm"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "crmmap: parse mapping")
	}

	fc := wrapper.CRM
	if fc.Object != nil {
		cfg.Object = *fc.Object
	}
	if fc.StatusField != nil {
		cfg.StatusField = *fc.StatusField
	}
	if fc.ScoreField != nil {
		cfg.ScoreField = *fc.ScoreField
	}
	if fc.SourcesField != nil {
		cfg.SourcesField = *fc.SourcesField
	}
	if fc.ErrorField != nil {
		cfg.ErrorField = *fc.ErrorField
	}
	for key, m := range fc.Fields {
		if !model.KnownField(key) {
			return nil, eris.Errorf("crmmap: unknown field %q in %s", key, path)
		}
		if !m.Skip && m.SFField == "" {
			return nil, eris.Errorf("crmmap: field %q has no sf_field and is not skipped", key)
		}
		cfg.Fields[key] = m
	}
	if cfg.Object == "" {
		return nil, eris.New("crmmap: object must not be empty")
	}
	return cfg, nil
}

// UpdateFor builds the Salesforce field map for one settled record: every
// mapped non-empty canonical field, truncated to its limit, plus the
// metadata fields. The Id is not included; the collections helpers add it.
func (c *Config) UpdateFor(rec *model.LeadRecord) map[string]any {
	fields := make(map[string]any)
	for _, f := range model.Fields {
		m, ok := c.Fields[string(f)]
		if !ok || m.Skip || m.SFField == "" {
			continue
		}
		v := rec.Get(f)
		if v == "" {
			continue
		}
		fields[m.SFField] = truncate(v, m.MaxLength)
	}
	if c.StatusField != "" && rec.Status != "" {
		fields[c.StatusField] = string(rec.Status)
	}
	if c.ScoreField != "" && rec.QualityScore != "" {
		fields[c.ScoreField] = rec.QualityScore
	}
	if c.SourcesField != "" && len(rec.Sources) > 0 {
		// Multi-select picklists take semicolon-joined values.
		fields[c.SourcesField] = strings.Join(rec.Sources, ";")
	}
	if c.ErrorField != "" && rec.LastError != "" {
		fields[c.ErrorField] = truncate(rec.LastError, 255)
	}
	return fields
}

// Updates builds the bulk-update payload for a run's settled records.
// Records without a Salesforce id (file imports, ad-hoc enrichment) are
// skipped.
func (c *Config) Updates(recs []*model.LeadRecord) []salesforce.LeadUpdate {
	updates := make([]salesforce.LeadUpdate, 0, len(recs))
	for _, rec := range recs {
		if rec == nil || rec.ID == "" {
			continue
		}
		fields := c.UpdateFor(rec)
		if len(fields) == 0 {
			continue
		}
		updates = append(updates, salesforce.LeadUpdate{ID: rec.ID, Fields: fields})
	}
	return updates
}

// RecordFromLead converts a fetched Salesforce lead into the canonical
// record the enrichment engine works on. Values Salesforce already holds
// are pre-set so the merge rules treat them as known rather than gaps.
func RecordFromLead(l salesforce.Lead) *model.LeadRecord {
	rec := &model.LeadRecord{
		ID:          l.ID,
		FullName:    l.FullName(),
		CompanyName: l.Company,
		Email:       l.Email,
		Website:     l.Website,
		JobTitle:    l.Title,
		Industry:    l.Industry,
		Phone:       l.Phone,
		Status:      model.StatusNotStarted,
	}
	if l.NumberOfEmployees > 0 {
		rec.CompanySize = strconv.Itoa(l.NumberOfEmployees)
	}
	if l.AnnualRevenue > 0 {
		// A CRM-known revenue is never replaced by an estimate.
		rec.RevenueEstimate = estimate.FormatRevenue(int64(l.AnnualRevenue))
	}
	return rec
}

// RecordsFromLeads converts a fetched lead page in order.
func RecordsFromLeads(leads []salesforce.Lead) []*model.LeadRecord {
	recs := make([]*model.LeadRecord, len(leads))
	for i, l := range leads {
		recs[i] = RecordFromLead(l)
	}
	return recs
}

// truncate cuts s to at most max bytes without splitting a rune.
// max <= 0 means no limit.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	s = s[:max]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
