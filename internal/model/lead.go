package model

import "strings"

// LeadStatus represents the enrichment state of a single lead.
type LeadStatus string

const (
	StatusNotStarted        LeadStatus = "not_started"
	StatusEnriching         LeadStatus = "enriching"
	StatusEnriched          LeadStatus = "enriched"
	StatusPartiallyEnriched LeadStatus = "partially_enriched"
	StatusFailed            LeadStatus = "failed"
	StatusTimedOut          LeadStatus = "timed_out"
)

// Terminal reports whether the status is a terminal state.
func (s LeadStatus) Terminal() bool {
	switch s {
	case StatusEnriched, StatusPartiallyEnriched, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// Source tags recorded in LeadRecord.Sources, in adapter order.
const (
	SourceWeb            = "web"
	SourceLinkedIn       = "linkedin"
	SourceLinkedInSearch = "linkedin_search"
	SourcePersonSearch   = "person_search"
)

// IsProfessionalNetwork reports whether a source tag carries profile data,
// which the merge rules treat as authoritative for employer-context fields.
func IsProfessionalNetwork(source string) bool {
	return source == SourceLinkedIn || source == SourceLinkedInSearch
}

// LeadRecord is the canonical mutable enrichment target for one CRM lead.
// All derived fields are strings because that is how they round-trip to the
// CRM; sparse numeric data (revenue, founded year) stays formatted.
type LeadRecord struct {
	ID          string `json:"id,omitempty"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`

	JobTitle        string `json:"job_title,omitempty"`
	Industry        string `json:"industry,omitempty"`
	CompanySize     string `json:"company_size,omitempty"`
	RevenueEstimate string `json:"revenue_estimate,omitempty"`
	FoundedYear     string `json:"founded_year,omitempty"`
	Phone           string `json:"phone,omitempty"`
	ProfileURL      string `json:"professional_profile_url,omitempty"`
	Location        string `json:"location,omitempty"`

	// Extras holds adapter-specific signals outside the canonical schema
	// (industry_hint, company_confirmed, connections, bio, ...).
	Extras map[string]string `json:"extras,omitempty"`

	// Sources is the ordered, deduplicated list of adapters that changed
	// this record. FieldSources tracks which source last wrote each field.
	Sources      []string         `json:"enrichment_sources,omitempty"`
	FieldSources map[Field]string `json:"field_sources,omitempty"`

	Status       LeadStatus `json:"enrichment_status"`
	QualityScore string     `json:"quality_score,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Get returns the value of a canonical field.
func (r *LeadRecord) Get(f Field) string {
	switch f {
	case FieldFullName:
		return r.FullName
	case FieldCompanyName:
		return r.CompanyName
	case FieldEmail:
		return r.Email
	case FieldWebsite:
		return r.Website
	case FieldJobTitle:
		return r.JobTitle
	case FieldIndustry:
		return r.Industry
	case FieldCompanySize:
		return r.CompanySize
	case FieldRevenueEstimate:
		return r.RevenueEstimate
	case FieldFoundedYear:
		return r.FoundedYear
	case FieldPhone:
		return r.Phone
	case FieldProfileURL:
		return r.ProfileURL
	case FieldLocation:
		return r.Location
	}
	return ""
}

// Set writes the value of a canonical field. Unknown fields are ignored.
func (r *LeadRecord) Set(f Field, v string) {
	switch f {
	case FieldFullName:
		r.FullName = v
	case FieldCompanyName:
		r.CompanyName = v
	case FieldEmail:
		r.Email = v
	case FieldWebsite:
		r.Website = v
	case FieldJobTitle:
		r.JobTitle = v
	case FieldIndustry:
		r.Industry = v
	case FieldCompanySize:
		r.CompanySize = v
	case FieldRevenueEstimate:
		r.RevenueEstimate = v
	case FieldFoundedYear:
		r.FoundedYear = v
	case FieldPhone:
		r.Phone = v
	case FieldProfileURL:
		r.ProfileURL = v
	case FieldLocation:
		r.Location = v
	}
}

// AddSource appends a source tag, preserving order and skipping duplicates.
func (r *LeadRecord) AddSource(tag string) {
	for _, s := range r.Sources {
		if s == tag {
			return
		}
	}
	r.Sources = append(r.Sources, tag)
}

// HasSource reports whether the record already carries a source tag.
func (r *LeadRecord) HasSource(tag string) bool {
	for _, s := range r.Sources {
		if s == tag {
			return true
		}
	}
	return false
}

// SetFieldSource records which source last wrote a field.
func (r *LeadRecord) SetFieldSource(f Field, source string) {
	if r.FieldSources == nil {
		r.FieldSources = make(map[Field]string)
	}
	r.FieldSources[f] = source
}

// FieldSource returns the source that last wrote a field, or "".
func (r *LeadRecord) FieldSource(f Field) string {
	return r.FieldSources[f]
}

// EmailDomain returns the lowercased domain part of the lead's email, or "".
func (r *LeadRecord) EmailDomain() string {
	at := strings.LastIndex(r.Email, "@")
	if at < 0 || at == len(r.Email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(r.Email[at+1:]))
}

// Clone returns a deep copy. Enrichment tasks work on a clone and publish it
// only on settlement, so a timed-out task never leaks partial merges.
func (r *LeadRecord) Clone() *LeadRecord {
	cp := *r
	if r.Extras != nil {
		cp.Extras = make(map[string]string, len(r.Extras))
		for k, v := range r.Extras {
			cp.Extras[k] = v
		}
	}
	if r.FieldSources != nil {
		cp.FieldSources = make(map[Field]string, len(r.FieldSources))
		for k, v := range r.FieldSources {
			cp.FieldSources[k] = v
		}
	}
	if r.Sources != nil {
		cp.Sources = append([]string(nil), r.Sources...)
	}
	return &cp
}
