package model

import "strings"

// Field identifies a canonical LeadRecord field.
type Field string

const (
	FieldFullName        Field = "full_name"
	FieldCompanyName     Field = "company_name"
	FieldEmail           Field = "email"
	FieldWebsite         Field = "website"
	FieldJobTitle        Field = "job_title"
	FieldIndustry        Field = "industry"
	FieldCompanySize     Field = "company_size"
	FieldRevenueEstimate Field = "revenue_estimate"
	FieldFoundedYear     Field = "founded_year"
	FieldPhone           Field = "phone"
	FieldProfileURL      Field = "professional_profile_url"
	FieldLocation        Field = "location"
)

// Fields lists every canonical field in deterministic merge order.
var Fields = []Field{
	FieldFullName,
	FieldCompanyName,
	FieldEmail,
	FieldWebsite,
	FieldJobTitle,
	FieldIndustry,
	FieldCompanySize,
	FieldRevenueEstimate,
	FieldFoundedYear,
	FieldPhone,
	FieldProfileURL,
	FieldLocation,
}

// KnownField reports whether key names a canonical field.
func KnownField(key string) bool {
	for _, f := range Fields {
		if string(f) == key {
			return true
		}
	}
	return false
}

// FieldBag is the ephemeral sparse result of one adapter call: created,
// merged into a LeadRecord, then discarded. Values hold canonical fields;
// Extras hold everything else an adapter wants to surface.
type FieldBag struct {
	Values map[Field]string  `json:"values,omitempty"`
	Extras map[string]string `json:"extras,omitempty"`
}

// NewFieldBag returns an empty bag ready for Set calls.
func NewFieldBag() FieldBag {
	return FieldBag{
		Values: make(map[Field]string),
		Extras: make(map[string]string),
	}
}

// BagFromMap builds a bag from loosely-keyed data (LLM output, scraped
// profiles): canonical keys land in Values, everything else in Extras.
// Blank values are dropped.
func BagFromMap(m map[string]string) FieldBag {
	bag := NewFieldBag()
	for k, v := range m {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if KnownField(k) {
			bag.Values[Field(k)] = v
		} else {
			bag.Extras[k] = v
		}
	}
	return bag
}

// Set stores a trimmed canonical field value; blank values are dropped.
func (b FieldBag) Set(f Field, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	b.Values[f] = v
}

// SetExtra stores a trimmed extra value; blank values are dropped.
func (b FieldBag) SetExtra(key, v string) {
	v = strings.TrimSpace(v)
	if key == "" || v == "" {
		return
	}
	b.Extras[key] = v
}

// Get returns the value for a canonical field, or "".
func (b FieldBag) Get(f Field) string {
	return b.Values[f]
}

// Len returns the number of canonical field values in the bag.
func (b FieldBag) Len() int {
	return len(b.Values)
}

// IsEmpty reports whether the bag carries no values and no extras.
func (b FieldBag) IsEmpty() bool {
	return len(b.Values) == 0 && len(b.Extras) == 0
}
