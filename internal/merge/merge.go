// Package merge folds adapter field bags into a lead record under
// deterministic conflict-resolution rules, so the final record does not
// depend on which adapter finished when.
package merge

import (
	"strings"

	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
)

// sentinels are "unknown" markers scrapers and LLMs emit instead of leaving
// a field blank. They never overwrite a real value.
var sentinels = map[string]struct{}{
	"":          {},
	"not found": {},
	"n/a":       {},
	"none":      {},
}

// IsSentinel reports whether a value is empty or a normalized unknown marker.
func IsSentinel(v string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// longerWins marks the identity fields where a longer value is assumed to be
// the more detailed one ("VP" vs "VP of Engineering").
func longerWins(f model.Field) bool {
	switch f {
	case model.FieldFullName, model.FieldJobTitle, model.FieldCompanyName:
		return true
	}
	return false
}

// networkPreferred marks the employer-context fields where profile data
// beats website copy.
func networkPreferred(f model.Field) bool {
	return f == model.FieldIndustry || f == model.FieldCompanySize
}

// Apply folds one bag into the record, attributing accepted values to source.
// Rules, per field:
//
//  1. empty/sentinel incoming values are dropped
//  2. an empty target accepts unconditionally
//  3. full_name/job_title/company_name accept only strictly longer values
//  4. industry/company_size: professional-network sources replace web-sourced
//     values
//  5. revenue_estimate is first-writer-wins
//
// Anything else with both sides set keeps the existing value. Extras fill
// empty keys only. When at least one value is accepted the source tag is
// appended to the record's enrichment sources. Returns the number of
// accepted values.
func Apply(rec *model.LeadRecord, bag model.FieldBag, source string) int {
	changed := 0

	for _, f := range model.Fields {
		incoming := strings.TrimSpace(bag.Values[f])
		if IsSentinel(incoming) {
			continue
		}

		current := rec.Get(f)
		if current != "" && !replaces(rec, f, incoming, source) {
			continue
		}
		if incoming == current {
			continue
		}

		if current != "" {
			zap.L().Debug("merge: replacing field",
				zap.String("field", string(f)),
				zap.String("source", source),
				zap.String("previous_source", rec.FieldSource(f)),
			)
		}
		rec.Set(f, incoming)
		rec.SetFieldSource(f, source)
		changed++
	}

	for k, v := range bag.Extras {
		v = strings.TrimSpace(v)
		if IsSentinel(v) {
			continue
		}
		if rec.Extras == nil {
			rec.Extras = make(map[string]string)
		}
		if rec.Extras[k] != "" {
			continue
		}
		rec.Extras[k] = v
		changed++
	}

	if changed > 0 {
		rec.AddSource(source)
	}
	return changed
}

// replaces decides whether an incoming value may overwrite a set field.
func replaces(rec *model.LeadRecord, f model.Field, incoming, source string) bool {
	switch {
	case f == model.FieldRevenueEstimate:
		return false
	case networkPreferred(f):
		return model.IsProfessionalNetwork(source) && rec.FieldSource(f) == model.SourceWeb
	case longerWins(f):
		return len(incoming) > len(rec.Get(f))
	default:
		return false
	}
}
