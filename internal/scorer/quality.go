// Package scorer rates the completeness of an enriched lead record on a
// 0-5 scale. Scoring is pure: the same record snapshot always produces the
// same score, so records can be re-scored at any time.
package scorer

import (
	"math"
	"strconv"
	"strings"

	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
)

// fieldWeights is the completeness checklist. Title, profile URL, and
// industry carry full weight because they drive routing and outreach;
// everything else is supporting detail.
var fieldWeights = []struct {
	Field  model.Field
	Weight float64
}{
	{model.FieldJobTitle, 1.0},
	{model.FieldProfileURL, 1.0},
	{model.FieldIndustry, 1.0},
	{model.FieldFullName, 0.5},
	{model.FieldCompanyName, 0.5},
	{model.FieldCompanySize, 0.5},
	{model.FieldPhone, 0.5},
	{model.FieldRevenueEstimate, 0.5},
	{model.FieldFoundedYear, 0.5},
}

// sourceBonus is added once per distinct high-value source class present:
// the company website and the professional network.
const sourceBonus = 0.5

const maxScore = 5.0

// Score computes the quality score for a record and returns it as the "0".."5"
// string stored on the lead.
func Score(rec *model.LeadRecord) string {
	return strconv.Itoa(int(math.Round(rawScore(rec))))
}

// rawScore returns the unrounded weighted sum, capped at maxScore before and
// after the source bonus.
func rawScore(rec *model.LeadRecord) float64 {
	total := 0.0
	for _, fw := range fieldWeights {
		if strings.TrimSpace(rec.Get(fw.Field)) != "" {
			total += fw.Weight
		}
	}
	total = math.Min(total, maxScore)

	if rec.HasSource(model.SourceWeb) {
		total += sourceBonus
	}
	if rec.HasSource(model.SourceLinkedIn) || rec.HasSource(model.SourceLinkedInSearch) {
		total += sourceBonus
	}

	return math.Min(total, maxScore)
}

// Missing returns the unfilled checklist fields in weight order. The review
// flag uses this to explain a low score.
func Missing(rec *model.LeadRecord) []string {
	var out []string
	for _, fw := range fieldWeights {
		if strings.TrimSpace(rec.Get(fw.Field)) == "" {
			out = append(out, string(fw.Field))
		}
	}
	return out
}
