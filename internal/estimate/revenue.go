// Package estimate derives a rough annual-revenue figure for a lead's
// company from the fields enrichment already found. It only ever fills a
// gap: the merge rules keep any revenue value a source reported directly.
package estimate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RevenueEstimate holds a size-and-industry derived revenue figure.
type RevenueEstimate struct {
	Amount     int64   `json:"amount"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// revenuePerEmployee maps industry keywords to approximate annual revenue
// per employee in dollars. Matched case-insensitively as substrings, first
// match wins, so more specific keywords come first.
var revenuePerEmployee = []struct {
	Keyword string
	Dollars int64
}{
	{"saas", 250_000},
	{"software", 200_000},
	{"information technology", 220_000},
	{"internet", 210_000},
	{"fintech", 280_000},
	{"bank", 350_000},
	{"insurance", 320_000},
	{"financial", 300_000},
	{"energy", 400_000},
	{"oil", 420_000},
	{"pharma", 330_000},
	{"manufactur", 240_000},
	{"real estate", 260_000},
	{"logistics", 230_000},
	{"transport", 220_000},
	{"construction", 210_000},
	{"retail", 180_000},
	{"hospitality", 120_000},
	{"restaurant", 90_000},
	{"health", 150_000},
	{"education", 110_000},
	{"nonprofit", 95_000},
	{"consult", 160_000},
	{"marketing", 150_000},
	{"media", 170_000},
	{"legal", 290_000},
	{"staffing", 140_000},
}

const defaultRevenuePerEmployee = 185_000

var (
	rangePattern  = regexp.MustCompile(`^(\d+)\s*[-–]\s*(\d+)$`)
	plusPattern   = regexp.MustCompile(`^(\d+)\s*\+$`)
	numberPattern = regexp.MustCompile(`^\d+$`)
)

// EmployeeMidpoint parses a company-size string ("51-200", "10,001+",
// "about 250 employees") into a representative headcount.
func EmployeeMidpoint(size string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(size))
	for _, cut := range []string{"employees", "employee", "staff", "people", "about", "approx.", "approx", "~"} {
		s = strings.ReplaceAll(s, cut, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if hi < lo || lo <= 0 {
			return 0, false
		}
		return (lo + hi) / 2, true
	}
	if m := plusPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n <= 0 {
			return 0, false
		}
		// Open-ended ranges skew low; pad rather than guess a ceiling.
		return int(float64(n) * 1.3), true
	}
	if numberPattern.MatchString(s) {
		n, _ := strconv.Atoi(s)
		if n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// PerEmployee returns the revenue-per-employee figure for an industry label
// and whether a keyword matched.
func PerEmployee(industry string) (int64, bool) {
	ind := strings.ToLower(industry)
	for _, rp := range revenuePerEmployee {
		if strings.Contains(ind, rp.Keyword) {
			return rp.Dollars, true
		}
	}
	return defaultRevenuePerEmployee, false
}

// Estimate computes headcount × revenue-per-employee for a lead's company.
// Returns false when the company size is missing or unparseable.
func Estimate(industry, companySize string) (*RevenueEstimate, bool) {
	headcount, ok := EmployeeMidpoint(companySize)
	if !ok {
		return nil, false
	}

	perEmp, matched := PerEmployee(industry)
	amount := int64(headcount) * perEmp

	confidence := 0.5
	if matched {
		confidence += 0.2
	}
	if headcount >= 10 {
		confidence += 0.1
	}
	confidence = math.Min(confidence, 0.8)

	zap.L().Debug("estimate: revenue computed",
		zap.String("industry", industry),
		zap.String("company_size", companySize),
		zap.Int("headcount", headcount),
		zap.Int64("amount", amount),
		zap.Float64("confidence", confidence),
	)

	return &RevenueEstimate{
		Amount:     amount,
		Confidence: confidence,
		Method:     "headcount_industry_ratio",
	}, true
}

// Label renders the estimate the way it is stored on the lead record.
func (e *RevenueEstimate) Label() string {
	if e.Confidence >= 0.7 {
		return FormatRevenue(e.Amount) + " (estimated)"
	}
	return FormatRevenue(e.Amount) + " (rough estimate)"
}

// FormatRevenue formats a revenue amount in human-readable form.
func FormatRevenue(amount int64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("$%.1fB", float64(amount)/1_000_000_000)
	case amount >= 1_000_000:
		return fmt.Sprintf("$%.1fM", float64(amount)/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("$%.0fK", float64(amount)/1_000)
	default:
		return fmt.Sprintf("$%d", amount)
	}
}
