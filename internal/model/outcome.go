package model

import "time"

// LeadError records one failure attributed to a single lead. Category tells
// the operator whether a rerun is worth it: transient failures usually clear
// on their own, unexpected ones need a look first.
type LeadError struct {
	LeadID   string `json:"lead_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error"`
}

// BatchOutcome is the settled result of one batch: status counts plus the
// errors that produced Failed leads. Counts always partition Extracted.
type BatchOutcome struct {
	Index     int         `json:"index"`
	Extracted int         `json:"extracted"`
	Enriched  int         `json:"enriched"`
	Partial   int         `json:"partial"`
	Failed    int         `json:"failed"`
	TimedOut  int         `json:"timed_out"`
	Duration  int64       `json:"duration_ms"`
	Errors    []LeadError `json:"errors,omitempty"`
}

// Count increments the counter matching a terminal lead status.
func (o *BatchOutcome) Count(s LeadStatus) {
	switch s {
	case StatusEnriched:
		o.Enriched++
	case StatusPartiallyEnriched:
		o.Partial++
	case StatusFailed:
		o.Failed++
	case StatusTimedOut:
		o.TimedOut++
	}
}

// Settled returns the number of leads accounted for by status counters.
func (o *BatchOutcome) Settled() int {
	return o.Enriched + o.Partial + o.Failed + o.TimedOut
}

// PipelineSummary aggregates a whole run across batches.
type PipelineSummary struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  int64          `json:"duration_ms"`
	Leads     int            `json:"leads"`
	Enriched  int            `json:"enriched"`
	Partial   int            `json:"partial"`
	Failed    int            `json:"failed"`
	TimedOut  int            `json:"timed_out"`
	Batches   []BatchOutcome `json:"batches"`
	Errors    []LeadError    `json:"errors,omitempty"`
	Records   []*LeadRecord  `json:"records,omitempty"`
}

// Add folds one batch outcome into the running totals.
func (s *PipelineSummary) Add(o BatchOutcome) {
	s.Leads += o.Extracted
	s.Enriched += o.Enriched
	s.Partial += o.Partial
	s.Failed += o.Failed
	s.TimedOut += o.TimedOut
	s.Batches = append(s.Batches, o)
	s.Errors = append(s.Errors, o.Errors...)
}

// Progress is delivered to the optional progress callback at batch start.
type Progress struct {
	Batch     int `json:"batch"`
	Batches   int `json:"batches"`
	Processed int `json:"processed"`
	Total     int `json:"total"`
}
