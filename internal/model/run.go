package model

import "time"

// RunStatus represents the state of a stored enrichment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted enrichment run. Origin records what started it: the
// CLI, the HTTP API, or a file import.
type Run struct {
	ID        string           `json:"id"`
	Status    RunStatus        `json:"status"`
	Origin    string           `json:"origin,omitempty"`
	Summary   *PipelineSummary `json:"summary,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
