package model

import "time"

// RunStatus represents the current state of a conversion run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the store-backed record of one conversion invocation.
type Run struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a finished conversion run.
type RunResult struct {
	Questions   int    `json:"questions"`
	Resolved    int    `json:"resolved"`
	Unresolved  int    `json:"unresolved"`
	NeedsReview int    `json:"needs_review"`
	RemoteCalls int    `json:"remote_calls"`
	Error       string `json:"error,omitempty"`
}
