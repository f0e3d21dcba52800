package model

import "time"

// RunStatus represents the current state of a scrape-score-merge cycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial"
	RunStatusFailed   RunStatus = "failed"
)

// TargetResult records what one scrape target produced during a run.
type TargetResult struct {
	Area  string `json:"area"`
	URL   string `json:"url,omitempty"`
	Found int    `json:"found"`
	Error string `json:"error,omitempty"`
}

// RunResult summarizes a finished cycle.
type RunResult struct {
	Fetched    int            `json:"fetched"`
	Scored     int            `json:"scored"`
	Invalid    int            `json:"invalid"`
	Mismatched int            `json:"mismatched"`
	New        int            `json:"new"`
	Updated    int            `json:"updated"`
	Total      int            `json:"total"`
	Targets    []TargetResult `json:"targets,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Run is one scrape-score-merge cycle as recorded by the store.
type Run struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	Status     RunStatus  `json:"status"`
	Result     *RunResult `json:"result,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
