package model

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted pipeline execution. Stats holds the run's
// statistics JSON once the run completes.
type Run struct {
	ID        string          `json:"id"`
	Status    RunStatus       `json:"status"`
	Stats     json.RawMessage `json:"stats,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Checkpoint is a snapshot of the record set after a pipeline stage,
// stored so a failed run can be inspected or resumed.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Records   []Record  `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}
