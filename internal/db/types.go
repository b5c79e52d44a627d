package db

import (
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit is the number of runs ListRuns returns when no limit is given
const DefaultListLimit = 20

// RunStatus constants
const (
	RunStatusRunning       = "running"
	RunStatusCompleted     = "completed"
	RunStatusFailed        = "failed"
	RunStatusStalled       = "stalled"
	RunStatusPatchNotFound = "patch_not_found"
	RunStatusCanceled      = "canceled"
)

// Run represents an export run record
type Run struct {
	ID          uuid.UUID  `json:"id"`
	ModelPath   string     `json:"model_path"`
	Experiments []string   `json:"experiments"`
	DryRun      bool       `json:"dry_run"`
	Status      string     `json:"status"`
	Message     *string    `json:"message,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunInput represents input for creating a run
type RunInput struct {
	ID          uuid.UUID
	ModelPath   string
	Experiments []string
	DryRun      bool
}

// RunEvent represents one journaled coordinator event
type RunEvent struct {
	ID        int64     `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Kind      string    `json:"kind"`
	Phase     string    `json:"phase"`
	Address   *string   `json:"address,omitempty"`
	Detail    *string   `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunEventInput represents input for recording a run event
type RunEventInput struct {
	Kind    string
	Phase   string
	Address string
	Detail  string
}
