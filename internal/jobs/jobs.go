// Package jobs tracks crawl jobs submitted through the API: their lifecycle
// state, run counters and stored results. Backends share the Store interface
// so the server can run on memory or Postgres.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// Store lookup errors shared by all backends.
var (
	ErrNotFound      = errors.New("job not found")
	ErrAlreadyExists = errors.New("job already exists")
	ErrFinished      = errors.New("job already finished")
	ErrNoResults     = errors.New("job has no results")
)

// Status represents the lifecycle state of a crawl job.
type Status string

// Job status values persisted in the job store.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Parameters captures the crawl request that created a job.
type Parameters struct {
	Targets           []admissions.UniversityTarget `json:"targets"`
	RunTimeoutSeconds int                           `json:"run_timeout_seconds,omitempty"`
}

// Job is the metadata persisted for each submitted crawl request.
type Job struct {
	ID          string                `json:"job_id"`
	Status      Status                `json:"status"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
	Error       string                `json:"error,omitempty"`
	Counts      admissions.RunSummary `json:"counts"`
	Parameters  Parameters            `json:"parameters"`
}

// Store persists jobs and their crawl results.
type Store interface {
	// Create stores a new job. The id must be unused.
	Create(ctx context.Context, job Job) error
	// Get fetches a job by id or returns ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)
	// UpdateStatus moves a job through its lifecycle. Running sets
	// started_at once; terminal statuses set finished_at and freeze the job.
	UpdateStatus(ctx context.Context, id string, status Status, errText string, counts admissions.RunSummary) error
	// SaveResults attaches the crawl output to a job.
	SaveResults(ctx context.Context, id string, records []admissions.AdmissionsRecord) error
	// Results returns the stored crawl output, ErrNoResults when none was
	// saved, or ErrNotFound for an unknown job.
	Results(ctx context.Context, id string) ([]admissions.AdmissionsRecord, error)
}
