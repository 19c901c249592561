package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
)

// MemoryStore keeps jobs in memory. It is the default backend for single
// process deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]Job
	results map[string][]admissions.AdmissionsRecord
	clock   admissions.Clock
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore. A nil clock uses the
// system clock.
func NewMemoryStore(clk admissions.Clock) *MemoryStore {
	if clk == nil {
		clk = system.New()
	}
	return &MemoryStore{
		jobs:    make(map[string]Job),
		results: make(map[string][]admissions.AdmissionsRecord),
		clock:   clk,
	}
}

// Create stores a new job.
func (s *MemoryStore) Create(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get fetches a job by id.
func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job, nil
}

// UpdateStatus updates the status, error text and counters for a job.
// Terminal jobs are frozen.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, errText string, counts admissions.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, ErrFinished)
	}

	job.Status = status
	job.Error = errText
	job.Counts = counts
	now := s.clock.Now()
	if status == StatusRunning && job.StartedAt == nil {
		job.StartedAt = pointerTime(now)
	}
	if status.Terminal() {
		job.FinishedAt = pointerTime(now)
	}
	s.jobs[id] = job
	return nil
}

// SaveResults attaches crawl output to a job.
func (s *MemoryStore) SaveResults(_ context.Context, id string, records []admissions.AdmissionsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	out := make([]admissions.AdmissionsRecord, len(records))
	copy(out, records)
	s.results[id] = out
	return nil
}

// Results returns the stored crawl output for a job.
func (s *MemoryStore) Results(_ context.Context, id string) ([]admissions.AdmissionsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[id]; !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	records, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNoResults)
	}
	out := make([]admissions.AdmissionsRecord, len(records))
	copy(out, records)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
