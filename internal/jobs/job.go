// Package jobs runs independent optimization runs concurrently. Every job
// builds its own operator, solver and executor inside its RunFunc, so no
// run state is shared between jobs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/iteropt/internal/store"
)

// State represents the current state of a job
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// RunFunc performs one run and returns its record. jobID doubles as the
// run ID for persisted artifacts.
type RunFunc func(ctx context.Context, jobID string) (*store.Record, error)

// Job is a snapshot of one submitted run.
type Job struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	State     State         `json:"state"`
	Record    *store.Record `json:"record,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	StartTime *time.Time    `json:"startTime,omitempty"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
}

// Done reports whether the job has reached a final state.
func (j Job) Done() bool {
	return j.State == StateCompleted || j.State == StateFailed || j.State == StateCancelled
}

// Manager manages the lifecycle of jobs
type Manager struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	runs  map[string]RunFunc
	order []string
}

// NewManager creates an empty Manager
func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
		runs: make(map[string]RunFunc),
	}
}

// Submit registers a pending job. It does not start it; see RunAll.
func (m *Manager) Submit(name string, fn RunFunc) Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		State:     StatePending,
		CreatedAt: time.Now(),
	}

	m.jobs[job.ID] = job
	m.runs[job.ID] = fn
	m.order = append(m.order, job.ID)
	return *job
}

// Get retrieves a job by ID
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// List returns all jobs in submission order
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, *m.jobs[id])
	}
	return jobs
}

// Update atomically updates a job using the provided function
func (m *Manager) Update(id string, updateFn func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// Pending returns the IDs of all jobs that have not been started, in
// submission order
func (m *Manager) Pending() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0)
	for _, id := range m.order {
		if m.jobs[id].State == StatePending {
			ids = append(ids, id)
		}
	}
	return ids
}
