package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunAll executes all pending jobs with at most limit running at once
// (limit <= 0 means no limit) and waits for them. The context is checked
// only before a job starts: a started run always finishes, jobs not yet
// started when ctx is done are marked cancelled.
//
// A failing job does not stop the others. RunAll returns an error if any
// job failed or was cancelled.
func (m *Manager) RunAll(ctx context.Context, limit int) error {
	pending := m.Pending()

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, id := range pending {
		g.Go(func() error {
			m.runJob(ctx, id)
			return nil
		})
	}
	g.Wait()

	var failed, cancelled int
	for _, id := range pending {
		job, _ := m.Get(id)
		switch job.State {
		case StateFailed:
			failed++
		case StateCancelled:
			cancelled++
		}
	}
	if failed+cancelled > 0 {
		return fmt.Errorf("%d of %d jobs failed, %d cancelled", failed, len(pending), cancelled)
	}
	return nil
}

func (m *Manager) runJob(ctx context.Context, id string) {
	// claim the job so that concurrent RunAll calls start it only once
	m.mu.Lock()
	job := m.jobs[id]
	if job.State != StatePending {
		m.mu.Unlock()
		return
	}
	fn := m.runs[id]
	name := job.Name
	start := time.Now()
	if ctx.Err() != nil {
		job.State = StateCancelled
		job.EndTime = &start
	} else {
		job.State = StateRunning
		job.StartTime = &start
	}
	state := job.State
	m.mu.Unlock()

	if state == StateCancelled {
		slog.Info("Job cancelled before start", "job_id", id, "name", name)
		return
	}

	slog.Info("Starting job", "job_id", id, "name", name)

	record, err := fn(ctx, id)
	if err != nil {
		markJobFailed(m, id, err)
		slog.Error("Job failed", "job_id", id, "name", name, "error", err)
		return
	}

	end := time.Now()
	m.Update(id, func(j *Job) {
		j.State = StateCompleted
		j.Record = record
		j.EndTime = &end
	})

	attrs := []any{"job_id", id, "name", name, "elapsed", end.Sub(start)}
	if record != nil {
		attrs = append(attrs, "best_cost", float64(record.BestCost), "iterations", record.Iterations)
	}
	slog.Info("Job completed", attrs...)
}

func markJobFailed(m *Manager, id string, err error) {
	end := time.Now()
	m.Update(id, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &end
	})
}
