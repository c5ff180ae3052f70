// Package progress maintains live throughput, ETA, and percent-complete
// metrics per running sync job. Tracking state lives in process memory only
// and must be rehydrated or discarded on restart; the SyncJob counters
// remain the authoritative source of truth.
package progress

import (
	"errors"
	"sync"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// ErrNotTracked is the error returned when a job id has no tracking state.
var ErrNotTracked = errors.New("job is not tracked")

func init() {
	exception.RegisterErrorType("ErrNotTracked", ErrNotTracked)
}

// jobProgress is the per-job counter set. Batches within a job are processed
// serially, so the counters need no locking of their own; the containing map
// is guarded for cross-job access.
type jobProgress struct {
	total       int
	created     int
	updated     int
	failed      int
	startedAt   time.Time
	lastUpdated time.Time
	done        bool
	duration    time.Duration
	history     []model.ProgressUpdate
}

func (p *jobProgress) processed() int {
	return p.created + p.updated + p.failed
}

// Tracker tracks multiple jobs independently. No cross-job aggregation is
// performed.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*jobProgress
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]*jobProgress),
	}
}

// StartTracking initializes the counter set and start timestamp for a job.
// total may be 0. Restarting tracking for an already-tracked job resets it.
func (t *Tracker) StartTracking(jobID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.jobs[jobID] = &jobProgress{
		total:       total,
		startedAt:   now,
		lastUpdated: now,
		history:     make([]model.ProgressUpdate, 0),
	}
	logger.Debugf("Progress tracking started for job %s (total: %d).", jobID, total)
}

// UpdateProgress atomically increments the cumulative counters, appends an
// immutable update record to the job's history, and returns the recomputed
// snapshot.
func (t *Tracker) UpdateProgress(jobID string, created, updated, failed int) (model.ProgressSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.jobs[jobID]
	if !ok {
		return model.ProgressSnapshot{}, ErrNotTracked
	}

	now := time.Now()
	p.created += created
	p.updated += updated
	p.failed += failed
	p.lastUpdated = now
	p.history = append(p.history, model.ProgressUpdate{
		Created:    created,
		Updated:    updated,
		Failed:     failed,
		RecordedAt: now,
	})

	return t.snapshotLocked(jobID, p), nil
}

// Snapshot returns the current derived metrics for a job.
func (t *Tracker) Snapshot(jobID string) (model.ProgressSnapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.jobs[jobID]
	if !ok {
		return model.ProgressSnapshot{}, ErrNotTracked
	}
	return t.snapshotLocked(jobID, p), nil
}

// History returns the immutable update records of a job, oldest first.
func (t *Tracker) History(jobID string) ([]model.ProgressUpdate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.jobs[jobID]
	if !ok {
		return nil, ErrNotTracked
	}
	out := make([]model.ProgressUpdate, len(p.history))
	copy(out, p.history)
	return out, nil
}

// CompleteTracking freezes the final metrics and records the total duration.
// The tracker only mirrors terminal status for reporting; it has no
// authority over the sync state machine.
func (t *Tracker) CompleteTracking(jobID string) (model.ProgressSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.jobs[jobID]
	if !ok {
		return model.ProgressSnapshot{}, ErrNotTracked
	}
	p.done = true
	p.duration = time.Since(p.startedAt)
	p.lastUpdated = time.Now()
	logger.Debugf("Progress tracking completed for job %s after %s.", jobID, p.duration)
	return t.snapshotLocked(jobID, p), nil
}

// Cleanup discards the tracking state of one job.
func (t *Tracker) Cleanup(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, jobID)
}

// CleanupAll discards all tracking state.
func (t *Tracker) CleanupAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = make(map[string]*jobProgress)
}

// TrackedJobs returns the ids of all currently tracked jobs.
func (t *Tracker) TrackedJobs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.jobs))
	for id := range t.jobs {
		ids = append(ids, id)
	}
	return ids
}

// snapshotLocked recomputes the derived metrics from the cumulative counters
// and elapsed wall-clock time. Callers must hold at least a read lock.
func (t *Tracker) snapshotLocked(jobID string, p *jobProgress) model.ProgressSnapshot {
	processed := p.processed()
	elapsed := p.lastUpdated.Sub(p.startedAt)
	if p.done {
		elapsed = p.duration
	}

	var itemsPerSecond float64
	if elapsed > 0 {
		itemsPerSecond = float64(processed) / elapsed.Seconds()
	}

	var percentComplete float64
	if p.total > 0 {
		percentComplete = float64(processed) / float64(p.total) * 100
	}

	var eta *time.Duration
	if itemsPerSecond > 0 {
		remaining := p.total - processed
		if remaining < 0 {
			remaining = 0
		}
		d := time.Duration(float64(remaining) / itemsPerSecond * float64(time.Second))
		eta = &d
	}

	return model.ProgressSnapshot{
		JobID:                  jobID,
		Total:                  p.total,
		Processed:              processed,
		Created:                p.created,
		Updated:                p.updated,
		Failed:                 p.failed,
		ItemsPerSecond:         itemsPerSecond,
		ItemsPerMinute:         itemsPerSecond * 60,
		PercentComplete:        percentComplete,
		EstimatedTimeRemaining: eta,
		Done:                   p.done,
		Duration:               elapsed,
		StartedAt:              p.startedAt,
		LastUpdated:            p.lastUpdated,
	}
}
