// Package orchestrator implements the top-level sync state machine. It owns
// the SyncJob lifecycle, drives batch processing against the local store,
// routes item-level failures to the Conflict Resolver, feeds the Progress
// Tracker, and decides completion versus rollback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/engine/conflict"
	"github.com/syncline/syncline/pkg/sync/engine/progress"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

const moduleName = "orchestrator"

// RollbackThreshold is the failed/processed ratio above which a bulk
// execution is rolled back. This is a hard design constant, not per-job
// configuration, so failure semantics stay predictable across tenants.
const RollbackThreshold = 0.5

// ErrJobPaused signals that batch processing stopped at a batch boundary
// because the job was paused. The drive loop treats it as a clean stop, not
// a failure.
var ErrJobPaused = errors.New("job is paused")

func init() {
	exception.RegisterErrorType("JobPaused", ErrJobPaused)
}

// JobConfig carries the parameters of one reconciliation run.
type JobConfig struct {
	OrgID          string
	Source         string
	Filter         model.SyncFilter
	BatchSize      int
	IdempotencyKey string
}

// Orchestrator serializes all state transitions and batch processing per job
// id (single-writer-per-job); jobs with different ids proceed independently.
type Orchestrator struct {
	repo     repository.SyncJobRepository
	resolver *conflict.Resolver
	tracker  *progress.Tracker
	commerce port.CommerceClient
	local    port.LocalStore
	audit    port.AuditSink
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
// tracer may be nil; spans are then skipped.
func NewOrchestrator(
	repo repository.SyncJobRepository,
	resolver *conflict.Resolver,
	tracker *progress.Tracker,
	commerce port.CommerceClient,
	local port.LocalStore,
	audit port.AuditSink,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Orchestrator {
	o := &Orchestrator{
		repo:     repo,
		resolver: resolver,
		tracker:  tracker,
		commerce: commerce,
		local:    local,
		audit:    audit,
		recorder: recorder,
		tracer:   tracer,
		jobLocks: make(map[string]*sync.Mutex),
	}
	resolver.OnRetry(o.retryConflict)
	return o
}

// retryConflict is the scheduled auto-retry handler: it re-fetches the
// record that raised the conflict and re-applies it to the local store. A
// nil return tells the resolver the conflict no longer applies.
func (o *Orchestrator) retryConflict(ctx context.Context, c *model.Conflict) error {
	job, err := o.repo.FindJobByID(ctx, c.JobID)
	if err != nil {
		return err
	}
	rec, err := o.commerce.GetRecord(ctx, c.ExternalID)
	if err != nil {
		return err
	}
	if _, err := o.local.Upsert(ctx, job.OrgID, rec); err != nil {
		return err
	}
	logger.Debugf("Auto-retry for conflict %s succeeded (entity: %s).", c.ID, c.EntityID)
	return nil
}

// lockJob acquires the per-job writer lock and returns its release func.
// Pause and Cancel callers block here until an in-flight batch finishes,
// which is how pause is observed at the next batch boundary rather than
// mid-batch.
func (o *Orchestrator) lockJob(jobID string) func() {
	o.mu.Lock()
	l, ok := o.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		o.jobLocks[jobID] = l
	}
	o.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Initialize creates a SyncJob in the draft state and returns its id. When a
// non-terminal job already exists for the (organization, idempotency key)
// pair, the existing job's id is returned instead of creating a new one, so
// re-submitting the same key never double-applies work.
func (o *Orchestrator) Initialize(ctx context.Context, cfg JobConfig) (string, error) {
	if cfg.OrgID == "" {
		return "", exception.NewSyncErrorf(moduleName, "organization id is required", exception.ErrValidation)
	}
	if cfg.Source == "" {
		return "", exception.NewSyncErrorf(moduleName, "source is required", exception.ErrValidation)
	}

	if cfg.IdempotencyKey != "" {
		existing, err := o.repo.FindJobByIdempotencyKey(ctx, cfg.OrgID, cfg.IdempotencyKey)
		if err != nil && !errors.Is(err, repository.ErrJobNotFound) {
			return "", exception.NewSyncErrorf(moduleName, "idempotency lookup failed", err)
		}
		// The lookup only returns live jobs; terminal jobs release the key.
		if existing != nil {
			logger.Infof("Idempotency key '%s' matches live job %s (state: %s); returning it.",
				cfg.IdempotencyKey, existing.ID, existing.State)
			return existing.ID, nil
		}
	}

	job := model.NewSyncJob(cfg.OrgID, cfg.Source, cfg.Filter, cfg.BatchSize, cfg.IdempotencyKey)
	if err := o.repo.SaveJob(ctx, job); err != nil {
		return "", exception.NewSyncErrorf(moduleName, "failed to save new job", err)
	}
	logger.Infof("Initialized sync job %s (org: %s, source: %s, batch size: %d).",
		job.ID, job.OrgID, job.Source, job.BatchSize)
	return job.ID, nil
}

// Start moves the job through draft -> queued -> processing, records the
// expected total item count, and registers the job with the Progress Tracker.
func (o *Orchestrator) Start(ctx context.Context, jobID string, totalItems int) error {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.TransitionTo(model.JobStateQueued); err != nil {
		return err
	}
	if err := job.MarkAsStarted(); err != nil {
		return err
	}
	job.TotalItems = totalItems
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to persist job %s start", jobID, err)
	}

	o.tracker.StartTracking(jobID, totalItems)
	o.recorder.RecordJobStart(ctx, job)
	logger.Infof("Sync job %s started (%d items expected).", jobID, totalItems)
	return nil
}

// ProcessBatch processes one fixed-size slice of items for a job. It is
// valid only while the job is processing; a paused job fails with
// ErrJobPaused so the drive loop stops cleanly at the batch boundary.
//
// Item-level failures are isolated to the batch: conflicts go to the
// resolver, other item errors are recorded against the batch and counted as
// failed. Infrastructure failures propagate immediately and abort the batch.
// ProcessBatch does not decide pass/fail of the whole job; that happens at
// Complete.
func (o *Orchestrator) ProcessBatch(ctx context.Context, jobID string, items []model.ExternalRecord) (*model.Batch, error) {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State == model.JobStatePaused {
		return nil, ErrJobPaused
	}
	if job.State != model.JobStateProcessing {
		return nil, exception.NewSyncErrorf(moduleName,
			"cannot process batch for job %s in state %s", jobID, job.State,
			exception.ErrInvalidTransition)
	}

	batch := model.NewBatch(jobID, job.NextBatchNumber())
	batch.ItemCount = len(items)

	if o.tracer != nil {
		var endSpan func()
		ctx, endSpan = o.tracer.StartBatchSpan(ctx, jobID, batch.Number)
		defer endSpan()
	}

	for _, item := range items {
		if err := o.processItem(ctx, job, batch, item); err != nil {
			if o.tracer != nil {
				o.tracer.RecordError(ctx, moduleName, err)
			}
			return nil, err
		}
	}

	job.AddBatch(batch)
	if err := o.repo.SaveBatch(ctx, batch); err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to save batch %d of job %s", batch.Number, jobID, err)
	}
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to persist job %s after batch %d", jobID, batch.Number, err)
	}

	if _, err := o.tracker.UpdateProgress(jobID, batch.CreatedCount, batch.UpdatedCount, batch.FailedCount); err != nil {
		logger.Warnf("Progress update for job %s dropped: %v", jobID, err)
	}
	o.recorder.RecordBatchCommit(ctx, job, batch)
	o.recorder.RecordItemOutcome(ctx, job.Source, batch.CreatedCount, batch.UpdatedCount, batch.FailedCount)
	o.appendAudit(ctx, "batch", jobID, batch)

	logger.Debugf("Job %s batch %d committed: %d created, %d updated, %d failed.",
		jobID, batch.Number, batch.CreatedCount, batch.UpdatedCount, batch.FailedCount)
	return batch, nil
}

// processItem applies one external record to the local store and classifies
// the outcome. Only infrastructure errors are returned.
func (o *Orchestrator) processItem(ctx context.Context, job *model.SyncJob, batch *model.Batch, item model.ExternalRecord) error {
	created, err := o.local.Upsert(ctx, job.OrgID, item)
	if err == nil {
		if created {
			batch.CreatedCount++
		} else {
			batch.UpdatedCount++
		}
		return nil
	}

	var ce *port.ConflictError
	if errors.As(err, &ce) {
		c := model.NewConflict(job.ID, batch.Number, ce.EntityID, ce.ExternalID, ce.Detail)
		conflictID, regErr := o.resolver.RegisterConflict(ctx, c)
		if regErr != nil {
			return regErr
		}
		job.AddConflictRef(conflictID)
		batch.FailedCount++
		batch.Errors = append(batch.Errors, model.ItemError{EntityID: ce.EntityID, Message: ce.Error()})
		return nil
	}

	if errors.Is(err, exception.ErrUpstream) || exception.IsTemporary(err) {
		// Infrastructure-level I/O failure. Propagate instead of absorbing;
		// silently continuing could corrupt reconciliation correctness.
		return exception.NewSyncErrorf(moduleName, "upsert failed for record '%s': %v", item.ID, err,
			false, true, err)
	}

	batch.FailedCount++
	batch.Errors = append(batch.Errors, model.ItemError{EntityID: item.ID, Message: err.Error()})
	return nil
}

// RunToCompletion pages through the external source and processes batches
// until the collection is drained or the job is paused. It returns
// ErrJobPaused on pause; the batch history survives for Resume.
func (o *Orchestrator) RunToCompletion(ctx context.Context, jobID string) error {
	job, err := o.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if o.tracer != nil {
		var endSpan func()
		ctx, endSpan = o.tracer.StartJobSpan(ctx, job)
		defer endSpan()
	}

	pageSize := job.BatchSize
	for page := len(job.Batches); ; page++ {
		items, err := o.commerce.ListRecords(ctx, job.Filter, page, pageSize)
		if err != nil {
			return exception.NewSyncErrorf(moduleName, "commerce fetch failed on page %d: %v", page, err,
				false, true, fmt.Errorf("%w: %v", exception.ErrUpstream, err))
		}
		if len(items) == 0 {
			return nil
		}
		if _, err := o.ProcessBatch(ctx, jobID, items); err != nil {
			return err
		}
		if len(items) < pageSize {
			return nil
		}
	}
}

// Pause transitions a processing job to paused. An in-flight batch finishes
// draining first; batch history is preserved across the transition.
func (o *Orchestrator) Pause(ctx context.Context, jobID string) error {
	return o.transition(ctx, jobID, model.JobStatePaused)
}

// Resume transitions a paused job back to processing.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) error {
	return o.transition(ctx, jobID, model.JobStateProcessing)
}

// Cancel transitions a job to cancelled. Valid only from draft, queued, or
// paused; a processing job must be paused first.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.MarkAsCancelled(); err != nil {
		return err
	}
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to persist job %s cancellation", jobID, err)
	}
	o.recorder.RecordJobEnd(ctx, job)
	o.tracker.Cleanup(jobID)
	logger.Infof("Sync job %s cancelled.", jobID)
	return nil
}

// Complete transitions a processing job to done and returns its summary.
func (o *Orchestrator) Complete(ctx context.Context, jobID string) (*model.JobSummary, error) {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.MarkAsDone(); err != nil {
		return nil, err
	}
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to persist job %s completion", jobID, err)
	}

	if _, err := o.tracker.CompleteTracking(jobID); err != nil {
		logger.Debugf("Progress completion for job %s dropped: %v", jobID, err)
	}
	o.recorder.RecordJobEnd(ctx, job)

	summary, err := o.summarize(ctx, job)
	if err != nil {
		return nil, err
	}
	logger.Infof("Sync job %s completed: %d batches, %d created, %d updated, %d failed.",
		jobID, summary.TotalBatches, summary.Created, summary.Updated, summary.Failed)
	return summary, nil
}

// Summary builds the caller-visible summary of a job from its recorded batch
// history without changing its state.
func (o *Orchestrator) Summary(ctx context.Context, jobID string) (*model.JobSummary, error) {
	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return o.summarize(ctx, job)
}

// TriggerRollback forces a processing job to failed with the given rollback
// reason. The caller-visible execute result reports rollback=true instead of
// a success summary.
func (o *Orchestrator) TriggerRollback(ctx context.Context, jobID, reason string) error {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.MarkAsFailed(fmt.Errorf("rollback: %s", reason)); err != nil {
		return err
	}
	job.RollbackReason = reason
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to persist job %s rollback", jobID, err)
	}
	o.recorder.RecordJobEnd(ctx, job)
	logger.Warnf("Sync job %s rolled back: %s", jobID, reason)
	return nil
}

// Fail transitions a processing job to failed, recording the cause. Unlike
// TriggerRollback it carries no rollback semantics; RecoverFromError can
// retry the remaining work later.
func (o *Orchestrator) Fail(ctx context.Context, jobID string, cause error) error {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.MarkAsFailed(cause); err != nil {
		return err
	}
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to persist job %s failure", jobID, err)
	}
	o.recorder.RecordJobEnd(ctx, job)
	logger.Errorf("Sync job %s failed: %v", jobID, cause)
	return nil
}

// ShouldRollback reports whether the job's failure ratio exceeds the
// rollback threshold, and the recorded reason when it does.
func (o *Orchestrator) ShouldRollback(job *model.SyncJob) (bool, string) {
	ratio := job.FailureRatio()
	if ratio <= RollbackThreshold {
		return false, ""
	}
	return true, fmt.Sprintf("failure rate %.0f%% exceeded %.0f%% threshold (%d of %d items failed)",
		ratio*100, RollbackThreshold*100, job.FailedCount, job.ProcessedCount)
}

// RecoverFromError clears the accumulated error list of a failed job and
// returns it to processing. This is the only path out of failed.
func (o *Orchestrator) RecoverFromError(ctx context.Context, jobID string) error {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.TransitionTo(model.JobStateProcessing); err != nil {
		return err
	}
	job.ClearFailures()
	job.RollbackReason = ""
	job.EndTime = nil
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to persist job %s recovery", jobID, err)
	}
	logger.Infof("Sync job %s recovered from failed state; retrying remaining work.", jobID)
	return nil
}

// GetJob fetches a job with its batch history.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*model.SyncJob, error) {
	return o.repo.FindJobByID(ctx, jobID)
}

// JobsByOrg lists an organization's jobs, newest first.
func (o *Orchestrator) JobsByOrg(ctx context.Context, orgID string) ([]*model.SyncJob, error) {
	return o.repo.FindJobsByOrg(ctx, orgID)
}

// Progress returns the live progress snapshot of a job.
func (o *Orchestrator) Progress(jobID string) (model.ProgressSnapshot, error) {
	return o.tracker.Snapshot(jobID)
}

// transition applies one guarded state transition under the job lock.
func (o *Orchestrator) transition(ctx context.Context, jobID string, next model.JobState) error {
	unlock := o.lockJob(jobID)
	defer unlock()

	job, err := o.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.TransitionTo(next); err != nil {
		return err
	}
	if err := o.repo.UpdateJob(ctx, job); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to persist job %s transition to %s", jobID, next, err)
	}
	logger.Infof("Sync job %s transitioned to %s.", jobID, next)
	return nil
}

// summarize builds the caller-visible summary of a finished job.
func (o *Orchestrator) summarize(ctx context.Context, job *model.SyncJob) (*model.JobSummary, error) {
	live, err := o.resolver.ConflictsByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	var duration time.Duration
	if job.StartTime != nil && job.EndTime != nil {
		duration = job.EndTime.Sub(*job.StartTime)
	}
	return &model.JobSummary{
		JobID:           job.ID,
		TotalBatches:    len(job.Batches),
		Created:         job.CreatedCount,
		Updated:         job.UpdatedCount,
		Failed:          job.FailedCount,
		ConflictCount:   len(job.ConflictIDs),
		UnresolvedCount: len(live),
		Duration:        duration,
	}, nil
}

// appendAudit writes one audit entry, logging failures without failing the
// calling operation.
func (o *Orchestrator) appendAudit(ctx context.Context, kind, jobID string, payload interface{}) {
	if o.audit == nil {
		return
	}
	entry := port.AuditEntry{
		Kind:       kind,
		JobID:      jobID,
		Payload:    payload,
		RecordedAt: time.Now().Format(time.RFC3339),
	}
	if err := o.audit.Append(ctx, entry); err != nil {
		logger.Warnf("Failed to append %s audit entry for job %s: %v", kind, jobID, err)
	}
}
