// Package conflict implements the Conflict Resolver: it registers per-item
// disagreements detected during batch processing and resolves them under the
// auto-retry, manual, or skip strategy. Auto-retry backoffs run as deferred
// timer tasks so a single process can service many jobs' retries without
// blocking workers.
package conflict

import (
	"context"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

const moduleName = "conflict"

// ResolutionReasonAutoRetry is the resolution reason recorded when a retried
// operation eventually succeeds.
const ResolutionReasonAutoRetry = "auto_retry_succeeded"

// RetryFunc re-attempts the operation that raised a conflict. A nil error
// means the conflict no longer applies and can be resolved.
type RetryFunc func(ctx context.Context, conflict *model.Conflict) error

// Resolver owns the live conflict set and the immutable resolution records.
// Safe for concurrent use; per-conflict state changes go through the
// repository, which provides the atomicity of resolve operations.
type Resolver struct {
	repo      repository.ConflictRepository
	audit     port.AuditSink
	recorder  metrics.MetricRecorder
	backoff   BackoffPolicy
	scheduler *RetryScheduler
	retryFn   RetryFunc
}

// NewResolver creates a Resolver with the given backoff policy.
func NewResolver(repo repository.ConflictRepository, audit port.AuditSink, recorder metrics.MetricRecorder, backoff BackoffPolicy) *Resolver {
	return &Resolver{
		repo:      repo,
		audit:     audit,
		recorder:  recorder,
		backoff:   backoff,
		scheduler: NewRetryScheduler(),
	}
}

// OnRetry registers the callback invoked when a scheduled auto-retry fires.
// Without a callback, fired retries only log; they cannot re-attempt work.
func (r *Resolver) OnRetry(fn RetryFunc) {
	r.retryFn = fn
}

// Close stops the retry scheduler. Pending retries are dropped; their
// conflicts stay live for manual resolution.
func (r *Resolver) Close() {
	r.scheduler.Stop()
}

// RegisterConflict stores the conflict with status pending, appends it to the
// audit log, and returns its id. A conflict without an id gets a generated
// one.
func (r *Resolver) RegisterConflict(ctx context.Context, conflict *model.Conflict) (string, error) {
	if conflict.ID == "" {
		conflict.ID = model.NewID()
	}
	now := time.Now()
	conflict.Status = model.ConflictStatusPending
	if conflict.CreateTime.IsZero() {
		conflict.CreateTime = now
	}
	conflict.LastUpdated = now

	if err := r.repo.SaveConflict(ctx, conflict); err != nil {
		return "", exception.NewSyncErrorf(moduleName, "failed to save conflict for entity '%s'", conflict.EntityID, err)
	}
	r.appendAudit(ctx, "conflict", conflict.JobID, conflict)
	r.recorder.RecordConflictRegistered(ctx, conflict.Type())

	logger.Debugf("Registered %s conflict %s for entity '%s' (job: %s, batch: %d).",
		conflict.Type(), conflict.ID, conflict.EntityID, conflict.JobID, conflict.BatchNumber)
	return conflict.ID, nil
}

// ResolveWithStrategy applies one resolution strategy to a live conflict and
// returns its updated state.
//
// auto-retry increments the retry counter, moves the conflict to retrying,
// and schedules the re-attempt after the exponential backoff delay. It fails
// with MaxRetriesExceeded once the attempt count reaches the policy ceiling;
// that failure is terminal for the conflict and the caller records it against
// the owning job.
//
// manual parks the conflict as awaiting_manual_resolution and returns its
// payload for a human decision.
//
// skip immediately resolves the conflict with reason "skipped_by_user".
func (r *Resolver) ResolveWithStrategy(ctx context.Context, conflictID string, strategy model.ResolutionStrategy) (*model.Conflict, error) {
	conflict, err := r.repo.FindConflictByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case model.StrategyAutoRetry:
		if r.backoff.Exhausted(conflict.RetryCount) {
			return nil, exception.NewSyncErrorf(moduleName,
				"conflict %s exhausted %d retry attempts", conflictID, conflict.RetryCount,
				exception.ErrMaxRetriesExceeded)
		}
		delay := r.backoff.DelayFor(conflict.RetryCount)
		conflict.MarkRetrying()
		if err := r.repo.UpdateConflict(ctx, conflict); err != nil {
			return nil, exception.NewSyncErrorf(moduleName, "failed to update conflict %s", conflictID, err)
		}
		r.scheduler.Schedule(conflict.ID, delay, func() {
			r.fireRetry(conflict.ID)
		})
		return conflict, nil

	case model.StrategyManual:
		conflict.MarkAwaitingManual()
		if err := r.repo.UpdateConflict(ctx, conflict); err != nil {
			return nil, exception.NewSyncErrorf(moduleName, "failed to update conflict %s", conflictID, err)
		}
		logger.Infof("Conflict %s is awaiting manual resolution.", conflictID)
		return conflict, nil

	case model.StrategySkip:
		resolution, err := r.ResolveConflict(ctx, conflictID, model.StrategySkip, model.ResolutionReasonSkipped)
		if err != nil {
			return nil, err
		}
		resolved := resolution.Conflict
		return &resolved, nil

	default:
		return nil, exception.NewSyncErrorf(moduleName, "unknown resolution strategy: %q", strategy,
			exception.ErrUnknownStrategy)
	}
}

// ResolveConflict is the terminal operation: it moves the conflict from the
// live set into an immutable resolution record and appends the resolution to
// the audit log.
func (r *Resolver) ResolveConflict(ctx context.Context, conflictID string, strategy model.ResolutionStrategy, reason string) (*model.Resolution, error) {
	conflict, err := r.repo.FindConflictByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	r.scheduler.Cancel(conflictID)
	resolution := model.NewResolution(conflict, strategy, reason)
	if err := r.repo.ResolveConflict(ctx, conflictID, resolution); err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to resolve conflict %s", conflictID, err)
	}
	r.appendAudit(ctx, "resolution", resolution.JobID, resolution)
	r.recorder.RecordConflictResolved(ctx, strategy)

	logger.Infof("Conflict %s resolved via %s (%s).", conflictID, strategy, reason)
	return resolution, nil
}

// GetConflict fetches a live conflict by id.
func (r *Resolver) GetConflict(ctx context.Context, conflictID string) (*model.Conflict, error) {
	return r.repo.FindConflictByID(ctx, conflictID)
}

// AllConflicts lists all live conflicts, oldest first.
func (r *Resolver) AllConflicts(ctx context.Context) ([]*model.Conflict, error) {
	return r.repo.FindAllConflicts(ctx)
}

// ConflictsByType lists live conflicts of one type, oldest first.
func (r *Resolver) ConflictsByType(ctx context.Context, t model.ConflictType) ([]*model.Conflict, error) {
	return r.repo.FindConflictsByType(ctx, t)
}

// ConflictsByJob lists live conflicts raised by one job.
func (r *Resolver) ConflictsByJob(ctx context.Context, jobID string) ([]*model.Conflict, error) {
	return r.repo.FindConflictsByJob(ctx, jobID)
}

// ResolutionForConflict fetches the resolution recorded for a conflict.
func (r *Resolver) ResolutionForConflict(ctx context.Context, conflictID string) (*model.Resolution, error) {
	return r.repo.FindResolutionByConflictID(ctx, conflictID)
}

// AllResolutions lists all resolution records, oldest first.
func (r *Resolver) AllResolutions(ctx context.Context) ([]*model.Resolution, error) {
	return r.repo.FindAllResolutions(ctx)
}

// fireRetry runs on the scheduler goroutine when a backoff timer elapses.
// The conflict is re-read because its state may have changed (manual
// resolution, skip) while the timer was pending.
func (r *Resolver) fireRetry(conflictID string) {
	ctx := context.Background()

	conflict, err := r.repo.FindConflictByID(ctx, conflictID)
	if err != nil {
		logger.Debugf("Retry for conflict %s dropped: %v.", conflictID, err)
		return
	}
	if r.retryFn == nil {
		logger.Warnf("Retry fired for conflict %s but no retry handler is registered.", conflictID)
		return
	}

	if err := r.retryFn(ctx, conflict); err != nil {
		logger.Infof("Retry attempt %d for conflict %s failed: %v.", conflict.RetryCount, conflictID, err)
		if r.backoff.Exhausted(conflict.RetryCount) {
			conflict.MarkAwaitingManual()
			if uerr := r.repo.UpdateConflict(ctx, conflict); uerr != nil {
				logger.Errorf("Failed to park exhausted conflict %s: %v", conflictID, uerr)
			}
			return
		}
		delay := r.backoff.DelayFor(conflict.RetryCount)
		conflict.MarkRetrying()
		if uerr := r.repo.UpdateConflict(ctx, conflict); uerr != nil {
			logger.Errorf("Failed to update conflict %s before rescheduling: %v", conflictID, uerr)
			return
		}
		r.scheduler.Schedule(conflict.ID, delay, func() {
			r.fireRetry(conflict.ID)
		})
		return
	}

	if _, err := r.ResolveConflict(ctx, conflictID, model.StrategyAutoRetry, ResolutionReasonAutoRetry); err != nil {
		logger.Errorf("Failed to resolve conflict %s after successful retry: %v", conflictID, err)
	}
}

// appendAudit writes one audit entry, logging failures without failing the
// calling operation. The audit log serves inspection, not recovery.
func (r *Resolver) appendAudit(ctx context.Context, kind, jobID string, payload interface{}) {
	if r.audit == nil {
		return
	}
	entry := port.AuditEntry{
		Kind:       kind,
		JobID:      jobID,
		Payload:    payload,
		RecordedAt: time.Now().Format(time.RFC3339),
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		logger.Warnf("Failed to append %s audit entry for job %s: %v", kind, jobID, err)
	}
}
