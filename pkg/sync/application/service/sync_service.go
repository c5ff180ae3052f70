// Package service exposes the caller-facing surface of the engine: preview,
// execute, and status, plus the operational explorer queries over jobs,
// conflicts, resolutions, and the delta cache. It is transport-agnostic; an
// HTTP or CLI adapter sits in front of it.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/engine/conflict"
	"github.com/syncline/syncline/pkg/sync/engine/delta"
	"github.com/syncline/syncline/pkg/sync/engine/orchestrator"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

const moduleName = "service"

// Execution result states surfaced to callers. Execute always returns a
// structured result distinguishing these; callers never infer failure from
// an error alone on the execute path.
const (
	StateCompleted = "completed"
	StateFailed    = "failed"
	StatePaused    = "paused"
)

// RequestContext carries the mandatory per-request credentials. Both fields
// are required; absence of either is a request-validation failure, not a
// processing failure.
type RequestContext struct {
	AuthToken string
	OrgID     string
}

// Validate checks the mandatory request fields.
func (rc RequestContext) Validate() error {
	if rc.AuthToken == "" {
		return exception.NewSyncErrorf(moduleName, "authentication credential is required", exception.ErrValidation)
	}
	if rc.OrgID == "" {
		return exception.NewSyncErrorf(moduleName, "organization id is required", exception.ErrValidation)
	}
	return nil
}

// PreviewResult is the caller-visible outcome of a preview request.
type PreviewResult struct {
	SyncID string
	Delta  *model.DeltaResult
	Cached bool
}

// ExecuteResult is the caller-visible outcome of an execute request.
type ExecuteResult struct {
	SyncID         string
	State          string
	Summary        *model.JobSummary
	Rollback       bool
	RollbackReason string
	Errors         []string
}

// StatusProgress merges batch history counts with live tracker metrics.
type StatusProgress struct {
	BatchesProcessed int
	Conflicts        int
	Snapshot         *model.ProgressSnapshot
}

// StatusResult is the caller-visible outcome of a status request.
type StatusResult struct {
	SyncID   string
	State    model.JobState
	Progress StatusProgress
}

// SyncService coordinates the Delta Engine, Orchestrator, and Conflict
// Resolver behind the logical preview/execute/status surface.
type SyncService struct {
	delta        *delta.Engine
	orchestrator *orchestrator.Orchestrator
	resolver     *conflict.Resolver
}

// NewSyncService creates a SyncService.
func NewSyncService(d *delta.Engine, o *orchestrator.Orchestrator, r *conflict.Resolver) *SyncService {
	return &SyncService{
		delta:        d,
		orchestrator: o,
		resolver:     r,
	}
}

// Preview computes (or serves from cache) the delta for the organization and
// source, and persists a draft SyncJob so a subsequent Execute can pick it
// up by sync id.
func (s *SyncService) Preview(ctx context.Context, rc RequestContext, source string, filter model.SyncFilter, skipCache bool) (*PreviewResult, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	result, err := s.delta.ComputeDelta(ctx, rc.OrgID, source, filter, skipCache)
	if err != nil {
		return nil, err
	}

	syncID, err := s.orchestrator.Initialize(ctx, orchestrator.JobConfig{
		OrgID:  rc.OrgID,
		Source: source,
		Filter: filter,
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Preview for org %s source %s: %d changes over %d external records (cached: %t).",
		rc.OrgID, source, result.TotalChanges(), result.ExternalTotal, result.Cached)
	return &PreviewResult{
		SyncID: syncID,
		Delta:  result,
		Cached: result.Cached,
	}, nil
}

// Execute runs the reconciliation for a previously initialized sync job and
// returns a structured result. The rollback policy is applied here: when the
// failed/processed ratio exceeds the threshold the job is forced to failed
// and the result reports rollback=true with the recorded reason instead of a
// success summary.
func (s *SyncService) Execute(ctx context.Context, rc RequestContext, syncID, conflictStrategy string) (*ExecuteResult, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	strategy := model.StrategyAutoRetry
	if conflictStrategy != "" {
		parsed, err := model.ParseResolutionStrategy(conflictStrategy)
		if err != nil {
			return nil, err
		}
		strategy = parsed
	}

	job, err := s.jobForOrg(ctx, rc, syncID)
	if err != nil {
		return nil, err
	}

	// Re-executing a finished run is idempotent: the recorded outcome is
	// returned and no batches are re-applied.
	if job.State == model.JobStateDone {
		summary, err := s.orchestrator.Summary(ctx, syncID)
		if err != nil {
			return nil, err
		}
		return &ExecuteResult{SyncID: syncID, State: StateCompleted, Summary: summary}, nil
	}
	if job.State == model.JobStateCancelled {
		return &ExecuteResult{
			SyncID: syncID,
			State:  StateFailed,
			Errors: []string{fmt.Sprintf("sync job %s was cancelled", syncID)},
		}, nil
	}

	if job.State == model.JobStateDraft {
		d, err := s.delta.ComputeDelta(ctx, rc.OrgID, job.Source, job.Filter, false)
		if err != nil {
			return nil, err
		}
		if err := s.orchestrator.Start(ctx, syncID, d.ExternalTotal); err != nil {
			return nil, err
		}
	}

	if err := s.orchestrator.RunToCompletion(ctx, syncID); err != nil {
		if errors.Is(err, orchestrator.ErrJobPaused) {
			return &ExecuteResult{SyncID: syncID, State: StatePaused}, nil
		}
		if ferr := s.orchestrator.Fail(ctx, syncID, err); ferr != nil {
			logger.Errorf("Failed to record job %s failure: %v", syncID, ferr)
		}
		return &ExecuteResult{
			SyncID: syncID,
			State:  StateFailed,
			Errors: []string{exception.ExtractErrorMessage(err)},
		}, nil
	}

	strategyErrs := s.applyStrategy(ctx, syncID, strategy)

	job, err = s.orchestrator.GetJob(ctx, syncID)
	if err != nil {
		return nil, err
	}

	if rollback, reason := s.orchestrator.ShouldRollback(job); rollback {
		if err := s.orchestrator.TriggerRollback(ctx, syncID, reason); err != nil {
			return nil, err
		}
		return &ExecuteResult{
			SyncID:         syncID,
			State:          StateFailed,
			Rollback:       true,
			RollbackReason: reason,
			Errors:         errorMessages(strategyErrs),
		}, nil
	}

	summary, err := s.orchestrator.Complete(ctx, syncID)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{
		SyncID:  syncID,
		State:   StateCompleted,
		Summary: summary,
		Errors:  errorMessages(strategyErrs),
	}, nil
}

// Status merges the job's persisted state with the live progress snapshot.
func (s *SyncService) Status(ctx context.Context, rc RequestContext, syncID string) (*StatusResult, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	job, err := s.jobForOrg(ctx, rc, syncID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		SyncID: syncID,
		State:  job.State,
		Progress: StatusProgress{
			BatchesProcessed: len(job.Batches),
			Conflicts:        len(job.ConflictIDs),
		},
	}
	if snap, err := s.orchestrator.Progress(syncID); err == nil {
		result.Progress.Snapshot = &snap
	}
	return result, nil
}

// Pause requests a pause; it takes effect at the next batch boundary.
func (s *SyncService) Pause(ctx context.Context, rc RequestContext, syncID string) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if _, err := s.jobForOrg(ctx, rc, syncID); err != nil {
		return err
	}
	return s.orchestrator.Pause(ctx, syncID)
}

// Resume returns a paused job to processing.
func (s *SyncService) Resume(ctx context.Context, rc RequestContext, syncID string) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if _, err := s.jobForOrg(ctx, rc, syncID); err != nil {
		return err
	}
	return s.orchestrator.Resume(ctx, syncID)
}

// Cancel cancels a draft, queued, or paused job.
func (s *SyncService) Cancel(ctx context.Context, rc RequestContext, syncID string) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if _, err := s.jobForOrg(ctx, rc, syncID); err != nil {
		return err
	}
	return s.orchestrator.Cancel(ctx, syncID)
}

// Recover clears a failed job's errors and resumes the remaining work.
func (s *SyncService) Recover(ctx context.Context, rc RequestContext, syncID string) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if _, err := s.jobForOrg(ctx, rc, syncID); err != nil {
		return err
	}
	return s.orchestrator.RecoverFromError(ctx, syncID)
}

// ListJobs lists the organization's jobs, newest first.
func (s *SyncService) ListJobs(ctx context.Context, rc RequestContext) ([]*model.SyncJob, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return s.orchestrator.JobsByOrg(ctx, rc.OrgID)
}

// ResolveConflict applies a resolution strategy to one live conflict.
func (s *SyncService) ResolveConflict(ctx context.Context, rc RequestContext, conflictID, strategy string) (*model.Conflict, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	parsed, err := model.ParseResolutionStrategy(strategy)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveWithStrategy(ctx, conflictID, parsed)
}

// ListConflicts lists live conflicts, optionally filtered by type.
func (s *SyncService) ListConflicts(ctx context.Context, rc RequestContext, conflictType string) ([]*model.Conflict, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	if conflictType != "" {
		return s.resolver.ConflictsByType(ctx, model.ConflictType(conflictType))
	}
	return s.resolver.AllConflicts(ctx)
}

// GetConflict fetches one live conflict by id.
func (s *SyncService) GetConflict(ctx context.Context, rc RequestContext, conflictID string) (*model.Conflict, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return s.resolver.GetConflict(ctx, conflictID)
}

// ListResolutions lists all resolution records, oldest first.
func (s *SyncService) ListResolutions(ctx context.Context, rc RequestContext) ([]*model.Resolution, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return s.resolver.AllResolutions(ctx)
}

// CacheStats exposes the delta cache size and key list.
func (s *SyncService) CacheStats(rc RequestContext) (delta.CacheStats, error) {
	if err := rc.Validate(); err != nil {
		return delta.CacheStats{}, err
	}
	return s.delta.Stats(), nil
}

// ClearDeltaCache drops every memoized delta result.
func (s *SyncService) ClearDeltaCache(rc RequestContext) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	s.delta.ClearCache()
	return nil
}

// jobForOrg loads a job and hides jobs of other organizations behind
// JobNotFound, so sync ids cannot be probed across tenants.
func (s *SyncService) jobForOrg(ctx context.Context, rc RequestContext, syncID string) (*model.SyncJob, error) {
	job, err := s.orchestrator.GetJob(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if job.OrgID != rc.OrgID {
		return nil, exception.NewSyncErrorf(moduleName, "sync job %s not found for organization %s", syncID, rc.OrgID,
			repository.ErrJobNotFound)
	}
	return job, nil
}

// applyStrategy applies the chosen strategy to every live conflict of the
// job. Per-conflict failures (e.g. an exhausted retry budget) are collected
// and reported on the execute result; they do not abort the run.
func (s *SyncService) applyStrategy(ctx context.Context, syncID string, strategy model.ResolutionStrategy) error {
	live, err := s.resolver.ConflictsByJob(ctx, syncID)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, c := range live {
		if _, err := s.resolver.ResolveWithStrategy(ctx, c.ID, strategy); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("conflict %s: %w", c.ID, err))
		}
	}
	return errs.ErrorOrNil()
}

func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		msgs := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
