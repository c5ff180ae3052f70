package orchestrator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncline/syncline/pkg/sync/core/config"
	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/engine/conflict"
	"github.com/syncline/syncline/pkg/sync/engine/orchestrator"
	"github.com/syncline/syncline/pkg/sync/engine/progress"
	"github.com/syncline/syncline/pkg/sync/infrastructure/commerce/memory"
	"github.com/syncline/syncline/pkg/sync/infrastructure/repository/inmemory"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

type testHarness struct {
	orch     *orchestrator.Orchestrator
	resolver *conflict.Resolver
	tracker  *progress.Tracker
	client   *memory.MemoryCommerceClient
	store    *memory.MemoryLocalStore
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	repo := inmemory.NewInMemorySyncRepository()
	recorder := metrics.NewNoOpMetricRecorder()
	resolver := conflict.NewResolver(repo, nil, recorder, conflict.NewBackoffPolicy(config.ConflictRetryConfig{}))
	t.Cleanup(resolver.Close)
	tracker := progress.NewTracker()
	client := memory.NewMemoryCommerceClient()
	store := memory.NewMemoryLocalStore()

	orch := orchestrator.NewOrchestrator(repo, resolver, tracker, client, store, nil, recorder, metrics.NewNoOpTracer())
	return &testHarness{orch: orch, resolver: resolver, tracker: tracker, client: client, store: store}
}

func (h *testHarness) startedJob(t *testing.T, totalItems int) string {
	t.Helper()
	jobID, err := h.orch.Initialize(context.Background(), orchestrator.JobConfig{OrgID: "org-1", Source: "woocommerce"})
	require.NoError(t, err)
	require.NoError(t, h.orch.Start(context.Background(), jobID, totalItems))
	return jobID
}

func seedRecords(n int) []model.ExternalRecord {
	records := make([]model.ExternalRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, model.ExternalRecord{
			ID:        model.NewID(),
			Email:     model.NewID() + "@example.com",
			Segment:   "retail",
			Status:    "active",
			UpdatedAt: time.Now(),
		})
	}
	return records
}

func TestOrchestrator_InitializeValidation(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.orch.Initialize(context.Background(), orchestrator.JobConfig{Source: "woocommerce"})
	assert.True(t, errors.Is(err, exception.ErrValidation))

	_, err = h.orch.Initialize(context.Background(), orchestrator.JobConfig{OrgID: "org-1"})
	assert.True(t, errors.Is(err, exception.ErrValidation))
}

func TestOrchestrator_InitializeIdempotent(t *testing.T) {
	h := newTestHarness(t)
	cfg := orchestrator.JobConfig{OrgID: "org-1", Source: "woocommerce", IdempotencyKey: "key-1"}

	first, err := h.orch.Initialize(context.Background(), cfg)
	require.NoError(t, err)

	// Re-submitting the same key returns the live job instead of a new one.
	second, err := h.orch.Initialize(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Once the job reaches a terminal state the key is reusable.
	require.NoError(t, h.orch.Cancel(context.Background(), first))
	third, err := h.orch.Initialize(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	// The replacement job now holds the key: re-submitting keeps returning
	// it even though the cancelled job still shares the key, so exactly one
	// live job exists per (organization, key) pair.
	fourth, err := h.orch.Initialize(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, third, fourth)

	jobs, err := h.orch.JobsByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestOrchestrator_StartTransitionsAndTracks(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 100)

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateProcessing, job.State)
	assert.Equal(t, 100, job.TotalItems)
	require.NotNil(t, job.StartTime)

	snap, err := h.orch.Progress(jobID)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Total)
}

func TestOrchestrator_ProcessBatchOutcomes(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 3)

	records := seedRecords(3)
	// One record already exists locally, so it counts as updated.
	h.store.SeedLocal("org-1", model.LocalRecord{
		EntityID:   "e1",
		ExternalID: records[0].ID,
		Email:      records[0].Email,
		Segment:    "stale",
		Status:     "active",
	})

	batch, err := h.orch.ProcessBatch(context.Background(), jobID, records)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Number)
	assert.Equal(t, 3, batch.ItemCount)
	assert.Equal(t, 2, batch.CreatedCount)
	assert.Equal(t, 1, batch.UpdatedCount)
	assert.Equal(t, 0, batch.FailedCount)

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, job.ProcessedCount)
	require.Len(t, job.Batches, 1)
}

func TestOrchestrator_ProcessBatchRegistersConflicts(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 2)

	records := seedRecords(2)
	h.store.AddConflictRule(func(orgID string, rec model.ExternalRecord) *port.ConflictError {
		if rec.ID != records[0].ID {
			return nil
		}
		return &port.ConflictError{
			EntityID:   "entity-9",
			ExternalID: rec.ID,
			Detail:     model.DuplicateKeyDetail{Key: "email", Value: rec.Email, ExistingEntityID: "entity-9"},
		}
	})

	batch, err := h.orch.ProcessBatch(context.Background(), jobID, records)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CreatedCount)
	assert.Equal(t, 1, batch.FailedCount)
	require.Len(t, batch.Errors, 1)

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, job.ConflictIDs, 1)

	live, err := h.resolver.ConflictsByJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, model.ConflictTypeDuplicateKey, live[0].Type())
	assert.Equal(t, 1, live[0].BatchNumber)
}

func TestOrchestrator_ProcessBatchUpstreamFailureAborts(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 2)

	h.store.FailWith(errors.New("connection refused"))
	_, err := h.orch.ProcessBatch(context.Background(), jobID, seedRecords(2))
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))

	// Nothing was committed for the aborted batch.
	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Empty(t, job.Batches)
}

func TestOrchestrator_RunToCompletion(t *testing.T) {
	h := newTestHarness(t)

	records := seedRecords(120)
	h.client.Seed(records)

	jobID, err := h.orch.Initialize(context.Background(), orchestrator.JobConfig{
		OrgID: "org-1", Source: "woocommerce", BatchSize: 50,
	})
	require.NoError(t, err)
	require.NoError(t, h.orch.Start(context.Background(), jobID, len(records)))
	require.NoError(t, h.orch.RunToCompletion(context.Background(), jobID))

	summary, err := h.orch.Complete(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalBatches) // 50 + 50 + 20
	assert.Equal(t, 120, summary.Created)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 120, h.store.Count("org-1"))

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateDone, job.State)
}

func TestOrchestrator_PauseResumeContinuesWork(t *testing.T) {
	h := newTestHarness(t)

	records := seedRecords(100)
	h.client.Seed(records)

	jobID, err := h.orch.Initialize(context.Background(), orchestrator.JobConfig{
		OrgID: "org-1", Source: "woocommerce", BatchSize: 50,
	})
	require.NoError(t, err)
	require.NoError(t, h.orch.Start(context.Background(), jobID, len(records)))

	// Process the first page, then pause at the batch boundary.
	_, err = h.orch.ProcessBatch(context.Background(), jobID, records[:50])
	require.NoError(t, err)
	require.NoError(t, h.orch.Pause(context.Background(), jobID))

	_, err = h.orch.ProcessBatch(context.Background(), jobID, records[50:])
	assert.True(t, errors.Is(err, orchestrator.ErrJobPaused))

	// Resume picks up after the committed batch history.
	require.NoError(t, h.orch.Resume(context.Background(), jobID))
	require.NoError(t, h.orch.RunToCompletion(context.Background(), jobID))

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Len(t, job.Batches, 2)
	assert.Equal(t, 100, job.ProcessedCount)
}

func TestOrchestrator_CancelOnlyFromQuiescentStates(t *testing.T) {
	h := newTestHarness(t)

	// Draft jobs cancel cleanly.
	jobID, err := h.orch.Initialize(context.Background(), orchestrator.JobConfig{OrgID: "org-1", Source: "woocommerce"})
	require.NoError(t, err)
	require.NoError(t, h.orch.Cancel(context.Background(), jobID))

	// Processing jobs must pause first.
	jobID = h.startedJob(t, 10)
	err = h.orch.Cancel(context.Background(), jobID)
	assert.True(t, errors.Is(err, exception.ErrInvalidTransition))

	require.NoError(t, h.orch.Pause(context.Background(), jobID))
	require.NoError(t, h.orch.Cancel(context.Background(), jobID))

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateCancelled, job.State)
	require.NotNil(t, job.EndTime)
}

func TestOrchestrator_ShouldRollback(t *testing.T) {
	h := newTestHarness(t)

	job := model.NewSyncJob("org-1", "woocommerce", model.SyncFilter{}, 50, "")
	job.ProcessedCount = 100
	job.FailedCount = 60

	rollback, reason := h.orch.ShouldRollback(job)
	assert.True(t, rollback)
	assert.Contains(t, reason, "60%")
	assert.Contains(t, reason, "60 of 100")

	// Exactly at the threshold does not roll back.
	job.FailedCount = 50
	rollback, _ = h.orch.ShouldRollback(job)
	assert.False(t, rollback)
}

func TestOrchestrator_TriggerRollback(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 10)

	require.NoError(t, h.orch.TriggerRollback(context.Background(), jobID, "failure rate too high"))

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, job.State)
	assert.Equal(t, "failure rate too high", job.RollbackReason)
	assert.NotEmpty(t, job.Errors)
}

func TestOrchestrator_FailAndRecover(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 10)

	require.NoError(t, h.orch.Fail(context.Background(), jobID, errors.New("upstream exploded")))

	job, err := h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, job.State)
	assert.NotEmpty(t, job.Errors)
	require.NotNil(t, job.EndTime)

	require.NoError(t, h.orch.RecoverFromError(context.Background(), jobID))

	job, err = h.orch.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateProcessing, job.State)
	assert.Empty(t, job.Errors)
	assert.Nil(t, job.EndTime)
}

func TestOrchestrator_CompleteSummarizesConflicts(t *testing.T) {
	h := newTestHarness(t)
	jobID := h.startedJob(t, 2)

	records := seedRecords(2)
	h.store.AddConflictRule(func(orgID string, rec model.ExternalRecord) *port.ConflictError {
		if rec.ID != records[1].ID {
			return nil
		}
		return &port.ConflictError{
			EntityID:   "entity-1",
			ExternalID: rec.ID,
			Detail:     model.ValidationDetail{Field: "email", Rule: "format", Message: "bad email"},
		}
	})

	_, err := h.orch.ProcessBatch(context.Background(), jobID, records)
	require.NoError(t, err)

	summary, err := h.orch.Complete(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ConflictCount)
	assert.Equal(t, 1, summary.UnresolvedCount)

	// Resolving the conflict afterwards drops it from the unresolved count
	// of later summaries but the history stays on the job.
	live, err := h.resolver.ConflictsByJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	_, err = h.resolver.ResolveWithStrategy(context.Background(), live[0].ID, model.StrategySkip)
	require.NoError(t, err)
}

func TestOrchestrator_AutoRetryReappliesRecord(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()
	recorder := metrics.NewNoOpMetricRecorder()
	resolver := conflict.NewResolver(repo, nil, recorder,
		conflict.NewBackoffPolicy(config.ConflictRetryConfig{InitialIntervalMs: 1}))
	t.Cleanup(resolver.Close)
	client := memory.NewMemoryCommerceClient()
	store := memory.NewMemoryLocalStore()
	orch := orchestrator.NewOrchestrator(repo, resolver, progress.NewTracker(), client, store, nil, recorder, metrics.NewNoOpTracer())

	records := seedRecords(2)
	client.Seed(records)

	// The first record conflicts until the blocking condition clears.
	var blocked atomic.Bool
	blocked.Store(true)
	store.AddConflictRule(func(orgID string, rec model.ExternalRecord) *port.ConflictError {
		if rec.ID != records[0].ID || !blocked.Load() {
			return nil
		}
		return &port.ConflictError{
			EntityID:   "entity-9",
			ExternalID: rec.ID,
			Detail:     model.DuplicateKeyDetail{Key: "email", Value: rec.Email, ExistingEntityID: "entity-9"},
		}
	})

	jobID, err := orch.Initialize(context.Background(), orchestrator.JobConfig{OrgID: "org-1", Source: "woocommerce"})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background(), jobID, len(records)))
	_, err = orch.ProcessBatch(context.Background(), jobID, records)
	require.NoError(t, err)

	liveConflicts, err := resolver.ConflictsByJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, liveConflicts, 1)
	conflictID := liveConflicts[0].ID

	// Clear the condition and let the scheduled retry re-apply the record
	// through the orchestrator's handler.
	blocked.Store(false)
	_, err = resolver.ResolveWithStrategy(context.Background(), conflictID, model.StrategyAutoRetry)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		res, err := resolver.ResolutionForConflict(context.Background(), conflictID)
		return err == nil && res.Reason == conflict.ResolutionReasonAutoRetry
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, store.Count("org-1"))
}

func TestOrchestrator_AutoRetryExhaustionParksConflict(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()
	recorder := metrics.NewNoOpMetricRecorder()
	resolver := conflict.NewResolver(repo, nil, recorder,
		conflict.NewBackoffPolicy(config.ConflictRetryConfig{InitialIntervalMs: 1}))
	t.Cleanup(resolver.Close)
	client := memory.NewMemoryCommerceClient()
	store := memory.NewMemoryLocalStore()
	orch := orchestrator.NewOrchestrator(repo, resolver, progress.NewTracker(), client, store, nil, recorder, metrics.NewNoOpTracer())

	records := seedRecords(1)
	client.Seed(records)
	store.AddConflictRule(func(orgID string, rec model.ExternalRecord) *port.ConflictError {
		return &port.ConflictError{
			EntityID:   "entity-9",
			ExternalID: rec.ID,
			Detail:     model.DuplicateKeyDetail{Key: "email", Value: rec.Email, ExistingEntityID: "entity-9"},
		}
	})

	jobID, err := orch.Initialize(context.Background(), orchestrator.JobConfig{OrgID: "org-1", Source: "woocommerce"})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background(), jobID, len(records)))
	_, err = orch.ProcessBatch(context.Background(), jobID, records)
	require.NoError(t, err)

	liveConflicts, err := resolver.ConflictsByJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, liveConflicts, 1)
	conflictID := liveConflicts[0].ID

	// The condition never clears, so the retries burn through the attempt
	// ceiling and the conflict parks for a human decision.
	_, err = resolver.ResolveWithStrategy(context.Background(), conflictID, model.StrategyAutoRetry)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		c, err := resolver.GetConflict(context.Background(), conflictID)
		return err == nil && c.Status == model.ConflictStatusAwaitingManual
	}, 2*time.Second, 5*time.Millisecond)
}
