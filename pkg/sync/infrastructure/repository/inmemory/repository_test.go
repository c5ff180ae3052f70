package inmemory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/infrastructure/repository/inmemory"
)

func newStoredJob(t *testing.T, repo *inmemory.InMemorySyncRepository, orgID string) *model.SyncJob {
	t.Helper()
	job := model.NewSyncJob(orgID, "woocommerce", model.SyncFilter{}, 50, "")
	require.NoError(t, repo.SaveJob(context.Background(), job))
	return job
}

func TestInMemoryRepository_JobRoundTrip(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()
	job := newStoredJob(t, repo, "org-1")

	got, err := repo.FindJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.JobStateDraft, got.State)

	require.NoError(t, got.TransitionTo(model.JobStateQueued))
	require.NoError(t, repo.UpdateJob(context.Background(), got))

	reread, err := repo.FindJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateQueued, reread.State)
}

func TestInMemoryRepository_JobNotFound(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	_, err := repo.FindJobByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrJobNotFound))

	err = repo.UpdateJob(context.Background(), model.NewSyncJob("org-1", "s", model.SyncFilter{}, 0, ""))
	assert.True(t, errors.Is(err, repository.ErrJobNotFound))
}

func TestInMemoryRepository_FindJobByIdempotencyKey(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()
	job := model.NewSyncJob("org-1", "woocommerce", model.SyncFilter{}, 50, "key-1")
	require.NoError(t, repo.SaveJob(context.Background(), job))

	got, err := repo.FindJobByIdempotencyKey(context.Background(), "org-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	// The key is scoped per organization.
	_, err = repo.FindJobByIdempotencyKey(context.Background(), "org-2", "key-1")
	assert.True(t, errors.Is(err, repository.ErrJobNotFound))
}

func TestInMemoryRepository_IdempotencyKeyReleasedByTerminalJobs(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	cancelled := model.NewSyncJob("org-1", "woocommerce", model.SyncFilter{}, 50, "key-1")
	require.NoError(t, cancelled.TransitionTo(model.JobStateCancelled))
	require.NoError(t, repo.SaveJob(context.Background(), cancelled))

	// Only a terminal job holds the key: the key reads as free.
	_, err := repo.FindJobByIdempotencyKey(context.Background(), "org-1", "key-1")
	assert.True(t, errors.Is(err, repository.ErrJobNotFound))

	// A live job alongside the terminal one is always the job returned,
	// regardless of map iteration order.
	live := model.NewSyncJob("org-1", "woocommerce", model.SyncFilter{}, 50, "key-1")
	require.NoError(t, repo.SaveJob(context.Background(), live))
	for i := 0; i < 20; i++ {
		got, err := repo.FindJobByIdempotencyKey(context.Background(), "org-1", "key-1")
		require.NoError(t, err)
		assert.Equal(t, live.ID, got.ID)
	}
}

func TestInMemoryRepository_FindJobsByOrgNewestFirst(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	older := newStoredJob(t, repo, "org-1")
	older.CreateTime = time.Now().Add(-time.Hour)
	require.NoError(t, repo.UpdateJob(context.Background(), older))
	newer := newStoredJob(t, repo, "org-1")
	newStoredJob(t, repo, "org-2")

	jobs, err := repo.FindJobsByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newer.ID, jobs[0].ID)
	assert.Equal(t, older.ID, jobs[1].ID)
}

func TestInMemoryRepository_StoredJobIsIsolated(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()
	job := newStoredJob(t, repo, "org-1")

	got, err := repo.FindJobByID(context.Background(), job.ID)
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	got.State = model.JobStateDone
	got.ConflictIDs = append(got.ConflictIDs, "c1")

	reread, err := repo.FindJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateDraft, reread.State)
	assert.Empty(t, reread.ConflictIDs)
}

func TestInMemoryRepository_Batches(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()
	job := newStoredJob(t, repo, "org-1")

	b1 := model.NewBatch(job.ID, 1)
	b2 := model.NewBatch(job.ID, 2)
	require.NoError(t, repo.SaveBatch(context.Background(), b1))
	require.NoError(t, repo.SaveBatch(context.Background(), b2))

	batches, err := repo.FindBatchesByJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0].Number)
	assert.Equal(t, 2, batches[1].Number)

	// A batch cannot be stored for a job that does not exist.
	orphan := model.NewBatch("missing", 1)
	err = repo.SaveBatch(context.Background(), orphan)
	assert.True(t, errors.Is(err, repository.ErrJobNotFound))
}

func TestInMemoryRepository_ConflictLifecycle(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	c := model.NewConflict("job-1", 1, "entity-1", "ext-1",
		model.DataMismatchDetail{Field: "email", CurrentValue: "a", IncomingValue: "b"})
	require.NoError(t, repo.SaveConflict(context.Background(), c))

	got, err := repo.FindConflictByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStatusPending, got.Status)

	got.MarkRetrying()
	require.NoError(t, repo.UpdateConflict(context.Background(), got))

	reread, err := repo.FindConflictByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStatusRetrying, reread.Status)
	assert.Equal(t, 1, reread.RetryCount)
}

func TestInMemoryRepository_ConflictQueries(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	mismatch := model.NewConflict("job-1", 1, "e1", "x1",
		model.DataMismatchDetail{Field: "email", CurrentValue: "a", IncomingValue: "b"})
	mismatch.CreateTime = time.Now().Add(-time.Minute)
	duplicate := model.NewConflict("job-2", 1, "e2", "x2",
		model.DuplicateKeyDetail{Key: "email", Value: "a@x.com", ExistingEntityID: "e9"})
	require.NoError(t, repo.SaveConflict(context.Background(), mismatch))
	require.NoError(t, repo.SaveConflict(context.Background(), duplicate))

	all, err := repo.FindAllConflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Oldest first.
	assert.Equal(t, mismatch.ID, all[0].ID)

	byType, err := repo.FindConflictsByType(context.Background(), model.ConflictTypeDuplicateKey)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, duplicate.ID, byType[0].ID)

	byJob, err := repo.FindConflictsByJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, byJob, 1)
	assert.Equal(t, mismatch.ID, byJob[0].ID)
}

func TestInMemoryRepository_ResolveConflictIsAtomic(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	c := model.NewConflict("job-1", 1, "e1", "x1",
		model.ValidationDetail{Field: "email", Rule: "format", Message: "bad"})
	require.NoError(t, repo.SaveConflict(context.Background(), c))

	res := model.NewResolution(c, model.StrategySkip, model.ResolutionReasonSkipped)
	require.NoError(t, repo.ResolveConflict(context.Background(), c.ID, res))

	// Live set no longer holds it; the resolution record does.
	_, err := repo.FindConflictByID(context.Background(), c.ID)
	assert.True(t, errors.Is(err, repository.ErrConflictNotFound))

	stored, err := repo.FindResolutionByConflictID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StrategySkip, stored.Strategy)

	// Resolving twice fails: the conflict is gone.
	err = repo.ResolveConflict(context.Background(), c.ID, res)
	assert.True(t, errors.Is(err, repository.ErrConflictNotFound))

	_, err = repo.FindResolutionByConflictID(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrResolutionNotFound))
}

func TestInMemoryRepository_FindAllResolutionsOldestFirst(t *testing.T) {
	repo := inmemory.NewInMemorySyncRepository()

	first := model.NewConflict("job-1", 1, "e1", "x1",
		model.ValidationDetail{Field: "f", Rule: "r", Message: "m"})
	second := model.NewConflict("job-1", 1, "e2", "x2",
		model.ValidationDetail{Field: "f", Rule: "r", Message: "m"})
	require.NoError(t, repo.SaveConflict(context.Background(), first))
	require.NoError(t, repo.SaveConflict(context.Background(), second))

	r1 := model.NewResolution(first, model.StrategySkip, model.ResolutionReasonSkipped)
	r1.ResolvedAt = time.Now().Add(-time.Minute)
	r2 := model.NewResolution(second, model.StrategySkip, model.ResolutionReasonSkipped)
	require.NoError(t, repo.ResolveConflict(context.Background(), first.ID, r1))
	require.NoError(t, repo.ResolveConflict(context.Background(), second.ID, r2))

	all, err := repo.FindAllResolutions(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ConflictID)
	assert.Equal(t, second.ID, all[1].ConflictID)
}
