// Package inmemory provides an in-memory implementation of the
// SyncRepository interface. It stores all job and conflict data in maps
// within memory, suitable for testing and scenarios where persistence is not
// required.
package inmemory

import (
	"context"
	"sort"
	"sync"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
)

// InMemorySyncRepository is an in-memory implementation of the
// SyncRepository interface. It holds all sync metadata in in-memory maps.
type InMemorySyncRepository struct {
	jobs        map[string]*model.SyncJob
	batches     map[string][]*model.Batch // keyed by job id, in batch-number order
	conflicts   map[string]*model.Conflict
	resolutions map[string]*model.Resolution // keyed by conflict id
	mu          sync.RWMutex                 // Mutex to protect concurrent access to maps.
}

// NewInMemorySyncRepository creates and initializes a new instance of
// InMemorySyncRepository.
func NewInMemorySyncRepository() *InMemorySyncRepository {
	return &InMemorySyncRepository{
		jobs:        make(map[string]*model.SyncJob),
		batches:     make(map[string][]*model.Batch),
		conflicts:   make(map[string]*model.Conflict),
		resolutions: make(map[string]*model.Resolution),
	}
}

// Close releases resources used by the repository. As an in-memory
// repository it holds no external resources, so this always returns nil.
func (r *InMemorySyncRepository) Close() error {
	return nil
}

// --- SyncJobRepository implementation ---

// SaveJob persists a new SyncJob.
func (r *InMemorySyncRepository) SaveJob(ctx context.Context, job *model.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = copyJob(job)
	return nil
}

// UpdateJob updates the state of an existing SyncJob.
func (r *InMemorySyncRepository) UpdateJob(ctx context.Context, job *model.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return repository.ErrJobNotFound
	}
	r.jobs[job.ID] = copyJob(job)
	return nil
}

// FindJobByID finds a SyncJob by its id, including its batch history.
func (r *InMemorySyncRepository) FindJobByID(ctx context.Context, jobID string) (*model.SyncJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return copyJob(job), nil
}

// FindJobByIdempotencyKey finds the live job registered for an
// (organization, idempotency key) pair. Terminal jobs release the key and are
// never returned; when several live jobs match, the newest wins so the result
// does not depend on map iteration order.
func (r *InMemorySyncRepository) FindJobByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (*model.SyncJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *model.SyncJob
	for _, job := range r.jobs {
		if job.OrgID != orgID || job.IdempotencyKey != idempotencyKey || job.State.IsTerminal() {
			continue
		}
		if found == nil || job.CreateTime.After(found.CreateTime) {
			found = job
		}
	}
	if found == nil {
		return nil, repository.ErrJobNotFound
	}
	return copyJob(found), nil
}

// FindJobsByOrg lists all jobs of an organization, newest first.
func (r *InMemorySyncRepository) FindJobsByOrg(ctx context.Context, orgID string) ([]*model.SyncJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*model.SyncJob, 0)
	for _, job := range r.jobs {
		if job.OrgID == orgID {
			jobs = append(jobs, copyJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreateTime.After(jobs[j].CreateTime)
	})
	return jobs, nil
}

// SaveBatch appends a finished batch to the owning job's history.
func (r *InMemorySyncRepository) SaveBatch(ctx context.Context, batch *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[batch.JobID]; !ok {
		return repository.ErrJobNotFound
	}
	r.batches[batch.JobID] = append(r.batches[batch.JobID], copyBatch(batch))
	return nil
}

// FindBatchesByJob lists the batch history of a job in batch-number order.
func (r *InMemorySyncRepository) FindBatchesByJob(ctx context.Context, jobID string) ([]*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.batches[jobID]
	batches := make([]*model.Batch, 0, len(stored))
	for _, b := range stored {
		batches = append(batches, copyBatch(b))
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].Number < batches[j].Number
	})
	return batches, nil
}

// --- ConflictRepository implementation ---

// SaveConflict persists a new live conflict.
func (r *InMemorySyncRepository) SaveConflict(ctx context.Context, conflict *model.Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[conflict.ID] = copyConflict(conflict)
	return nil
}

// UpdateConflict updates the state of an existing live conflict.
func (r *InMemorySyncRepository) UpdateConflict(ctx context.Context, conflict *model.Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conflicts[conflict.ID]; !ok {
		return repository.ErrConflictNotFound
	}
	r.conflicts[conflict.ID] = copyConflict(conflict)
	return nil
}

// FindConflictByID finds a live conflict by its id.
func (r *InMemorySyncRepository) FindConflictByID(ctx context.Context, conflictID string) (*model.Conflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conflicts[conflictID]
	if !ok {
		return nil, repository.ErrConflictNotFound
	}
	return copyConflict(c), nil
}

// FindAllConflicts lists all live conflicts, oldest first.
func (r *InMemorySyncRepository) FindAllConflicts(ctx context.Context) ([]*model.Conflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectConflicts(func(*model.Conflict) bool { return true }), nil
}

// FindConflictsByType lists live conflicts of one type, oldest first.
func (r *InMemorySyncRepository) FindConflictsByType(ctx context.Context, t model.ConflictType) ([]*model.Conflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectConflicts(func(c *model.Conflict) bool { return c.Type() == t }), nil
}

// FindConflictsByJob lists live conflicts raised by one job.
func (r *InMemorySyncRepository) FindConflictsByJob(ctx context.Context, jobID string) ([]*model.Conflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectConflicts(func(c *model.Conflict) bool { return c.JobID == jobID }), nil
}

// ResolveConflict atomically removes the conflict from the live set and
// stores the immutable resolution record.
func (r *InMemorySyncRepository) ResolveConflict(ctx context.Context, conflictID string, resolution *model.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conflicts[conflictID]; !ok {
		return repository.ErrConflictNotFound
	}
	delete(r.conflicts, conflictID)
	stored := *resolution
	r.resolutions[conflictID] = &stored
	return nil
}

// FindResolutionByConflictID finds the resolution recorded for a conflict.
func (r *InMemorySyncRepository) FindResolutionByConflictID(ctx context.Context, conflictID string) (*model.Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolutions[conflictID]
	if !ok {
		return nil, repository.ErrResolutionNotFound
	}
	stored := *res
	return &stored, nil
}

// FindAllResolutions lists all resolution records, oldest first.
func (r *InMemorySyncRepository) FindAllResolutions(ctx context.Context) ([]*model.Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Resolution, 0, len(r.resolutions))
	for _, res := range r.resolutions {
		stored := *res
		out = append(out, &stored)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResolvedAt.Before(out[j].ResolvedAt)
	})
	return out, nil
}

// collectConflicts must be called with at least a read lock held.
func (r *InMemorySyncRepository) collectConflicts(match func(*model.Conflict) bool) []*model.Conflict {
	out := make([]*model.Conflict, 0)
	for _, c := range r.conflicts {
		if match(c) {
			out = append(out, copyConflict(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out
}

// copyJob returns a deep copy so callers cannot mutate stored state through
// shared slices.
func copyJob(job *model.SyncJob) *model.SyncJob {
	c := *job
	c.Batches = make([]*model.Batch, len(job.Batches))
	for i, b := range job.Batches {
		c.Batches[i] = copyBatch(b)
	}
	c.ConflictIDs = append([]string(nil), job.ConflictIDs...)
	c.Errors = append(model.FailureList(nil), job.Errors...)
	return &c
}

func copyBatch(b *model.Batch) *model.Batch {
	c := *b
	c.Errors = append(model.ItemErrorList(nil), b.Errors...)
	return &c
}

func copyConflict(conflict *model.Conflict) *model.Conflict {
	c := *conflict
	return &c
}
