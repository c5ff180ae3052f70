// Package sql provides a gorm-backed implementation of the SyncRepository
// interface against the sync metadata tables. Job updates use optimistic
// locking on the version column; resolving a conflict runs in one
// transaction so the live row and the resolution record move atomically.
package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

const moduleName = "sql"

// ErrVersionMismatch indicates a concurrent update beat this writer to the
// row. The caller should re-read and retry.
var ErrVersionMismatch = errors.New("sync job version mismatch")

func init() {
	exception.RegisterErrorType("VersionMismatch", ErrVersionMismatch)
}

// SQLSyncRepository implements the repository.SyncRepository interface.
type SQLSyncRepository struct {
	db *gorm.DB
}

// NewSQLSyncRepository creates a new instance of SQLSyncRepository.
func NewSQLSyncRepository(db *gorm.DB) *SQLSyncRepository {
	return &SQLSyncRepository{db: db}
}

// Close releases the underlying connection pool.
func (r *SQLSyncRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- SyncJobRepository implementation ---

// SaveJob persists a new SyncJob.
func (r *SQLSyncRepository) SaveJob(ctx context.Context, job *model.SyncJob) error {
	entity := fromDomainJob(job)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to save SyncJob (ID: %s)", job.ID, err)
	}
	return nil
}

// UpdateJob updates an existing SyncJob with optimistic locking: the write
// only applies when the stored version still matches, and the in-memory
// version is bumped on success.
func (r *SQLSyncRepository) UpdateJob(ctx context.Context, job *model.SyncJob) error {
	originalVersion := job.Version
	job.Version++
	entity := fromDomainJob(job)

	result := r.db.WithContext(ctx).
		Model(&syncJobEntity{}).
		Where("id = ? AND version = ?", job.ID, originalVersion).
		Select("*").
		Updates(entity)
	if result.Error != nil {
		job.Version = originalVersion
		return exception.NewSyncErrorf(moduleName, "failed to update SyncJob (ID: %s)", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		job.Version = originalVersion
		var count int64
		if err := r.db.WithContext(ctx).Model(&syncJobEntity{}).Where("id = ?", job.ID).Count(&count).Error; err == nil && count == 0 {
			return repository.ErrJobNotFound
		}
		return exception.NewSyncErrorf(moduleName,
			"SyncJob (ID: %s) was modified concurrently (version %d)", job.ID, originalVersion,
			false, true, ErrVersionMismatch)
	}
	return nil
}

// FindJobByID finds a SyncJob by its id, including its batch history.
func (r *SQLSyncRepository) FindJobByID(ctx context.Context, jobID string) (*model.SyncJob, error) {
	var entity syncJobEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJobNotFound
		}
		return nil, exception.NewSyncErrorf(moduleName, "failed to find SyncJob (ID: %s)", jobID, err)
	}

	job := toDomainJob(&entity)
	batches, err := r.FindBatchesByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.Batches = batches
	return job, nil
}

// FindJobByIdempotencyKey finds the live job registered for an
// (organization, idempotency key) pair. Terminal jobs release the key and are
// never returned; when several live jobs match, the newest wins.
func (r *SQLSyncRepository) FindJobByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (*model.SyncJob, error) {
	var entity syncJobEntity
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND idempotency_key = ?", orgID, idempotencyKey).
		Where("state NOT IN ?", []string{model.JobStateDone.String(), model.JobStateCancelled.String()}).
		Order("create_time DESC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJobNotFound
		}
		return nil, exception.NewSyncErrorf(moduleName,
			"failed to find SyncJob by idempotency key (org: %s)", orgID, err)
	}
	return r.FindJobByID(ctx, entity.ID)
}

// FindJobsByOrg lists all jobs of an organization, newest first.
func (r *SQLSyncRepository) FindJobsByOrg(ctx context.Context, orgID string) ([]*model.SyncJob, error) {
	var entities []syncJobEntity
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("create_time DESC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to list jobs of org %s", orgID, err)
	}

	jobs := make([]*model.SyncJob, 0, len(entities))
	for i := range entities {
		jobs = append(jobs, toDomainJob(&entities[i]))
	}
	return jobs, nil
}

// SaveBatch appends a finished batch to the owning job's history.
func (r *SQLSyncRepository) SaveBatch(ctx context.Context, batch *model.Batch) error {
	entity := fromDomainBatch(batch)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewSyncErrorf(moduleName,
			"failed to save batch %d of job %s", batch.Number, batch.JobID, err)
	}
	return nil
}

// FindBatchesByJob lists the batch history of a job in batch-number order.
func (r *SQLSyncRepository) FindBatchesByJob(ctx context.Context, jobID string) ([]*model.Batch, error) {
	var entities []batchEntity
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("number ASC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to list batches of job %s", jobID, err)
	}

	batches := make([]*model.Batch, 0, len(entities))
	for i := range entities {
		batches = append(batches, toDomainBatch(&entities[i]))
	}
	return batches, nil
}

// --- ConflictRepository implementation ---

// SaveConflict persists a new live conflict.
func (r *SQLSyncRepository) SaveConflict(ctx context.Context, conflict *model.Conflict) error {
	entity, err := fromDomainConflict(conflict)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to save conflict %s", conflict.ID, err)
	}
	return nil
}

// UpdateConflict updates the state of an existing live conflict.
func (r *SQLSyncRepository) UpdateConflict(ctx context.Context, conflict *model.Conflict) error {
	entity, err := fromDomainConflict(conflict)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&conflictEntity{}).
		Where("id = ?", conflict.ID).
		Select("*").
		Updates(entity)
	if result.Error != nil {
		return exception.NewSyncErrorf(moduleName, "failed to update conflict %s", conflict.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrConflictNotFound
	}
	return nil
}

// FindConflictByID finds a live conflict by its id.
func (r *SQLSyncRepository) FindConflictByID(ctx context.Context, conflictID string) (*model.Conflict, error) {
	var entity conflictEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", conflictID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrConflictNotFound
		}
		return nil, exception.NewSyncErrorf(moduleName, "failed to find conflict %s", conflictID, err)
	}
	return toDomainConflict(&entity)
}

// FindAllConflicts lists all live conflicts, oldest first.
func (r *SQLSyncRepository) FindAllConflicts(ctx context.Context) ([]*model.Conflict, error) {
	return r.findConflicts(ctx, r.db.WithContext(ctx))
}

// FindConflictsByType lists live conflicts of one type, oldest first.
func (r *SQLSyncRepository) FindConflictsByType(ctx context.Context, t model.ConflictType) ([]*model.Conflict, error) {
	return r.findConflicts(ctx, r.db.WithContext(ctx).Where("conflict_type = ?", t.String()))
}

// FindConflictsByJob lists live conflicts raised by one job.
func (r *SQLSyncRepository) FindConflictsByJob(ctx context.Context, jobID string) ([]*model.Conflict, error) {
	return r.findConflicts(ctx, r.db.WithContext(ctx).Where("job_id = ?", jobID))
}

// ResolveConflict atomically removes the conflict from the live set and
// stores the immutable resolution record.
func (r *SQLSyncRepository) ResolveConflict(ctx context.Context, conflictID string, resolution *model.Resolution) error {
	entity, err := fromDomainResolution(resolution)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&conflictEntity{}, "id = ?", conflictID)
		if result.Error != nil {
			return exception.NewSyncErrorf(moduleName, "failed to remove live conflict %s", conflictID, result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrConflictNotFound
		}
		if err := tx.Create(entity).Error; err != nil {
			return exception.NewSyncErrorf(moduleName, "failed to save resolution of conflict %s", conflictID, err)
		}
		return nil
	})
}

// FindResolutionByConflictID finds the resolution recorded for a conflict.
func (r *SQLSyncRepository) FindResolutionByConflictID(ctx context.Context, conflictID string) (*model.Resolution, error) {
	var entity resolutionEntity
	if err := r.db.WithContext(ctx).First(&entity, "conflict_id = ?", conflictID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrResolutionNotFound
		}
		return nil, exception.NewSyncErrorf(moduleName, "failed to find resolution of conflict %s", conflictID, err)
	}
	return toDomainResolution(&entity)
}

// FindAllResolutions lists all resolution records, oldest first.
func (r *SQLSyncRepository) FindAllResolutions(ctx context.Context) ([]*model.Resolution, error) {
	var entities []resolutionEntity
	if err := r.db.WithContext(ctx).Order("resolved_at ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to list resolutions", err)
	}

	out := make([]*model.Resolution, 0, len(entities))
	for i := range entities {
		res, err := toDomainResolution(&entities[i])
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *SQLSyncRepository) findConflicts(ctx context.Context, query *gorm.DB) ([]*model.Conflict, error) {
	var entities []conflictEntity
	if err := query.Order("create_time ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to list conflicts", err)
	}

	out := make([]*model.Conflict, 0, len(entities))
	for i := range entities {
		c, err := toDomainConflict(&entities[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
