package sql

import (
	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

func fromDomainJob(job *model.SyncJob) *syncJobEntity {
	return &syncJobEntity{
		ID:             job.ID,
		IdempotencyKey: job.IdempotencyKey,
		OrgID:          job.OrgID,
		Source:         job.Source,
		Filter:         job.Filter,
		BatchSize:      job.BatchSize,
		State:          job.State.String(),
		RollbackReason: job.RollbackReason,
		TotalItems:     job.TotalItems,
		CreatedCount:   job.CreatedCount,
		UpdatedCount:   job.UpdatedCount,
		FailedCount:    job.FailedCount,
		ProcessedCount: job.ProcessedCount,
		ConflictIDs:    model.FailureList(job.ConflictIDs),
		Errors:         job.Errors,
		CreateTime:     job.CreateTime,
		StartTime:      job.StartTime,
		EndTime:        job.EndTime,
		LastUpdated:    job.LastUpdated,
		Version:        job.Version,
	}
}

func toDomainJob(e *syncJobEntity) *model.SyncJob {
	return &model.SyncJob{
		ID:             e.ID,
		IdempotencyKey: e.IdempotencyKey,
		OrgID:          e.OrgID,
		Source:         e.Source,
		Filter:         e.Filter,
		BatchSize:      e.BatchSize,
		State:          model.JobState(e.State),
		RollbackReason: e.RollbackReason,
		TotalItems:     e.TotalItems,
		CreatedCount:   e.CreatedCount,
		UpdatedCount:   e.UpdatedCount,
		FailedCount:    e.FailedCount,
		ProcessedCount: e.ProcessedCount,
		Batches:        make([]*model.Batch, 0),
		ConflictIDs:    []string(e.ConflictIDs),
		Errors:         e.Errors,
		CreateTime:     e.CreateTime,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		LastUpdated:    e.LastUpdated,
		Version:        e.Version,
	}
}

func fromDomainBatch(b *model.Batch) *batchEntity {
	return &batchEntity{
		ID:           b.ID,
		JobID:        b.JobID,
		Number:       b.Number,
		ItemCount:    b.ItemCount,
		CreatedCount: b.CreatedCount,
		UpdatedCount: b.UpdatedCount,
		FailedCount:  b.FailedCount,
		Errors:       b.Errors,
		CreateTime:   b.CreateTime,
	}
}

func toDomainBatch(e *batchEntity) *model.Batch {
	return &model.Batch{
		ID:           e.ID,
		JobID:        e.JobID,
		Number:       e.Number,
		ItemCount:    e.ItemCount,
		CreatedCount: e.CreatedCount,
		UpdatedCount: e.UpdatedCount,
		FailedCount:  e.FailedCount,
		Errors:       e.Errors,
		CreateTime:   e.CreateTime,
	}
}

func fromDomainConflict(c *model.Conflict) (*conflictEntity, error) {
	detail, err := model.EncodeConflictDetail(c.Detail)
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to encode detail of conflict %s", c.ID, err)
	}
	return &conflictEntity{
		ID:           c.ID,
		JobID:        c.JobID,
		BatchNumber:  c.BatchNumber,
		EntityID:     c.EntityID,
		ExternalID:   c.ExternalID,
		ConflictType: c.Type().String(),
		Detail:       detail,
		Status:       string(c.Status),
		RetryCount:   c.RetryCount,
		CreateTime:   c.CreateTime,
		LastUpdated:  c.LastUpdated,
	}, nil
}

func toDomainConflict(e *conflictEntity) (*model.Conflict, error) {
	detail, err := model.DecodeConflictDetail(model.ConflictType(e.ConflictType), e.Detail)
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to decode detail of conflict %s", e.ID, err)
	}
	return &model.Conflict{
		ID:          e.ID,
		JobID:       e.JobID,
		BatchNumber: e.BatchNumber,
		EntityID:    e.EntityID,
		ExternalID:  e.ExternalID,
		Detail:      detail,
		Status:      model.ConflictStatus(e.Status),
		RetryCount:  e.RetryCount,
		CreateTime:  e.CreateTime,
		LastUpdated: e.LastUpdated,
	}, nil
}

func fromDomainResolution(r *model.Resolution) (*resolutionEntity, error) {
	detail, err := model.EncodeConflictDetail(r.Conflict.Detail)
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to encode detail of resolution %s", r.ID, err)
	}
	return &resolutionEntity{
		ID:           r.ID,
		ConflictID:   r.ConflictID,
		JobID:        r.JobID,
		Strategy:     r.Strategy.String(),
		Reason:       r.Reason,
		ConflictType: r.Conflict.Type().String(),
		BatchNumber:  r.Conflict.BatchNumber,
		EntityID:     r.Conflict.EntityID,
		ExternalID:   r.Conflict.ExternalID,
		Detail:       detail,
		RetryCount:   r.Conflict.RetryCount,
		CreateTime:   r.Conflict.CreateTime,
		ResolvedAt:   r.ResolvedAt,
	}, nil
}

func toDomainResolution(e *resolutionEntity) (*model.Resolution, error) {
	detail, err := model.DecodeConflictDetail(model.ConflictType(e.ConflictType), e.Detail)
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to decode detail of resolution %s", e.ID, err)
	}
	return &model.Resolution{
		ID:         e.ID,
		ConflictID: e.ConflictID,
		JobID:      e.JobID,
		Strategy:   model.ResolutionStrategy(e.Strategy),
		Reason:     e.Reason,
		Conflict: model.Conflict{
			ID:          e.ConflictID,
			JobID:       e.JobID,
			BatchNumber: e.BatchNumber,
			EntityID:    e.EntityID,
			ExternalID:  e.ExternalID,
			Detail:      detail,
			Status:      model.ConflictStatusResolved,
			RetryCount:  e.RetryCount,
			CreateTime:  e.CreateTime,
			LastUpdated: e.ResolvedAt,
		},
		ResolvedAt: e.ResolvedAt,
	}, nil
}
