package sql

import (
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// syncJobEntity is the persistence shape of model.SyncJob. JSON-wrapped
// columns (filter, errors, conflict ids) rely on the model types' Valuer and
// Scanner implementations.
type syncJobEntity struct {
	ID             string            `gorm:"column:id;primaryKey"`
	// The (org_id, idempotency_key) index is deliberately non-unique: any
	// number of terminal jobs may share a released key with one live job.
	IdempotencyKey string            `gorm:"column:idempotency_key;index:idx_sync_job_org_key"`
	OrgID          string            `gorm:"column:org_id;index:idx_sync_job_org_key;index:idx_sync_job_org"`
	Source         string            `gorm:"column:source"`
	Filter         model.SyncFilter  `gorm:"column:filter;type:text"`
	BatchSize      int               `gorm:"column:batch_size"`
	State          string            `gorm:"column:state"`
	RollbackReason string            `gorm:"column:rollback_reason"`
	TotalItems     int               `gorm:"column:total_items"`
	CreatedCount   int               `gorm:"column:created_count"`
	UpdatedCount   int               `gorm:"column:updated_count"`
	FailedCount    int               `gorm:"column:failed_count"`
	ProcessedCount int               `gorm:"column:processed_count"`
	ConflictIDs    model.FailureList `gorm:"column:conflict_ids;type:text"`
	Errors         model.FailureList `gorm:"column:errors;type:text"`
	CreateTime     time.Time         `gorm:"column:create_time"`
	StartTime      *time.Time        `gorm:"column:start_time"`
	EndTime        *time.Time        `gorm:"column:end_time"`
	LastUpdated    time.Time         `gorm:"column:last_updated"`
	Version        int               `gorm:"column:version"`
}

// TableName specifies the table name for the syncJobEntity.
func (syncJobEntity) TableName() string { return "sync_job" }

// batchEntity is the persistence shape of model.Batch.
type batchEntity struct {
	ID           string              `gorm:"column:id;primaryKey"`
	JobID        string              `gorm:"column:job_id;index:idx_sync_batch_job"`
	Number       int                 `gorm:"column:number"`
	ItemCount    int                 `gorm:"column:item_count"`
	CreatedCount int                 `gorm:"column:created_count"`
	UpdatedCount int                 `gorm:"column:updated_count"`
	FailedCount  int                 `gorm:"column:failed_count"`
	Errors       model.ItemErrorList `gorm:"column:errors;type:text"`
	CreateTime   time.Time           `gorm:"column:create_time"`
}

// TableName specifies the table name for the batchEntity.
func (batchEntity) TableName() string { return "sync_batch" }

// conflictEntity is the persistence shape of model.Conflict. The
// type-specific payload is stored as a (type, JSON) pair and revived through
// model.DecodeConflictDetail.
type conflictEntity struct {
	ID           string    `gorm:"column:id;primaryKey"`
	JobID        string    `gorm:"column:job_id;index:idx_sync_conflict_job"`
	BatchNumber  int       `gorm:"column:batch_number"`
	EntityID     string    `gorm:"column:entity_id"`
	ExternalID   string    `gorm:"column:external_id"`
	ConflictType string    `gorm:"column:conflict_type;index:idx_sync_conflict_type"`
	Detail       string    `gorm:"column:detail;type:text"`
	Status       string    `gorm:"column:status"`
	RetryCount   int       `gorm:"column:retry_count"`
	CreateTime   time.Time `gorm:"column:create_time"`
	LastUpdated  time.Time `gorm:"column:last_updated"`
}

// TableName specifies the table name for the conflictEntity.
func (conflictEntity) TableName() string { return "sync_conflict" }

// resolutionEntity is the persistence shape of model.Resolution. The frozen
// conflict snapshot is stored alongside the resolution metadata.
type resolutionEntity struct {
	ID           string    `gorm:"column:id;primaryKey"`
	ConflictID   string    `gorm:"column:conflict_id;index:idx_sync_resolution_conflict,unique"`
	JobID        string    `gorm:"column:job_id;index:idx_sync_resolution_job"`
	Strategy     string    `gorm:"column:strategy"`
	Reason       string    `gorm:"column:reason"`
	ConflictType string    `gorm:"column:conflict_type"`
	BatchNumber  int       `gorm:"column:batch_number"`
	EntityID     string    `gorm:"column:entity_id"`
	ExternalID   string    `gorm:"column:external_id"`
	Detail       string    `gorm:"column:detail;type:text"`
	RetryCount   int       `gorm:"column:retry_count"`
	CreateTime   time.Time `gorm:"column:create_time"`
	ResolvedAt   time.Time `gorm:"column:resolved_at"`
}

// TableName specifies the table name for the resolutionEntity.
func (resolutionEntity) TableName() string { return "sync_resolution" }
