// Package repository defines the narrow persistence interfaces the engine
// depends on. Implementations live under infrastructure/repository.
package repository

import (
	"context"
	"errors"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

// ErrJobNotFound is the error returned when a SyncJob is not found.
var ErrJobNotFound = errors.New("sync job not found")

func init() {
	// Register the error type in the registry upon engine startup.
	exception.RegisterErrorType("JobNotFound", ErrJobNotFound)
}

// SyncJobRepository defines operations for persisting and retrieving sync
// jobs and their batch history.
type SyncJobRepository interface {
	// SaveJob persists a new SyncJob.
	SaveJob(ctx context.Context, job *model.SyncJob) error

	// UpdateJob updates the state of an existing SyncJob.
	UpdateJob(ctx context.Context, job *model.SyncJob) error

	// FindJobByID finds a SyncJob by its id. It is expected to load the
	// accumulated batch history as well.
	FindJobByID(ctx context.Context, jobID string) (*model.SyncJob, error)

	// FindJobByIdempotencyKey finds the live (non-terminal) job registered
	// for the given (organization, idempotency key) pair. Terminal jobs
	// release the key; ErrJobNotFound when no live job holds it.
	FindJobByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (*model.SyncJob, error)

	// FindJobsByOrg lists all jobs of an organization, newest first.
	FindJobsByOrg(ctx context.Context, orgID string) ([]*model.SyncJob, error)

	// SaveBatch appends a finished batch to the owning job's history.
	SaveBatch(ctx context.Context, batch *model.Batch) error

	// FindBatchesByJob lists the batch history of a job in batch-number order.
	FindBatchesByJob(ctx context.Context, jobID string) ([]*model.Batch, error)
}
