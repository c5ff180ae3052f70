package repository

import (
	"context"
	"errors"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

// ErrConflictNotFound is the error returned when a Conflict is not found.
var ErrConflictNotFound = errors.New("conflict not found")

// ErrResolutionNotFound is the error returned when a Resolution is not found.
var ErrResolutionNotFound = errors.New("resolution not found")

func init() {
	// Register the error types in the registry upon engine startup.
	exception.RegisterErrorType("ConflictNotFound", ErrConflictNotFound)
	exception.RegisterErrorType("ResolutionNotFound", ErrResolutionNotFound)
}

// ConflictRepository defines operations for the live conflict set and the
// immutable resolution records.
type ConflictRepository interface {
	// SaveConflict persists a new live conflict.
	SaveConflict(ctx context.Context, conflict *model.Conflict) error

	// UpdateConflict updates the state of an existing live conflict.
	UpdateConflict(ctx context.Context, conflict *model.Conflict) error

	// FindConflictByID finds a live conflict by its id.
	FindConflictByID(ctx context.Context, conflictID string) (*model.Conflict, error)

	// FindAllConflicts lists all live conflicts, oldest first.
	FindAllConflicts(ctx context.Context) ([]*model.Conflict, error)

	// FindConflictsByType lists live conflicts of one type, oldest first.
	FindConflictsByType(ctx context.Context, t model.ConflictType) ([]*model.Conflict, error)

	// FindConflictsByJob lists live conflicts raised by one job.
	FindConflictsByJob(ctx context.Context, jobID string) ([]*model.Conflict, error)

	// ResolveConflict atomically removes the conflict from the live set and
	// stores the immutable resolution record.
	ResolveConflict(ctx context.Context, conflictID string, resolution *model.Resolution) error

	// FindResolutionByConflictID finds the resolution recorded for a conflict.
	FindResolutionByConflictID(ctx context.Context, conflictID string) (*model.Resolution, error)

	// FindAllResolutions lists all resolution records, oldest first.
	FindAllResolutions(ctx context.Context) ([]*model.Resolution, error)
}
