package port

import (
	"fmt"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// ConflictError is returned by LocalStore.Upsert when a write fails because
// of an item-level disagreement rather than an infrastructure fault. The
// orchestrator routes these to the Conflict Resolver instead of failing the
// batch outright.
type ConflictError struct {
	// EntityID is the local entity involved, when known.
	EntityID string
	// ExternalID is the external record that triggered the conflict.
	ExternalID string
	// Detail carries the type-specific conflict payload.
	Detail model.ConflictDetail
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict (%s) on entity '%s'", e.Detail.Type(), e.EntityID)
}
