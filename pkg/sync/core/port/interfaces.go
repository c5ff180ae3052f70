// Package port defines the collaborator interfaces the engine core consumes:
// the external commerce client, the local system of record, and the
// append-only audit sink. Implementations live under infrastructure.
package port

import (
	"context"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// CommerceClient is the read surface of the external commerce system.
// Implementations must support pagination; the engine treats its fetch bound
// as a sampling limit, not a ceiling on true upstream size.
type CommerceClient interface {
	// ListRecords returns one page of external records matching the filter.
	// page is 0-based; a short (possibly empty) page signals the end of the
	// collection.
	ListRecords(ctx context.Context, filter model.SyncFilter, page, pageSize int) ([]model.ExternalRecord, error)

	// GetRecord fetches a single external record by its id.
	GetRecord(ctx context.Context, id string) (model.ExternalRecord, error)
}

// LocalStore is the local system of record the engine reconciles against.
type LocalStore interface {
	// Query returns the local records of an organization matching the filter.
	Query(ctx context.Context, orgID string, filter model.SyncFilter) ([]model.LocalRecord, error)

	// Upsert transactionally inserts or updates one local record from its
	// external counterpart. It returns true when a new record was created,
	// false when an existing one was updated.
	Upsert(ctx context.Context, orgID string, rec model.ExternalRecord) (created bool, err error)
}

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	// Kind labels the record ("conflict", "resolution", "batch").
	Kind string `json:"kind"`
	// JobID is the owning sync job, when applicable.
	JobID string `json:"jobId,omitempty"`
	// Payload is the JSON-serializable record body.
	Payload interface{} `json:"payload"`
	// RecordedAt is the append timestamp in RFC3339 form.
	RecordedAt string `json:"recordedAt"`
}

// AuditSink is the append-only persistent log for conflicts, resolutions,
// and batch history. It serves audit, not replay-based recovery.
type AuditSink interface {
	// Append durably appends one entry to the log.
	Append(ctx context.Context, entry AuditEntry) error

	// Close flushes and releases the sink.
	Close() error
}
