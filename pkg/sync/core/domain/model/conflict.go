package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

// ConflictType identifies the kind of item-level disagreement detected
// during processing.
type ConflictType string

const (
	ConflictTypeDataMismatch    ConflictType = "DataMismatch"
	ConflictTypeDuplicateKey    ConflictType = "DuplicateKey"
	ConflictTypeValidationError ConflictType = "ValidationError"
)

// String returns the string representation of the ConflictType.
func (t ConflictType) String() string {
	return string(t)
}

// ConflictStatus represents the lifecycle state of a conflict.
type ConflictStatus string

const (
	ConflictStatusPending        ConflictStatus = "pending"
	ConflictStatusRetrying       ConflictStatus = "retrying"
	ConflictStatusAwaitingManual ConflictStatus = "awaiting_manual_resolution"
	ConflictStatusResolved       ConflictStatus = "resolved"
)

// ConflictDetail is the closed sum of type-specific conflict payloads.
// Exactly DataMismatchDetail, DuplicateKeyDetail, and ValidationDetail
// implement it.
type ConflictDetail interface {
	// Type returns the conflict type this payload belongs to.
	Type() ConflictType

	// sealed prevents payload implementations outside this package.
	sealed()
}

// DataMismatchDetail describes the same entity carrying differing field
// values on the two sides.
type DataMismatchDetail struct {
	Field         string `json:"field"`
	CurrentValue  string `json:"currentValue"`
	IncomingValue string `json:"incomingValue"`
}

// Type returns ConflictTypeDataMismatch.
func (DataMismatchDetail) Type() ConflictType { return ConflictTypeDataMismatch }

func (DataMismatchDetail) sealed() {}

// DuplicateKeyDetail describes an incoming key colliding with a different
// existing entity.
type DuplicateKeyDetail struct {
	Key              string `json:"key"`
	Value            string `json:"value"`
	ExistingEntityID string `json:"existingEntityId"`
}

// Type returns ConflictTypeDuplicateKey.
func (DuplicateKeyDetail) Type() ConflictType { return ConflictTypeDuplicateKey }

func (DuplicateKeyDetail) sealed() {}

// ValidationDetail describes an incoming value failing a named rule.
type ValidationDetail struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Type returns ConflictTypeValidationError.
func (ValidationDetail) Type() ConflictType { return ConflictTypeValidationError }

func (ValidationDetail) sealed() {}

// EncodeConflictDetail serializes a conflict payload to JSON for persistence.
func EncodeConflictDetail(detail ConflictDetail) (string, error) {
	if detail == nil {
		return "{}", nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conflict detail: %w", err)
	}
	return string(data), nil
}

// DecodeConflictDetail deserializes a conflict payload by its type tag.
func DecodeConflictDetail(t ConflictType, data string) (ConflictDetail, error) {
	raw := []byte(data)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case ConflictTypeDataMismatch:
		var d DataMismatchDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal DataMismatch detail: %w", err)
		}
		return d, nil
	case ConflictTypeDuplicateKey:
		var d DuplicateKeyDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal DuplicateKey detail: %w", err)
		}
		return d, nil
	case ConflictTypeValidationError:
		var d ValidationDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ValidationError detail: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown conflict type: %s", t)
	}
}

// Conflict is a single item-level disagreement detected during processing.
// It stays in the live conflict set until a terminal resolution moves it into
// an immutable Resolution record.
type Conflict struct {
	ID          string
	JobID       string
	BatchNumber int
	EntityID    string
	ExternalID  string
	Detail      ConflictDetail
	Status      ConflictStatus
	RetryCount  int
	CreateTime  time.Time
	LastUpdated time.Time
}

// NewConflict creates a new Conflict in the pending state. An empty id is
// replaced with a generated one.
func NewConflict(jobID string, batchNumber int, entityID, externalID string, detail ConflictDetail) *Conflict {
	now := time.Now()
	return &Conflict{
		ID:          NewID(),
		JobID:       jobID,
		BatchNumber: batchNumber,
		EntityID:    entityID,
		ExternalID:  externalID,
		Detail:      detail,
		Status:      ConflictStatusPending,
		CreateTime:  now,
		LastUpdated: now,
	}
}

// Type returns the conflict type derived from the payload.
func (c *Conflict) Type() ConflictType {
	if c.Detail == nil {
		return ""
	}
	return c.Detail.Type()
}

// MarkRetrying increments the retry counter and moves the conflict to the
// retrying status.
func (c *Conflict) MarkRetrying() {
	c.RetryCount++
	c.Status = ConflictStatusRetrying
	c.LastUpdated = time.Now()
}

// MarkAwaitingManual moves the conflict to the awaiting-manual status.
func (c *Conflict) MarkAwaitingManual() {
	c.Status = ConflictStatusAwaitingManual
	c.LastUpdated = time.Now()
}

// ResolutionStrategy names how a conflict is (to be) resolved.
type ResolutionStrategy string

const (
	StrategyAutoRetry ResolutionStrategy = "auto-retry"
	StrategyManual    ResolutionStrategy = "manual"
	StrategySkip      ResolutionStrategy = "skip"
)

// String returns the string representation of the ResolutionStrategy.
func (s ResolutionStrategy) String() string {
	return string(s)
}

// ParseResolutionStrategy validates a strategy string. Unknown values fail
// with an error wrapping exception.ErrUnknownStrategy.
func ParseResolutionStrategy(s string) (ResolutionStrategy, error) {
	switch ResolutionStrategy(s) {
	case StrategyAutoRetry, StrategyManual, StrategySkip:
		return ResolutionStrategy(s), nil
	default:
		return "", exception.NewSyncErrorf("conflict", "unknown resolution strategy: %q", s, exception.ErrUnknownStrategy)
	}
}

// ResolutionReasonSkipped is the resolution reason recorded when a conflict
// is resolved with the skip strategy.
const ResolutionReasonSkipped = "skipped_by_user"

// Resolution is the immutable record produced when a conflict is resolved.
// It freezes a snapshot of the conflict at resolution time.
type Resolution struct {
	ID         string
	ConflictID string
	JobID      string
	Strategy   ResolutionStrategy
	Reason     string
	Conflict   Conflict
	ResolvedAt time.Time
}

// NewResolution creates the immutable resolution record for a conflict.
func NewResolution(c *Conflict, strategy ResolutionStrategy, reason string) *Resolution {
	snapshot := *c
	snapshot.Status = ConflictStatusResolved
	return &Resolution{
		ID:         NewID(),
		ConflictID: c.ID,
		JobID:      c.JobID,
		Strategy:   strategy,
		Reason:     reason,
		Conflict:   snapshot,
		ResolvedAt: time.Now(),
	}
}
