// Package model defines the domain objects of the Syncline reconciliation
// engine: sync jobs and their batches, conflicts and resolutions, delta
// results, and progress snapshots.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

// JobState represents the state of a sync job.
type JobState string

const (
	JobStateDraft      JobState = "draft"
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStatePaused     JobState = "paused"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// String returns the string representation of the JobState.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal checks if the JobState represents a terminal state.
// A job in a terminal state is never mutated again.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateDone, JobStateCancelled:
		return true
	default:
		// failed is not terminal: recoverFromError re-enters processing.
		return false
	}
}

// isValidJobTransition checks if the state transition for a SyncJob is valid.
func isValidJobTransition(current, next JobState) bool {
	switch current {
	case JobStateDraft:
		return next == JobStateQueued || next == JobStateCancelled
	case JobStateQueued:
		return next == JobStateProcessing || next == JobStateCancelled
	case JobStateProcessing:
		return next == JobStatePaused || next == JobStateDone || next == JobStateFailed
	case JobStatePaused:
		return next == JobStateProcessing || next == JobStateCancelled
	case JobStateFailed:
		// Explicit recovery is the only path out of failed.
		return next == JobStateProcessing
	case JobStateDone, JobStateCancelled:
		return false
	default:
		return false
	}
}

// FailureList holds a list of error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}

	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil
	}

	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// SyncFilter is the selective-sync predicate restricting which external
// records participate in a reconciliation run.
type SyncFilter struct {
	Emails   []string `json:"emails,omitempty" yaml:"emails,omitempty"`
	Segments []string `json:"segments,omitempty" yaml:"segments,omitempty"`
	Statuses []string `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// IsEmpty reports whether the filter restricts nothing.
func (f SyncFilter) IsEmpty() bool {
	return len(f.Emails) == 0 && len(f.Segments) == 0 && len(f.Statuses) == 0
}

// Matches reports whether the given external record passes the filter.
// An empty predicate list places no restriction on that attribute.
func (f SyncFilter) Matches(rec ExternalRecord) bool {
	if len(f.Emails) > 0 && !containsFold(f.Emails, rec.Email) {
		return false
	}
	if len(f.Segments) > 0 && !containsFold(f.Segments, rec.Segment) {
		return false
	}
	if len(f.Statuses) > 0 && !containsFold(f.Statuses, rec.Status) {
		return false
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// CanonicalKey returns an order-independent string form of the filter,
// suitable for cache keying. Equal filters always yield equal keys.
func (f SyncFilter) CanonicalKey() string {
	join := func(vs []string) string {
		sorted := make([]string, len(vs))
		copy(sorted, vs)
		for i := range sorted {
			sorted[i] = strings.ToLower(sorted[i])
		}
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	}
	return fmt.Sprintf("emails=%s|segments=%s|statuses=%s", join(f.Emails), join(f.Segments), join(f.Statuses))
}

// Value implements the `driver.Valuer` interface, converting SyncFilter to a JSON string.
func (f SyncFilter) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to SyncFilter.
func (f *SyncFilter) Scan(value interface{}) error {
	if value == nil {
		*f = SyncFilter{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for SyncFilter: %T", value)
	}
	if len(b) == 0 {
		*f = SyncFilter{}
		return nil
	}
	if err := json.Unmarshal(b, f); err != nil {
		return fmt.Errorf("failed to unmarshal SyncFilter JSON: %w", err)
	}
	return nil
}

// ItemError records one per-item failure inside a batch.
type ItemError struct {
	EntityID string `json:"entityId"`
	Message  string `json:"message"`
}

// ItemErrorList holds the per-item errors of a batch.
type ItemErrorList []ItemError

// Value implements the `driver.Valuer` interface, converting ItemErrorList to a JSON string.
func (el ItemErrorList) Value() (driver.Value, error) {
	if el == nil {
		return "[]", nil
	}
	data, err := json.Marshal(el)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to ItemErrorList.
func (el *ItemErrorList) Scan(value interface{}) error {
	if value == nil {
		*el = make(ItemErrorList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ItemErrorList: %T", value)
	}
	if len(b) == 0 {
		*el = make(ItemErrorList, 0)
		return nil
	}
	if err := json.Unmarshal(b, el); err != nil {
		return fmt.Errorf("failed to unmarshal ItemErrorList JSON: %w", err)
	}
	return nil
}

// Batch is a fixed-size slice of work items processed atomically within a
// job. Batches are appended to the owning job and never mutated afterwards.
type Batch struct {
	ID           string
	JobID        string
	Number       int // 1-based, monotonic within a job
	ItemCount    int
	CreatedCount int
	UpdatedCount int
	FailedCount  int
	Errors       ItemErrorList
	CreateTime   time.Time
}

// NewBatch creates a new Batch for the given job and batch number.
func NewBatch(jobID string, number int) *Batch {
	return &Batch{
		ID:         NewID(),
		JobID:      jobID,
		Number:     number,
		Errors:     make(ItemErrorList, 0),
		CreateTime: time.Now(),
	}
}

// SyncJob represents one reconciliation run between an external commerce
// source and the local system of record.
type SyncJob struct {
	ID             string
	IdempotencyKey string
	OrgID          string
	Source         string
	Filter         SyncFilter
	BatchSize      int
	State          JobState
	RollbackReason string
	TotalItems     int
	CreatedCount   int
	UpdatedCount   int
	FailedCount    int
	ProcessedCount int
	Batches        []*Batch
	ConflictIDs    []string
	Errors         FailureList
	CreateTime     time.Time
	StartTime      *time.Time
	EndTime        *time.Time
	LastUpdated    time.Time
	Version        int
}

// DefaultBatchSize is the batch size used when a job config does not supply one.
const DefaultBatchSize = 50

// NewSyncJob creates a new SyncJob in the draft state. An empty idempotency
// key is replaced with a generated one.
func NewSyncJob(orgID, source string, filter SyncFilter, batchSize int, idempotencyKey string) *SyncJob {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if idempotencyKey == "" {
		idempotencyKey = NewID()
	}
	now := time.Now()
	return &SyncJob{
		ID:             NewID(),
		IdempotencyKey: idempotencyKey,
		OrgID:          orgID,
		Source:         source,
		Filter:         filter,
		BatchSize:      batchSize,
		State:          JobStateDraft,
		Batches:        make([]*Batch, 0),
		ConflictIDs:    make([]string, 0),
		Errors:         make(FailureList, 0),
		CreateTime:     now,
		LastUpdated:    now,
		Version:        0,
	}
}

// TransitionTo transitions the job to the next state if the transition is
// allowed by the state machine. On an invalid transition it returns an error
// wrapping exception.ErrInvalidTransition and leaves the state unchanged.
func (j *SyncJob) TransitionTo(next JobState) error {
	if !isValidJobTransition(j.State, next) {
		return exception.NewSyncErrorf("job",
			"SyncJob (ID: %s): invalid state transition: %s -> %s", j.ID, j.State, next,
			exception.ErrInvalidTransition)
	}
	j.State = next
	j.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted transitions the job into processing and stamps the start time.
func (j *SyncJob) MarkAsStarted() error {
	if err := j.TransitionTo(JobStateProcessing); err != nil {
		return err
	}
	now := time.Now()
	j.StartTime = &now
	return nil
}

// MarkAsDone transitions the job to done and stamps the end time.
func (j *SyncJob) MarkAsDone() error {
	if err := j.TransitionTo(JobStateDone); err != nil {
		return err
	}
	now := time.Now()
	j.EndTime = &now
	return nil
}

// MarkAsFailed transitions the job to failed and records the error.
func (j *SyncJob) MarkAsFailed(cause error) error {
	if err := j.TransitionTo(JobStateFailed); err != nil {
		return err
	}
	now := time.Now()
	j.EndTime = &now
	if cause != nil {
		j.AddFailure(cause)
	}
	return nil
}

// MarkAsCancelled transitions the job to cancelled and stamps the end time.
func (j *SyncJob) MarkAsCancelled() error {
	if err := j.TransitionTo(JobStateCancelled); err != nil {
		return err
	}
	now := time.Now()
	j.EndTime = &now
	return nil
}

// AddFailure appends error information to the job. Duplicate messages are
// skipped.
func (j *SyncJob) AddFailure(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)
	for _, existing := range j.Errors {
		if existing == errMsg {
			return
		}
	}
	j.Errors = append(j.Errors, errMsg)
	j.LastUpdated = time.Now()
}

// ClearFailures discards the accumulated error list. Used by explicit
// recovery from the failed state.
func (j *SyncJob) ClearFailures() {
	j.Errors = make(FailureList, 0)
	j.LastUpdated = time.Now()
}

// AddBatch appends a finished batch to the job history and folds its counts
// into the job's authoritative counters.
func (j *SyncJob) AddBatch(b *Batch) {
	j.Batches = append(j.Batches, b)
	j.CreatedCount += b.CreatedCount
	j.UpdatedCount += b.UpdatedCount
	j.FailedCount += b.FailedCount
	j.ProcessedCount += b.ItemCount
	j.LastUpdated = time.Now()
}

// AddConflictRef records that a conflict was raised while processing this job.
func (j *SyncJob) AddConflictRef(conflictID string) {
	j.ConflictIDs = append(j.ConflictIDs, conflictID)
	j.LastUpdated = time.Now()
}

// NextBatchNumber returns the 1-based number the next appended batch must carry.
func (j *SyncJob) NextBatchNumber() int {
	return len(j.Batches) + 1
}

// FailureRatio returns failed/processed, or 0 when nothing was processed.
func (j *SyncJob) FailureRatio() float64 {
	if j.ProcessedCount == 0 {
		return 0
	}
	return float64(j.FailedCount) / float64(j.ProcessedCount)
}

// JobSummary is the caller-visible result of a completed job.
type JobSummary struct {
	JobID           string
	TotalBatches    int
	Created         int
	Updated         int
	Failed          int
	ConflictCount   int
	UnresolvedCount int
	Duration        time.Duration
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
