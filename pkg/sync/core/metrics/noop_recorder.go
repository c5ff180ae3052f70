package metrics

import (
	"context"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordJobStart does nothing.
func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, job *model.SyncJob) {}

// RecordJobEnd does nothing.
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, job *model.SyncJob) {}

// RecordBatchCommit does nothing.
func (r *NoOpMetricRecorder) RecordBatchCommit(ctx context.Context, job *model.SyncJob, batch *model.Batch) {
}

// RecordItemOutcome does nothing.
func (r *NoOpMetricRecorder) RecordItemOutcome(ctx context.Context, source string, created, updated, failed int) {
}

// RecordConflictRegistered does nothing.
func (r *NoOpMetricRecorder) RecordConflictRegistered(ctx context.Context, conflictType model.ConflictType) {
}

// RecordConflictResolved does nothing.
func (r *NoOpMetricRecorder) RecordConflictResolved(ctx context.Context, strategy model.ResolutionStrategy) {
}

// RecordCacheLookup does nothing.
func (r *NoOpMetricRecorder) RecordCacheLookup(ctx context.Context, source string, hit bool) {}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)
