package metrics

import (
	"context"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartJobSpan does nothing.
func (t *NoOpTracer) StartJobSpan(ctx context.Context, job *model.SyncJob) (context.Context, func()) {
	return ctx, func() {}
}

// StartBatchSpan does nothing.
func (t *NoOpTracer) StartBatchSpan(ctx context.Context, jobID string, batchNumber int) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
