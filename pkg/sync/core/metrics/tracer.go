package metrics

import (
	"context"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// Tracer is an abstract interface for tracing job and batch execution spans.
type Tracer interface {
	// StartJobSpan starts a span covering one sync job run. The returned
	// func ends the span.
	StartJobSpan(ctx context.Context, job *model.SyncJob) (context.Context, func())

	// StartBatchSpan starts a span covering one batch.
	StartBatchSpan(ctx context.Context, jobID string, batchNumber int) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a named event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
