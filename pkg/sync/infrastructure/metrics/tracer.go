package metrics

import (
	"context"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	metrics "github.com/syncline/syncline/pkg/sync/core/metrics"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// LoggingTracer is a debug-log implementation of metrics.Tracer. It stands
// in until a real tracing backend is wired up.
type LoggingTracer struct{}

// NewLoggingTracer creates a new instance of LoggingTracer.
func NewLoggingTracer() metrics.Tracer {
	return &LoggingTracer{}
}

// StartJobSpan starts a span covering one sync job run.
func (t *LoggingTracer) StartJobSpan(ctx context.Context, job *model.SyncJob) (context.Context, func()) {
	logger.Debugf("Tracer: job span started for '%s'.", job.ID)
	return ctx, func() {
		logger.Debugf("Tracer: job span ended for '%s'.", job.ID)
	}
}

// StartBatchSpan starts a span covering one batch.
func (t *LoggingTracer) StartBatchSpan(ctx context.Context, jobID string, batchNumber int) (context.Context, func()) {
	logger.Debugf("Tracer: batch span started for job '%s' batch %d.", jobID, batchNumber)
	return ctx, func() {
		logger.Debugf("Tracer: batch span ended for job '%s' batch %d.", jobID, batchNumber)
	}
}

// RecordError records an error in the current span.
func (t *LoggingTracer) RecordError(ctx context.Context, module string, err error) {
	logger.Debugf("Tracer: error recorded in module %s: %v", module, err)
}

// RecordEvent records a named event in the current span.
func (t *LoggingTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	logger.Debugf("Tracer: event recorded: %s, attributes: %v", name, attributes)
}

var _ metrics.Tracer = (*LoggingTracer)(nil)
