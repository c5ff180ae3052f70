// Package metrics defines the abstract metric-recording interface of the
// engine. Concrete backends (Prometheus) live under infrastructure/metrics;
// a no-op recorder is provided for tests and metric-less deployments.
package metrics

import (
	"context"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics related to
// reconciliation runs. It standardizes job, batch, item, conflict and cache
// events so different backends can be plugged in.
type MetricRecorder interface {
	// RecordJobStart records the start of a sync job.
	RecordJobStart(ctx context.Context, job *model.SyncJob)

	// RecordJobEnd records the end of a sync job (done, failed or cancelled).
	RecordJobEnd(ctx context.Context, job *model.SyncJob)

	// RecordBatchCommit records the commitment of one processed batch.
	RecordBatchCommit(ctx context.Context, job *model.SyncJob, batch *model.Batch)

	// RecordItemOutcome records per-item outcomes of a batch: created,
	// updated and failed counts.
	RecordItemOutcome(ctx context.Context, source string, created, updated, failed int)

	// RecordConflictRegistered records the registration of a conflict.
	RecordConflictRegistered(ctx context.Context, conflictType model.ConflictType)

	// RecordConflictResolved records the terminal resolution of a conflict.
	RecordConflictResolved(ctx context.Context, strategy model.ResolutionStrategy)

	// RecordCacheLookup records a delta-cache lookup outcome.
	RecordCacheLookup(ctx context.Context, source string, hit bool)

	// RecordDuration records the execution time of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
