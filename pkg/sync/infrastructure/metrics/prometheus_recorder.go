// Package metrics provides the Prometheus implementation of the
// metrics.MetricRecorder interface, plus a logging Tracer stub.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	metrics "github.com/syncline/syncline/pkg/sync/core/metrics"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStateCounter    *prometheus.CounterVec

	// Batch / Item Metrics
	batchCommitCounter *prometheus.CounterVec
	itemOutcomeCounter *prometheus.CounterVec

	// Conflict Metrics
	conflictRegisteredCounter *prometheus.CounterVec
	conflictResolvedCounter   *prometheus.CounterVec

	// Delta Metrics
	cacheLookupCounter *prometheus.CounterVec
	operationSeconds   *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Duration of sync job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "state"}),
		jobStateCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_job_state_total",
			Help: "Total number of sync job executions by state.",
		}, []string{"source", "state"}),
		batchCommitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_batch_commit_total",
			Help: "Total batch commits by source.",
		}, []string{"source"}),
		itemOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_item_outcome_total",
			Help: "Total item outcomes by source and kind.",
		}, []string{"source", "outcome"}), // outcome: created, updated, failed
		conflictRegisteredCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_conflict_registered_total",
			Help: "Total conflicts registered by type.",
		}, []string{"type"}),
		conflictResolvedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_conflict_resolved_total",
			Help: "Total conflicts resolved by strategy.",
		}, []string{"strategy"}),
		cacheLookupCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_delta_cache_lookup_total",
			Help: "Total delta cache lookups by source and result.",
		}, []string{"source", "result"}), // result: hit, miss
		operationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_operation_duration_seconds",
			Help:    "Duration of named engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStateCounter)
	registry.MustRegister(r.batchCommitCounter)
	registry.MustRegister(r.itemOutcomeCounter)
	registry.MustRegister(r.conflictRegisteredCounter)
	registry.MustRegister(r.conflictResolvedCounter)
	registry.MustRegister(r.cacheLookupCounter)
	registry.MustRegister(r.operationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry, for exposing over /metrics.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a sync job.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, job *model.SyncJob) {
	r.jobStateCounter.WithLabelValues(job.Source, job.State.String()).Inc()
	logger.Debugf("Metrics: Job '%s' started.", job.ID)
}

// RecordJobEnd records the end of a sync job.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, job *model.SyncJob) {
	r.jobStateCounter.WithLabelValues(job.Source, job.State.String()).Inc()
	if job.StartTime == nil || job.EndTime == nil {
		return
	}
	duration := job.EndTime.Sub(*job.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(job.Source, job.State.String()).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended in state %s. Duration: %.3fs", job.ID, job.State, duration)
}

// RecordBatchCommit records the commitment of one processed batch.
func (r *PrometheusRecorder) RecordBatchCommit(ctx context.Context, job *model.SyncJob, batch *model.Batch) {
	r.batchCommitCounter.WithLabelValues(job.Source).Inc()
}

// RecordItemOutcome records per-item outcomes of a batch.
func (r *PrometheusRecorder) RecordItemOutcome(ctx context.Context, source string, created, updated, failed int) {
	r.itemOutcomeCounter.WithLabelValues(source, "created").Add(float64(created))
	r.itemOutcomeCounter.WithLabelValues(source, "updated").Add(float64(updated))
	r.itemOutcomeCounter.WithLabelValues(source, "failed").Add(float64(failed))
}

// RecordConflictRegistered records the registration of a conflict.
func (r *PrometheusRecorder) RecordConflictRegistered(ctx context.Context, conflictType model.ConflictType) {
	r.conflictRegisteredCounter.WithLabelValues(conflictType.String()).Inc()
}

// RecordConflictResolved records the terminal resolution of a conflict.
func (r *PrometheusRecorder) RecordConflictResolved(ctx context.Context, strategy model.ResolutionStrategy) {
	r.conflictResolvedCounter.WithLabelValues(strategy.String()).Inc()
}

// RecordCacheLookup records a delta-cache lookup outcome.
func (r *PrometheusRecorder) RecordCacheLookup(ctx context.Context, source string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookupCounter.WithLabelValues(source, result).Inc()
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
