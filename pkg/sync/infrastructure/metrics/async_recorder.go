package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	metrics "github.com/syncline/syncline/pkg/sync/core/metrics"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// AsyncRecorder decouples metric recording from the batch-processing hot
// path: events are pushed onto a bounded channel and drained by one worker
// goroutine. When the buffer is full the event is dropped rather than
// blocking the engine.
type AsyncRecorder struct {
	delegate metrics.MetricRecorder
	events   chan func()
	wg       sync.WaitGroup
	closed   chan struct{}
	once     sync.Once
}

// NewAsyncRecorder wraps delegate with an asynchronous buffer of the given
// size.
func NewAsyncRecorder(delegate metrics.MetricRecorder, bufferSize int) *AsyncRecorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &AsyncRecorder{
		delegate: delegate,
		events:   make(chan func(), bufferSize),
		closed:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

func (r *AsyncRecorder) drain() {
	defer r.wg.Done()
	for ev := range r.events {
		ev()
	}
}

// Close drains pending events and stops the worker.
func (r *AsyncRecorder) Close() {
	r.once.Do(func() {
		close(r.closed)
		close(r.events)
	})
	r.wg.Wait()
}

func (r *AsyncRecorder) submit(ev func()) {
	select {
	case <-r.closed:
		return
	default:
	}
	select {
	case r.events <- ev:
	default:
		logger.Debugf("Metric event dropped: async buffer is full.")
	}
}

// RecordJobStart records the start of a sync job.
func (r *AsyncRecorder) RecordJobStart(ctx context.Context, job *model.SyncJob) {
	j := *job
	r.submit(func() { r.delegate.RecordJobStart(context.Background(), &j) })
}

// RecordJobEnd records the end of a sync job.
func (r *AsyncRecorder) RecordJobEnd(ctx context.Context, job *model.SyncJob) {
	j := *job
	r.submit(func() { r.delegate.RecordJobEnd(context.Background(), &j) })
}

// RecordBatchCommit records the commitment of one processed batch.
func (r *AsyncRecorder) RecordBatchCommit(ctx context.Context, job *model.SyncJob, batch *model.Batch) {
	j, b := *job, *batch
	r.submit(func() { r.delegate.RecordBatchCommit(context.Background(), &j, &b) })
}

// RecordItemOutcome records per-item outcomes of a batch.
func (r *AsyncRecorder) RecordItemOutcome(ctx context.Context, source string, created, updated, failed int) {
	r.submit(func() { r.delegate.RecordItemOutcome(context.Background(), source, created, updated, failed) })
}

// RecordConflictRegistered records the registration of a conflict.
func (r *AsyncRecorder) RecordConflictRegistered(ctx context.Context, conflictType model.ConflictType) {
	r.submit(func() { r.delegate.RecordConflictRegistered(context.Background(), conflictType) })
}

// RecordConflictResolved records the terminal resolution of a conflict.
func (r *AsyncRecorder) RecordConflictResolved(ctx context.Context, strategy model.ResolutionStrategy) {
	r.submit(func() { r.delegate.RecordConflictResolved(context.Background(), strategy) })
}

// RecordCacheLookup records a delta-cache lookup outcome.
func (r *AsyncRecorder) RecordCacheLookup(ctx context.Context, source string, hit bool) {
	r.submit(func() { r.delegate.RecordCacheLookup(context.Background(), source, hit) })
}

// RecordDuration records the execution time of a named operation.
func (r *AsyncRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.submit(func() { r.delegate.RecordDuration(context.Background(), name, duration, tags) })
}

var _ metrics.MetricRecorder = (*AsyncRecorder)(nil)
