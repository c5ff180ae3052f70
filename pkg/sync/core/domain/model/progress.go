package model

import (
	"time"
)

// ProgressSnapshot is the derived, non-authoritative view of a job's
// throughput. It is recomputed from cumulative counters and elapsed
// wall-clock time on every update; the SyncJob counters remain the source
// of truth.
type ProgressSnapshot struct {
	JobID     string
	Total     int
	Processed int
	Created   int
	Updated   int
	Failed    int

	ItemsPerSecond  float64
	ItemsPerMinute  float64
	PercentComplete float64
	// EstimatedTimeRemaining is nil until the throughput rate is positive.
	EstimatedTimeRemaining *time.Duration

	// Done mirrors terminal status for reporting only; the tracker has no
	// authority over the sync state machine.
	Done        bool
	Duration    time.Duration
	StartedAt   time.Time
	LastUpdated time.Time
}

// ProgressUpdate is one immutable entry in a job's progress history,
// kept for auditing and debugging, not replay.
type ProgressUpdate struct {
	Created    int
	Updated    int
	Failed     int
	RecordedAt time.Time
}
