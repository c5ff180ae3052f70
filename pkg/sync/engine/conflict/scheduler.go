package conflict

import (
	"sync"
	"time"

	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// RetryScheduler defers conflict retry callbacks with per-conflict timers
// instead of blocking a worker for the backoff duration. Scheduling a
// conflict that already has a pending timer replaces the old timer.
type RetryScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewRetryScheduler creates an empty scheduler.
func NewRetryScheduler() *RetryScheduler {
	return &RetryScheduler{
		timers: make(map[string]*time.Timer),
	}
}

// Schedule runs fn after delay on the timer goroutine. It is a no-op after
// Stop.
func (s *RetryScheduler) Schedule(conflictID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		logger.Warnf("Retry scheduler is stopped; dropping retry for conflict %s.", conflictID)
		return
	}
	if prev, ok := s.timers[conflictID]; ok {
		prev.Stop()
	}
	s.timers[conflictID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, conflictID)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		fn()
	})
	logger.Debugf("Scheduled retry for conflict %s in %s.", conflictID, delay)
}

// Cancel stops the pending timer for one conflict, if any.
func (s *RetryScheduler) Cancel(conflictID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[conflictID]; ok {
		t.Stop()
		delete(s.timers, conflictID)
	}
}

// Pending returns the number of scheduled retries.
func (s *RetryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending timers and rejects further scheduling.
func (s *RetryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
