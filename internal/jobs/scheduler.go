package jobs

import (
	"sync"
	"time"
)

// Scheduler holds one cancellable timer per job id for retry delays. Timers
// are in-process only: a restart loses pending timers but not job state — the
// job stays pending and the next orchestrator sweep picks it up by
// ScheduledAt.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*timerHandle

	// afterFunc is swappable so tests can fire timers synchronously.
	afterFunc func(d time.Duration, fn func()) *time.Timer
}

type timerHandle struct {
	timer *time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers:    make(map[string]*timerHandle),
		afterFunc: time.AfterFunc,
	}
}

// Schedule runs fn after delay on behalf of jobID. Scheduling again for the
// same job replaces the previous timer.
func (s *Scheduler) Schedule(jobID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[jobID]; ok {
		existing.timer.Stop()
	}

	handle := &timerHandle{}
	handle.timer = s.afterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[jobID] == handle {
			delete(s.timers, jobID)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[jobID] = handle
}

// Cancel stops the pending timer for jobID, reporting whether one existed.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.timers[jobID]
	if !ok {
		return false
	}
	handle.timer.Stop()
	delete(s.timers, jobID)
	return true
}

// CancelAll stops every pending timer, typically on shutdown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, handle := range s.timers {
		handle.timer.Stop()
		delete(s.timers, id)
	}
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
