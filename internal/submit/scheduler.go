package submit

import (
	"sync"
	"time"
)

// Scheduler runs delayed callbacks that can be cancelled until they start.
// After Close, pending callbacks never run and new ones are dropped.
type Scheduler struct {
	mu      sync.Mutex
	next    uint64
	timers  map[uint64]*time.Timer
	closed  bool
	running sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[uint64]*time.Timer)}
}

// After schedules fn to run once after d. The returned cancel func reports
// whether it stopped fn from running.
func (s *Scheduler) After(d time.Duration, fn func()) (cancel func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() bool { return false }
	}

	id := s.next
	s.next++
	s.running.Add(1)
	s.timers[id] = time.AfterFunc(d, func() {
		defer s.running.Done()
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if live {
			fn()
		}
	})

	return func() bool {
		s.mu.Lock()
		t, ok := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if ok && t.Stop() {
			s.running.Done()
		}
		return ok
	}
}

// Pending returns the number of callbacks not yet started.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels every pending callback and waits for running ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	timers := s.timers
	s.timers = make(map[uint64]*time.Timer)
	s.mu.Unlock()

	for _, t := range timers {
		if t.Stop() {
			s.running.Done()
		}
	}
	s.running.Wait()
}
