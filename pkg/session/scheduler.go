package session

import (
	"sync"
	"time"
)

// Scheduler owns the per-user lifetime timers. At most one timer is live per
// user: arming always cancels the previous one first. The fire callback is
// expected to check the session phase (Terminate already does).
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	expire func(userID string)
}

func NewScheduler(expire func(userID string)) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		expire: expire,
	}
}

// ArmUntil schedules expiry at an absolute deadline. Re-arming on every turn
// with the same deadline keeps the termination pinned to a fixed wall-clock
// offset from enrollment, no matter how many turns the user takes.
func (s *Scheduler) ArmUntil(userID string, deadline time.Time) {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	s.Arm(userID, d)
}

// Arm replaces any existing timer for the user with a new one.
func (s *Scheduler) Arm(userID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[userID]; ok {
		prev.Stop()
	}
	s.timers[userID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, userID)
		s.mu.Unlock()
		s.expire(userID)
	})
}

func (s *Scheduler) Cancel(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.timers[userID]
	if !ok {
		return false
	}
	prev.Stop()
	delete(s.timers, userID)
	return true
}

// Armed reports whether a timer is currently live for the user.
func (s *Scheduler) Armed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[userID]
	return ok
}

// StopAll cancels every outstanding timer. Used on shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, t := range s.timers {
		t.Stop()
		delete(s.timers, userID)
	}
}
