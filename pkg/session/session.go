package session

import (
	"sync"
	"time"

	"zapmenu/pkg/logger"
)

type Phase int

const (
	PhaseActive Phase = iota
	PhaseTerminated
)

// Termination reasons, used for logging and metrics labels.
const (
	ReasonLifetime   = "lifetime"
	ReasonEscalation = "escalation"
)

// Session is the volatile per-user conversational state. It lives for the
// process lifetime only; a restart resets every user to the root menu while
// the durable enrollment record survives.
type Session struct {
	CurrentMenuID string
	Phase         Phase
	Deadline      time.Time
	Reason        string
}

// Store is a concurrency-safe session table keyed by user id. Once a session
// is terminated it never goes back to active within the process.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	rootMenuID  string
	onTerminate func(userID, reason string)
}

func NewStore(rootMenuID string) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		rootMenuID: rootMenuID,
	}
}

// SetOnTerminate registers a hook invoked once per active-to-terminated
// transition. Must be set before traffic starts.
func (s *Store) SetOnTerminate(fn func(userID, reason string)) {
	s.onTerminate = fn
}

func (s *Store) get(userID string) *Session {
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess := &Session{CurrentMenuID: s.rootMenuID, Phase: PhaseActive}
	s.sessions[userID] = sess
	return sess
}

// Get returns a snapshot of the user's session, creating an active one at
// the root menu if none exists.
func (s *Store) Get(userID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.get(userID)
}

func (s *Store) Terminated(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return ok && sess.Phase == PhaseTerminated
}

// Terminate moves a session to the terminated phase. Returns false when the
// session was already terminated; the transition never runs twice.
func (s *Store) Terminate(userID, reason string) bool {
	s.mu.Lock()
	sess := s.get(userID)
	if sess.Phase == PhaseTerminated {
		s.mu.Unlock()
		return false
	}
	sess.Phase = PhaseTerminated
	sess.Reason = reason
	s.mu.Unlock()

	logger.InfoCF("session", "Session terminated", map[string]interface{}{
		logger.FieldUserID: userID,
		logger.FieldReason: reason,
	})
	if s.onTerminate != nil {
		s.onTerminate(userID, reason)
	}
	return true
}

// SetMenu moves the user to another menu. Terminated sessions are left
// untouched.
func (s *Store) SetMenu(userID, menuID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(userID)
	if sess.Phase == PhaseTerminated {
		return
	}
	sess.CurrentMenuID = menuID
}

func (s *Store) CurrentMenu(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(userID).CurrentMenuID
}

// SetDeadline records the wall-clock expiry of the user's session, derived
// from the enrollment record. Used by the janitor as a safety net.
func (s *Store) SetDeadline(userID string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(userID).Deadline = deadline
}

func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Phase == PhaseActive {
			n++
		}
	}
	return n
}

// SweepOverdue terminates any active session whose deadline has passed,
// covering the case where a lifetime timer was lost. Returns the affected
// user ids.
func (s *Store) SweepOverdue(now time.Time) []string {
	s.mu.RLock()
	var overdue []string
	for userID, sess := range s.sessions {
		if sess.Phase == PhaseActive && !sess.Deadline.IsZero() && !now.Before(sess.Deadline) {
			overdue = append(overdue, userID)
		}
	}
	s.mu.RUnlock()

	for _, userID := range overdue {
		s.Terminate(userID, ReasonLifetime)
	}
	return overdue
}

// PruneExpired drops sessions terminated by lifetime expiry once their
// deadline is at least retention in the past. Those users are re-terminated
// from the durable enrollment record on any later contact, so forgetting the
// in-memory entry is safe. Escalated sessions are never pruned: dropping one
// would resurrect a user already handed off to a human.
func (s *Store) PruneExpired(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for userID, sess := range s.sessions {
		if sess.Phase != PhaseTerminated || sess.Reason != ReasonLifetime {
			continue
		}
		if sess.Deadline.IsZero() || now.Sub(sess.Deadline) < retention {
			continue
		}
		delete(s.sessions, userID)
		pruned++
	}
	return pruned
}
