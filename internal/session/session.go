package session

import (
	"sort"
	"sync"
	"time"
)

// Session is the single ephemeral record of one in-progress class
// attendance-taking period.
type Session struct {
	ClassID   string
	TeacherID string
	StartedAt time.Time
	present   map[string]struct{}
}

// State holds the at-most-one active session for the process. Reads
// are safe from any goroutine; the compound transitions (check then
// begin, persist then end) are serialized by the coordinator, which is
// the sole mutator.
type State struct {
	mu      sync.RWMutex
	current *Session
}

// NewState creates an empty State with no active session.
func NewState() *State {
	return &State{}
}

// Begin creates the active session for classID owned by teacherID.
// Fails with ErrSessionActive if a session already exists.
func (s *State) Begin(classID, teacherID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrSessionActive
	}
	s.current = &Session{
		ClassID:   classID,
		TeacherID: teacherID,
		StartedAt: time.Now(),
		present:   make(map[string]struct{}),
	}
	return s.current, nil
}

// MarkPresent adds studentID to the present-set. Idempotent: marking
// an already-present student is a no-op, reported by the return value.
// Fails with ErrNoSession if no session is active.
func (s *State) MarkPresent(studentID string) (newlyMarked bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false, ErrNoSession
	}
	if _, ok := s.current.present[studentID]; ok {
		return false, nil
	}
	s.current.present[studentID] = struct{}{}
	return true, nil
}

// End clears the session and returns its class id and the sorted
// present-set. Fails with ErrNoSession if no session is active.
func (s *State) End() (classID string, studentIDs []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "", nil, ErrNoSession
	}
	classID = s.current.ClassID
	studentIDs = presentIDs(s.current)
	s.current = nil
	return classID, studentIDs, nil
}

// Snapshot returns the current session's class, owner and sorted
// present-set without mutating anything. ok is false while idle.
func (s *State) Snapshot() (classID, teacherID string, studentIDs []string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return "", "", nil, false
	}
	return s.current.ClassID, s.current.TeacherID, presentIDs(s.current), true
}

// Status returns what a session_status event needs: whether a session
// is active, and if so its class id and present-count.
func (s *State) Status() (active bool, classID string, presentCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return false, "", 0
	}
	return true, s.current.ClassID, len(s.current.present)
}

func presentIDs(sess *Session) []string {
	ids := make([]string, 0, len(sess.present))
	for id := range sess.present {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
