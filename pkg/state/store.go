package state

import (
	"log"
	"sync"
	"time"
)

// Store holds one SessionState per active user. It is the only component
// allowed to mutate session timing fields; everything else goes through
// GetOrCreate/Touch/ExpireIdle.
type Store struct {
	sessions   map[int64]*SessionState
	fsmCreator FSMCreator
	now        func() time.Time
	mu         sync.Mutex
}

func NewStore(f FSMCreator) *Store {
	return &Store{
		sessions:   make(map[int64]*SessionState),
		fsmCreator: f,
		now:        time.Now,
	}
}

func (s *Store) GetOrCreate(userID int64, userName string) *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[userID]
	if exists {
		if userName != "" && sess.UserName != userName {
			log.Printf("Updating username for user %d: '%s' -> '%s'", userID, sess.UserName, userName)
			sess.UserName = userName
		}
		sess.LastActivity = s.now()
		return sess
	}

	log.Printf("Creating new session for user %d ('%s')", userID, userName)

	lessonFSM := s.fsmCreator.NewLessonFSM()
	if lessonFSM == nil {
		log.Printf("CRITICAL: Failed to initialize lesson FSM for user %d", userID)
		return nil
	}

	sess = &SessionState{
		UserID:       userID,
		UserName:     userName,
		LessonFSM:    lessonFSM,
		LastActivity: s.now(),
	}
	s.sessions[userID] = sess

	return sess
}

// Touch refreshes the session activity clock without creating a session.
func (s *Store) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.LastActivity = s.now()
	}
}

// Sessions returns a snapshot of the live sessions. Callers must take each
// session's Mu before inspecting or mutating its dialogue fields.
func (s *Store) Sessions() []*SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*SessionState, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ExpireIdle finalizes and removes sessions whose last activity is older than
// timeout. finalize runs under the session's own mutex so an expiry never
// races a message being processed for the same user; a session that became
// active between the snapshot and the lock is skipped.
func (s *Store) ExpireIdle(now time.Time, timeout time.Duration, finalize func(*SessionState)) int {
	cutoff := now.Add(-timeout)

	s.mu.Lock()
	var idle []*SessionState
	for _, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()

	expired := 0
	for _, sess := range idle {
		sess.Mu.Lock()

		s.mu.Lock()
		stillIdle := sess.LastActivity.Before(cutoff)
		if stillIdle {
			delete(s.sessions, sess.UserID)
		}
		s.mu.Unlock()

		if !stillIdle {
			sess.Mu.Unlock()
			continue
		}

		if finalize != nil {
			finalize(sess)
		}
		sess.Mu.Unlock()

		log.Printf("[ExpireIdle] Session for user %d expired (idle since %s)", sess.UserID, sess.LastActivity.Format(time.RFC3339))
		expired++
	}
	return expired
}
