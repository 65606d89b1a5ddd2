package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds live sessions keyed by ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idle     time.Duration
	now      func() time.Time
}

// NewStore creates a store. Sessions unused for longer than idle are
// dropped by Reap and refused by Get; idle <= 0 disables expiry.
func NewStore(idle time.Duration) *Store {
	return &Store{sessions: make(map[string]*Session), idle: idle, now: time.Now}
}

// Create starts a new session with empty state.
func (st *Store) Create() *Session {
	s := newSession(uuid.NewString(), st.now())
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns a live session and marks it as used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := st.now()
	if st.expired(s, now) {
		st.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete drops a session and all of its state.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Reap removes idle sessions and returns how many were removed.
func (st *Store) Reap() int {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if st.expired(s, now) {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Reaped idle sessions", "removed", removed, "remaining", len(st.sessions))
	}
	return removed
}

// Len is the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) expired(s *Session, now time.Time) bool {
	if st.idle <= 0 || s.InFlight() {
		return false
	}
	return s.idleSince(now) > st.idle
}
