// Package session keeps the per-user state of the web app in memory.
// Nothing here is persisted: a restart or logout discards everything.
package session

import (
	"sync"
	"time"

	"financify/internal/core"
)

// State is everything a single user owns.
type State struct {
	Ledger     core.Ledger
	Draft      core.Draft
	Transcript core.Transcript
	Profile    core.Profile
	Onboarded  bool

	// SelectedLesson is the lesson shown in the player.
	SelectedLesson string
	// Quiz is the open attempt, nil when the quiz dialog is closed.
	Quiz *core.QuizAttempt

	// APIKey is an oracle key entered in the UI. It is never logged.
	APIKey string
	Login  string
}

func newState() State {
	return State{
		Ledger:  core.NewLedger(),
		Draft:   core.NewDraft(),
		Profile: core.NewProfile(),
	}
}

func (st State) clone() State {
	out := st
	out.Ledger = core.Ledger{Income: st.Ledger.Income, Expenses: append([]core.ExpenseEntry(nil), st.Ledger.Expenses...)}
	out.Draft = core.Draft{Income: st.Draft.Income, Rows: append([]core.ExpenseEntry(nil), st.Draft.Rows...)}
	out.Quiz = st.Quiz.Clone()
	return out
}

// Session guards one user's State. All access goes through View and Update.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	state    State
	lastSeen time.Time
	inFlight bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, lastSeen: now, state: newState()}
}

// Snapshot returns a copy of the state that is safe to read without locks.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Update applies fn to the state under the session lock. If fn returns an
// error the state is left exactly as it was.
func (s *Session) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// BeginRequest marks an advisor request as running. A second call before
// EndRequest fails with core.ErrRequestInFlight.
func (s *Session) BeginRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return core.ErrRequestInFlight
	}
	s.inFlight = true
	return nil
}

// EndRequest clears the in-flight flag.
func (s *Session) EndRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// InFlight reports whether an advisor request is running.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
