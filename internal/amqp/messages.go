package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names an anonymous user activity.
type EventKind string

const (
	KindSessionStarted      EventKind = "session.started"
	KindLedgerCommitted     EventKind = "ledger.committed"
	KindExtractionCompleted EventKind = "extraction.completed"
	KindExtractionFailed    EventKind = "extraction.failed"
	KindAdvisorAnswered     EventKind = "advisor.answered"
	KindQuizCompleted       EventKind = "quiz.completed"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindSessionStarted, KindLedgerCommitted, KindExtractionCompleted,
		KindExtractionFailed, KindAdvisorAnswered, KindQuizCompleted:
		return true
	}
	return false
}

// ActivityEvent is published for every notable user action. It never
// carries amounts or free text, only counts.
type ActivityEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	Count     int       `json:"count,omitempty"`
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivityEvent creates an event with a fresh ID and the current time.
func NewActivityEvent(sessionID string, kind EventKind, count, total int) *ActivityEvent {
	return &ActivityEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Count:     count,
		Total:     total,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ActivityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityEventFromJSON decodes and validates an event.
func ActivityEventFromJSON(data []byte) (*ActivityEvent, error) {
	var msg ActivityEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}
