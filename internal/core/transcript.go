package core

import "time"

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the advisor conversation. Error marks assistant
// turns that carry a failure message instead of an answer.
type Turn struct {
	Role  Role
	Text  string
	Error bool
	At    time.Time
}

// Transcript is the append-only advisor conversation of a session.
type Transcript struct {
	turns []Turn
}

// NewTranscript starts a conversation with a greeting addressed to name.
func NewTranscript(name string) Transcript {
	return Transcript{}.Append(GreetingTurn(name))
}

// GreetingTurn is the assistant's opening line.
func GreetingTurn(name string) Turn {
	greeting := "Hello!"
	if name != "" {
		greeting = "Hello " + name + "!"
	}
	return Turn{
		Role: RoleAssistant,
		Text: greeting + " I'm Financify. How can I help you with your finances today?",
		At:   time.Now(),
	}
}

// Append returns a transcript with t added at the end.
func (tr Transcript) Append(t Turn) Transcript {
	turns := make([]Turn, len(tr.turns), len(tr.turns)+1)
	copy(turns, tr.turns)
	return Transcript{turns: append(turns, t)}
}

// Turns returns a copy of the conversation in order.
func (tr Transcript) Turns() []Turn {
	out := make([]Turn, len(tr.turns))
	copy(out, tr.turns)
	return out
}

// Last returns the most recent turn.
func (tr Transcript) Last() (Turn, bool) {
	if len(tr.turns) == 0 {
		return Turn{}, false
	}
	return tr.turns[len(tr.turns)-1], true
}

func (tr Transcript) Len() int { return len(tr.turns) }
