package core

import (
	"errors"
	"fmt"
	"strings"
)

// QuizQuestion is one multiple-choice question of a lesson quiz.
type QuizQuestion struct {
	Prompt        string
	Options       []string
	CorrectOption string
}

// Validate checks that the correct option is one of the options.
func (q QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("empty question prompt")
	}
	if len(q.Options) < 2 {
		return errors.New("question needs at least two options")
	}
	if !q.HasOption(q.CorrectOption) {
		return errors.New("correct option is not among the options")
	}
	return nil
}

// HasOption reports whether choice is one of the question's options.
func (q QuizQuestion) HasOption(choice string) bool {
	for _, o := range q.Options {
		if o == choice {
			return true
		}
	}
	return false
}

// Lesson is a read-only catalog entry: an audio lesson and its quiz.
type Lesson struct {
	ID           string
	Title        string
	CreatorLabel string
	ImageRef     string
	AudioRef     string
	Quiz         []QuizQuestion
}

// Validate checks the lesson and all of its questions.
func (l Lesson) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("lesson id is required")
	}
	if strings.TrimSpace(l.Title) == "" {
		return errors.New("lesson title is required")
	}
	for i, q := range l.Quiz {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// QuizState is InProgress until every question has been answered.
type QuizState int

const (
	QuizInProgress QuizState = iota
	QuizCompleted
)

func (s QuizState) String() string {
	if s == QuizCompleted {
		return "completed"
	}
	return "in_progress"
}

// Feedback is returned by Next for the question just submitted.
type Feedback struct {
	Correct       bool
	Chosen        string
	CorrectOption string
}

// QuizAttempt is a single pass through a lesson quiz. Questions are shown one
// at a time; the attempt completes when the index reaches the question count.
type QuizAttempt struct {
	lessonID  string
	questions []QuizQuestion
	index     int
	answers   map[int]string
}

// NewQuizAttempt starts an attempt at question 0 with no answers.
func NewQuizAttempt(l Lesson) *QuizAttempt {
	qs := make([]QuizQuestion, len(l.Quiz))
	copy(qs, l.Quiz)
	return &QuizAttempt{lessonID: l.ID, questions: qs, answers: map[int]string{}}
}

// LessonID is the lesson this attempt belongs to.
func (a *QuizAttempt) LessonID() string { return a.lessonID }

// Index is the current question index; it equals Total once completed.
func (a *QuizAttempt) Index() int { return a.index }

// Total is the number of questions.
func (a *QuizAttempt) Total() int { return len(a.questions) }

// State reports InProgress or Completed.
func (a *QuizAttempt) State() QuizState {
	if a.index >= len(a.questions) {
		return QuizCompleted
	}
	return QuizInProgress
}

// Current returns the question at the current index.
func (a *QuizAttempt) Current() (QuizQuestion, bool) {
	if a.State() == QuizCompleted {
		return QuizQuestion{}, false
	}
	return a.questions[a.index], true
}

// Answer returns the choice recorded for question i, if any.
func (a *QuizAttempt) Answer(i int) (string, bool) {
	v, ok := a.answers[i]
	return v, ok
}

// SelectOption records choice for the current question, overwriting any
// earlier answer.
func (a *QuizAttempt) SelectOption(choice string) error {
	q, ok := a.Current()
	if !ok {
		return ErrQuizCompleted
	}
	if !q.HasOption(choice) {
		return Invalid("choice", ErrUnknownOption)
	}
	a.answers[a.index] = choice
	return nil
}

// Next submits the current answer and advances. Without an answer for the
// current question it fails and the attempt is unchanged.
func (a *QuizAttempt) Next() (Feedback, error) {
	q, ok := a.Current()
	if !ok {
		return Feedback{}, ErrQuizCompleted
	}
	chosen, answered := a.answers[a.index]
	if !answered {
		return Feedback{}, ErrNoAnswer
	}
	a.index++
	return Feedback{Correct: chosen == q.CorrectOption, Chosen: chosen, CorrectOption: q.CorrectOption}, nil
}

// Previous steps back one question. Recorded answers are kept.
func (a *QuizAttempt) Previous() error {
	if a.State() == QuizCompleted {
		return ErrQuizCompleted
	}
	if a.index == 0 {
		return ErrAtFirstQuestion
	}
	a.index--
	return nil
}

// Score counts answers that match the correct option.
func (a *QuizAttempt) Score() int {
	score := 0
	for i, q := range a.questions {
		if a.answers[i] == q.CorrectOption {
			score++
		}
	}
	return score
}

// Clone returns an independent copy of the attempt.
func (a *QuizAttempt) Clone() *QuizAttempt {
	if a == nil {
		return nil
	}
	answers := make(map[int]string, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}
	return &QuizAttempt{lessonID: a.lessonID, questions: a.questions, index: a.index, answers: answers}
}
