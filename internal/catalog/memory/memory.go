package memory

import (
	"context"
	"fmt"
	"sync"

	"financify/internal/catalog"
	"financify/internal/core"
)

const creator = "Sourced from RBI Publications"

// Builtin returns the lessons shipped with the app.
func Builtin() []core.Lesson {
	return []core.Lesson{
		{
			ID:           "needs-vs-wants",
			Title:        "Chapter 1: Needs vs Wants",
			CreatorLabel: creator,
			ImageRef:     "/static/img/needs-vs-wants.svg",
			AudioRef:     "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
			Quiz: []core.QuizQuestion{
				{
					Prompt:        "What does compounding primarily rely on?",
					Options:       []string{"Initial investment only", "Reinvesting earnings", "Market volatility", "Frequent withdrawals"},
					CorrectOption: "Reinvesting earnings",
				},
				{
					Prompt:        "The 'Rule of 72' helps estimate...",
					Options:       []string{"Monthly budget", "Tax liability", "Time to double money", "Credit score"},
					CorrectOption: "Time to double money",
				},
			},
		},
		{
			ID:           "mutual-funds",
			Title:        "Understanding Mutual Funds",
			CreatorLabel: creator,
			ImageRef:     "https://images.unsplash.com/photo-1624953587687-e271b715985e?q=80&w=870&auto=format&fit=crop",
			AudioRef:     "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
			Quiz: []core.QuizQuestion{
				{
					Prompt:        "What does 'diversification' in a mutual fund mean?",
					Options:       []string{"Investing in only one stock", "Spreading investments across various assets", "Only investing in gold", "Avoiding the stock market"},
					CorrectOption: "Spreading investments across various assets",
				},
				{
					Prompt:        "What is a 'Systematic Investment Plan' (SIP)?",
					Options:       []string{"A one-time lump sum investment", "A plan to sell all stocks", "Investing a fixed amount regularly", "A type of insurance"},
					CorrectOption: "Investing a fixed amount regularly",
				},
			},
		},
		{
			ID:           "tax-saving",
			Title:        "Basics of Tax Saving",
			CreatorLabel: creator,
			ImageRef:     "https://images.unsplash.com/photo-1554224155-1696413565d3?q=80&w=870&auto=format&fit=crop",
			AudioRef:     "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3",
			Quiz: []core.QuizQuestion{
				{
					Prompt:        "Which is a popular tax-saving instrument under Section 80C in India?",
					Options:       []string{"Savings Account", "Public Provident Fund (PPF)", "Credit Card points", "A foreign currency account"},
					CorrectOption: "Public Provident Fund (PPF)",
				},
				{
					Prompt:        "ELSS funds have a lock-in period of how many years?",
					Options:       []string{"1 year", "3 years", "5 years", "10 years"},
					CorrectOption: "3 years",
				},
			},
		},
	}
}

// Store serves lessons from memory.
type Store struct {
	mu      sync.RWMutex
	order   []string
	lessons map[string]core.Lesson
}

// Ensure interface conformance
var _ catalog.LessonReader = (*Store)(nil)

// New validates lessons and keeps them in the given order.
func New(lessons ...core.Lesson) (*Store, error) {
	s := &Store{lessons: make(map[string]core.Lesson, len(lessons))}
	for _, l := range lessons {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("lesson %q: %w", l.ID, err)
		}
		if _, dup := s.lessons[l.ID]; dup {
			return nil, fmt.Errorf("duplicate lesson id %q", l.ID)
		}
		s.order = append(s.order, l.ID)
		s.lessons[l.ID] = l
	}
	return s, nil
}

// NewBuiltin returns a store with the shipped lessons.
func NewBuiltin() *Store {
	s, err := New(Builtin()...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Store) List(_ context.Context) ([]core.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Lesson, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.lessons[id])
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return core.Lesson{}, fmt.Errorf("%w: %s", catalog.ErrLessonNotFound, id)
	}
	return l, nil
}
