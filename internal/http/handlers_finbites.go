package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"financify/internal/amqp"
	"financify/internal/catalog"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/session"

	"github.com/gorilla/mux"
)

var errQuizClosed = errors.New("no quiz is open")

type finBitesView struct {
	Lessons  []core.Lesson
	Selected core.Lesson
	Quiz     *quizView
}

type quizView struct {
	LessonTitle string
	Number      int
	Total       int
	Question    core.QuizQuestion
	Chosen      string
	Completed   bool
	Score       int
	Feedback    *core.Feedback
	Notice      *Notice
}

func (s *Server) handleFinBites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := sessionFrom(ctx).Snapshot()

	lessons, err := s.deps.Catalog.List(ctx)
	if err != nil {
		s.structLog.LogError(ctx, "Failed to list lessons", err, log.ComponentCatalog, "list", log.NewFields())
		InternalServerError("Lessons are unavailable right now.").Write(w)
		return
	}

	view := finBitesView{Lessons: lessons}
	if len(lessons) > 0 {
		view.Selected = lessons[0]
	}
	for _, l := range lessons {
		if l.ID == st.SelectedLesson {
			view.Selected = l
		}
	}
	if st.Quiz != nil {
		view.Quiz = s.quizView(ctx, st.Quiz, nil, nil)
	}

	data := s.page(ctx, "Fin-Bites", "finbites", st)
	data.Page = view
	s.renderPage(w, r, http.StatusOK, "finbites.html", data)
}

// handleSelectLesson shows a lesson in the player and discards any open
// quiz attempt.
func (s *Server) handleSelectLesson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	id := mux.Vars(r)["lesson"]

	lesson, err := s.deps.Catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrLessonNotFound) {
			NotFoundError("Lesson not found").Write(w)
			return
		}
		s.structLog.LogError(ctx, "Failed to load lesson", err, log.ComponentCatalog, "get", log.LogFields{log.FieldLessonID: id})
		InternalServerError("Lessons are unavailable right now.").Write(w)
		return
	}
	_ = sess.Update(func(st *session.State) error {
		st.SelectedLesson = lesson.ID
		st.Quiz = nil
		return nil
	})
	s.redirect(w, r, "/finbites")
}

// handleQuizOpen starts a fresh attempt for the selected lesson.
func (s *Server) handleQuizOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	lesson, err := s.selectedLesson(ctx, sess.Snapshot())
	if err != nil {
		s.fail(w, r, "quiz_open", err, "This lesson is unavailable right now.")
		return
	}
	attempt := core.NewQuizAttempt(lesson)
	_ = sess.Update(func(st *session.State) error {
		st.SelectedLesson = lesson.ID
		st.Quiz = attempt
		return nil
	})
	log.FromContext(ctx).InfoContext(ctx, "Quiz opened", log.FieldLessonID, lesson.ID)
	s.respondQuiz(w, r, NewHTMXResponse(), s.quizView(ctx, attempt, nil, nil))
}

func (s *Server) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	s.quizStep(w, r, func(a *core.QuizAttempt, choice string) (*core.Feedback, error) {
		return nil, a.SelectOption(choice)
	})
}

// handleQuizNext records the posted choice, if any, and advances.
func (s *Server) handleQuizNext(w http.ResponseWriter, r *http.Request) {
	s.quizStep(w, r, func(a *core.QuizAttempt, choice string) (*core.Feedback, error) {
		if choice != "" {
			if err := a.SelectOption(choice); err != nil {
				return nil, err
			}
		}
		fb, err := a.Next()
		if err != nil {
			return nil, err
		}
		return &fb, nil
	})
}

func (s *Server) handleQuizPrevious(w http.ResponseWriter, r *http.Request) {
	s.quizStep(w, r, func(a *core.QuizAttempt, _ string) (*core.Feedback, error) {
		return nil, a.Previous()
	})
}

func (s *Server) handleQuizClose(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	_ = sess.Update(func(st *session.State) error {
		st.Quiz = nil
		return nil
	})
	s.respondQuiz(w, r, NewHTMXResponse(), nil)
}

// quizStep applies step to the open attempt. A failed step leaves the
// attempt as it was and is reported inside the quiz card.
func (s *Server) quizStep(w http.ResponseWriter, r *http.Request, step func(a *core.QuizAttempt, choice string) (*core.Feedback, error)) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	choice := p.Get("choice")

	var (
		fb        *core.Feedback
		completed bool
	)
	err := sess.Update(func(st *session.State) error {
		if st.Quiz == nil {
			return errQuizClosed
		}
		wasDone := st.Quiz.State() == core.QuizCompleted
		var err error
		if fb, err = step(st.Quiz, choice); err != nil {
			return err
		}
		completed = !wasDone && st.Quiz.State() == core.QuizCompleted
		return nil
	})
	if errors.Is(err, errQuizClosed) {
		s.fail(w, r, "quiz", err, "Open the quiz first.")
		return
	}

	attempt := sess.Snapshot().Quiz
	if err != nil {
		log.FromContext(ctx).InfoContext(ctx, "Quiz step rejected", log.FieldErrorType, errorType(err), log.FieldError, err)
		s.respondQuiz(w, r, NewHTMXResponse().Status(statusFor(err)), s.quizView(ctx, attempt, nil, failure(userMessage(err))))
		return
	}

	b := NewHTMXResponse()
	if completed {
		score, total := attempt.Score(), attempt.Total()
		s.countQuizDone()
		s.deps.Activity.Record(ctx, sess.ID, amqp.KindQuizCompleted, score, total)
		log.FromContext(ctx).InfoContext(ctx, "Quiz completed", log.FieldLessonID, attempt.LessonID(), "score", score, "total", total)
		b.TriggerQuizCompleted(score, total).
			TriggerSuccessNotification(fmt.Sprintf("Quiz complete! You scored %d of %d.", score, total))
	}
	s.respondQuiz(w, r, b, s.quizView(ctx, attempt, fb, nil))
}

func (s *Server) respondQuiz(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, view *quizView) {
	if !isHTMX(r) {
		s.redirect(w, r, "/finbites")
		return
	}
	s.writeFragment(w, r, b, "quiz", view)
}

func (s *Server) selectedLesson(ctx context.Context, st session.State) (core.Lesson, error) {
	if st.SelectedLesson != "" {
		return s.deps.Catalog.Get(ctx, st.SelectedLesson)
	}
	lessons, err := s.deps.Catalog.List(ctx)
	if err != nil {
		return core.Lesson{}, err
	}
	if len(lessons) == 0 {
		return core.Lesson{}, catalog.ErrLessonNotFound
	}
	return lessons[0], nil
}

func (s *Server) quizView(ctx context.Context, a *core.QuizAttempt, fb *core.Feedback, notice *Notice) *quizView {
	if a == nil {
		return nil
	}
	view := &quizView{
		Number:    a.Index() + 1,
		Total:     a.Total(),
		Completed: a.State() == core.QuizCompleted,
		Score:     a.Score(),
		Feedback:  fb,
		Notice:    notice,
	}
	if lesson, err := s.deps.Catalog.Get(ctx, a.LessonID()); err == nil {
		view.LessonTitle = lesson.Title
	}
	if q, ok := a.Current(); ok {
		view.Question = q
		view.Chosen, _ = a.Answer(a.Index())
	}
	return view
}
