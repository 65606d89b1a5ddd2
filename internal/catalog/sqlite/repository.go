// Package sqlite serves the lesson catalog from an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financify/internal/catalog"
	"financify/internal/core"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

// Ensure interface conformance
var _ catalog.LessonReader = (*Repository)(nil)

// Open creates the database file if needed and migrates it.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Lesson catalog opened", "path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const listLessons = `SELECT id, title, creator_label, image_ref, audio_ref FROM lessons ORDER BY position, id`

const getLesson = `SELECT id, title, creator_label, image_ref, audio_ref FROM lessons WHERE id = ?`

const listQuestions = `
SELECT q.position, q.prompt, q.correct_option, o.label
FROM quiz_questions q
JOIN quiz_options o ON o.lesson_id = q.lesson_id AND o.question_position = q.position
WHERE q.lesson_id = ?
ORDER BY q.position, o.position`

func (r *Repository) List(ctx context.Context) ([]core.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, listLessons)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []core.Lesson
	for rows.Next() {
		var l core.Lesson
		if err := rows.Scan(&l.ID, &l.Title, &l.CreatorLabel, &l.ImageRef, &l.AudioRef); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	for i := range lessons {
		quiz, err := r.questions(ctx, lessons[i].ID)
		if err != nil {
			return nil, err
		}
		lessons[i].Quiz = quiz
	}
	return lessons, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Lesson, error) {
	var l core.Lesson
	err := r.db.QueryRowContext(ctx, getLesson, id).
		Scan(&l.ID, &l.Title, &l.CreatorLabel, &l.ImageRef, &l.AudioRef)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Lesson{}, fmt.Errorf("%w: %s", catalog.ErrLessonNotFound, id)
	}
	if err != nil {
		return core.Lesson{}, fmt.Errorf("get lesson %s: %w", id, err)
	}

	if l.Quiz, err = r.questions(ctx, id); err != nil {
		return core.Lesson{}, err
	}
	return l, nil
}

func (r *Repository) questions(ctx context.Context, lessonID string) ([]core.QuizQuestion, error) {
	rows, err := r.db.QueryContext(ctx, listQuestions, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list questions for %s: %w", lessonID, err)
	}
	defer rows.Close()

	var (
		quiz    []core.QuizQuestion
		lastPos = -1
	)
	for rows.Next() {
		var (
			pos            int
			prompt, answer string
			option         string
		)
		if err := rows.Scan(&pos, &prompt, &answer, &option); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if pos != lastPos {
			quiz = append(quiz, core.QuizQuestion{Prompt: prompt, CorrectOption: answer})
			lastPos = pos
		}
		q := &quiz[len(quiz)-1]
		q.Options = append(q.Options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return quiz, nil
}
