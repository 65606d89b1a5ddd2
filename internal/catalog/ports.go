// Package catalog describes the read-only lesson catalog behind Fin-Bites.
package catalog

import (
	"context"
	"errors"

	"financify/internal/core"
)

var ErrLessonNotFound = errors.New("lesson not found")

// LessonReader lists lessons in display order and fetches one by ID.
type LessonReader interface {
	List(ctx context.Context) ([]core.Lesson, error)
	Get(ctx context.Context, id string) (core.Lesson, error)
}
