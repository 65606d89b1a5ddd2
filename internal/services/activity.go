package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"financify/internal/amqp"
)

// activityBuffer bounds the events waiting for the broker.
const activityBuffer = 256

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishActivity(ctx context.Context, ev *amqp.ActivityEvent) error
}

// ActivityService records anonymous activity events. Events are queued and
// published by a single goroutine; when the queue is full they are dropped.
// Publishing never fails or delays the caller.
type ActivityService struct {
	publisher EventPublisher
	timeout   time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan *amqp.ActivityEvent
	done    chan struct{}
	dropped atomic.Int64
}

// NewActivityService returns a service that publishes through p. A nil p
// disables publishing.
func NewActivityService(p EventPublisher) *ActivityService {
	s := &ActivityService{publisher: p, timeout: 2 * time.Second}
	if p != nil {
		s.queue = make(chan *amqp.ActivityEvent, activityBuffer)
		s.done = make(chan struct{})
		go s.run()
	}
	return s
}

// Enabled reports whether events leave the process.
func (s *ActivityService) Enabled() bool {
	return s != nil && s.publisher != nil
}

// Dropped is the number of events discarded because the queue was full.
func (s *ActivityService) Dropped() int64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Record queues an event for sessionID.
func (s *ActivityService) Record(ctx context.Context, sessionID string, kind amqp.EventKind, count, total int) {
	if !s.Enabled() {
		return
	}
	ev := amqp.NewActivityEvent(sessionID, kind, count, total)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
		slog.WarnContext(ctx, "Activity queue full, dropping event", "kind", kind)
	}
}

func (s *ActivityService) run() {
	defer close(s.done)
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.publisher.PublishActivity(ctx, ev); err != nil {
			slog.Warn("Failed to publish activity event", "kind", ev.Kind, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are published
// or ctx is done.
func (s *ActivityService) Close(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
