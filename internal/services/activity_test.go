package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"financify/internal/amqp"
)

type recordingPublisher struct {
	mu      sync.Mutex
	events  []*amqp.ActivityEvent
	err     error
	release chan struct{}
}

func (p *recordingPublisher) PublishActivity(ctx context.Context, ev *amqp.ActivityEvent) error {
	if p.release != nil {
		<-p.release
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []*amqp.ActivityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.ActivityEvent(nil), p.events...)
}

func closeActivity(t *testing.T, svc *ActivityService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestActivityRecord(t *testing.T) {
	p := &recordingPublisher{}
	svc := NewActivityService(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, "s1", amqp.KindLedgerCommitted, 3, 0)
	closeActivity(t, svc)

	events := p.published()
	if len(events) != 1 {
		t.Fatalf("expected one event even with a canceled request context, got %d", len(events))
	}
	ev := events[0]
	if ev.SessionID != "s1" || ev.Kind != amqp.KindLedgerCommitted || ev.Count != 3 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestActivityRecordSwallowsErrors(t *testing.T) {
	p := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc := NewActivityService(p)
	svc.Record(context.Background(), "s1", amqp.KindQuizCompleted, 1, 2)
	closeActivity(t, svc)
	if len(p.published()) != 1 {
		t.Fatal("publisher should have been called")
	}
}

func TestActivityRecordDoesNotWaitForBroker(t *testing.T) {
	p := &recordingPublisher{release: make(chan struct{})}
	svc := NewActivityService(p)

	start := time.Now()
	for i := 0; i < activityBuffer+10; i++ {
		svc.Record(context.Background(), "s1", amqp.KindAdvisorAnswered, i, 0)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Record blocked on a stalled broker for %s", elapsed)
	}
	if svc.Dropped() == 0 {
		t.Fatal("expected events beyond the queue bound to be dropped")
	}

	close(p.release)
	closeActivity(t, svc)
	if got := int64(len(p.published())) + svc.Dropped(); got != activityBuffer+10 {
		t.Fatalf("published+dropped=%d want %d", got, activityBuffer+10)
	}

	svc.Record(context.Background(), "s1", amqp.KindAdvisorAnswered, 0, 0)
}

func TestActivityDisabled(t *testing.T) {
	svc := NewActivityService(nil)
	if svc.Enabled() {
		t.Fatal("nil publisher should disable the service")
	}
	svc.Record(context.Background(), "s1", amqp.KindSessionStarted, 0, 0)
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	var nilSvc *ActivityService
	nilSvc.Record(context.Background(), "s1", amqp.KindSessionStarted, 0, 0)
}
