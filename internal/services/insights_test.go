package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingGenerator struct {
	calls   atomic.Int32
	reply   string
	err     error
	delay   time.Duration
	started chan struct{}
	release chan struct{}
}

func (g *countingGenerator) GenerateText(ctx context.Context, _ string) (string, error) {
	g.calls.Add(1)
	if g.started != nil {
		close(g.started)
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.reply, g.err
}

func TestFormatTips(t *testing.T) {
	got := FormatTips("### Tax\n**ELSS** has a 3 year lock-in.\n")
	want := "##### Tax\nELSS has a 3 year lock-in."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTipsAreMemoized(t *testing.T) {
	g := &countingGenerator{reply: "### Tips", delay: 20 * time.Millisecond}
	svc := NewInsightsService(g, 0, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tips, err := svc.Tips(context.Background()); err != nil || tips != "##### Tips" {
				t.Errorf("unexpected result %q %v", tips, err)
			}
		}()
	}
	wg.Wait()

	if _, err := svc.Tips(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := g.calls.Load(); n != 1 {
		t.Fatalf("expected one oracle call, got %d", n)
	}
}

func TestTipsErrorsAreNotCached(t *testing.T) {
	g := &countingGenerator{err: errors.New("quota")}
	svc := NewInsightsService(g, 0, time.Second)

	if _, err := svc.Tips(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	g.err = nil
	g.reply = "ok"
	tips, err := svc.Tips(context.Background())
	if err != nil || tips != "ok" {
		t.Fatalf("expected recovery, got %q %v", tips, err)
	}
	if g.calls.Load() != 2 {
		t.Fatalf("expected two calls, got %d", g.calls.Load())
	}
	if svc.Cache().Size() != 1 {
		t.Fatal("successful tips should be cached")
	}
}

func TestTipsSurviveFirstCallerCancel(t *testing.T) {
	g := &countingGenerator{
		reply:   "Invest early",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewInsightsService(g, 0, 5*time.Second)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Tips(firstCtx)
		firstErr <- err
	}()
	<-g.started

	type result struct {
		tips string
		err  error
	}
	second := make(chan result, 1)
	go func() {
		tips, err := svc.Tips(context.Background())
		second <- result{tips, err}
	}()

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first caller to be canceled, got %v", err)
	}

	close(g.release)
	got := <-second
	if got.err != nil || got.tips != "Invest early" {
		t.Fatalf("expected shared tips, got %q %v", got.tips, got.err)
	}
	if n := g.calls.Load(); n != 1 {
		t.Fatalf("expected one oracle call, got %d", n)
	}
	if _, ok := svc.Cache().Get(InsightsPrompt); !ok {
		t.Fatal("tips should be cached after the shared call")
	}
}
