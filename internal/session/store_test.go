package session

import (
	"context"
	"testing"
	"time"
)

func TestStoreLifecycle(t *testing.T) {
	st := NewStore(time.Hour)
	s := st.Create()
	if s.ID == "" {
		t.Fatal("session ID should be set")
	}
	if other := st.Create(); other.ID == s.ID {
		t.Fatal("session IDs should be unique")
	}
	if got, ok := st.Get(s.ID); !ok || got != s {
		t.Fatal("expected to find the session")
	}

	st.Delete(s.ID)
	if _, ok := st.Get(s.ID); ok {
		t.Fatal("deleted session should be gone")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", st.Len())
	}
}

func TestStoreIdleExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	st := NewStore(30 * time.Minute)
	st.now = func() time.Time { return now }

	idle := st.Create()
	busy := st.Create()
	active := st.Create()

	now = now.Add(20 * time.Minute)
	st.Get(active.ID)
	_ = busy.BeginRequest()

	now = now.Add(20 * time.Minute)
	if removed := st.Reap(); removed != 1 {
		t.Fatalf("expected 1 reaped session, got %d", removed)
	}
	if _, ok := st.Get(idle.ID); ok {
		t.Fatal("idle session should be reaped")
	}
	if _, ok := st.Get(busy.ID); !ok {
		t.Fatal("session with a running request must survive")
	}
	if _, ok := st.Get(active.ID); !ok {
		t.Fatal("recently used session must survive")
	}
}

func TestStoreGetExpiresLazily(t *testing.T) {
	now := time.Now()
	st := NewStore(time.Minute)
	st.now = func() time.Time { return now }
	s := st.Create()

	now = now.Add(2 * time.Minute)
	if _, ok := st.Get(s.ID); ok {
		t.Fatal("expired session should not be returned")
	}
	if st.Len() != 0 {
		t.Fatal("expired session should be removed on access")
	}
}

func TestStoreNoExpiry(t *testing.T) {
	now := time.Now()
	st := NewStore(0)
	st.now = func() time.Time { return now }
	s := st.Create()
	now = now.Add(1000 * time.Hour)
	if _, ok := st.Get(s.ID); !ok {
		t.Fatal("idle <= 0 should disable expiry")
	}
}

func TestReaper(t *testing.T) {
	if _, err := NewReaper(NewStore(time.Minute), "not a schedule"); err == nil {
		t.Fatal("expected invalid schedule error")
	}

	r, err := NewReaper(NewStore(time.Minute), "@every 1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
