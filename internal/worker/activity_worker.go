package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"financify/internal/amqp"
	"financify/internal/cache"
)

// ActivityWorker keeps running tallies of the activity events it consumes.
// Redelivered events are recognised by ID and counted once.
type ActivityWorker struct {
	mu       sync.Mutex
	byKind   map[amqp.EventKind]int
	items    map[amqp.EventKind]int
	sessions map[string]struct{}
	first    time.Time
	last     time.Time

	seen *cache.LRUCache[struct{}]
}

// Report is a snapshot of the tallies.
type Report struct {
	Events    int
	Sessions  int
	ByKind    map[amqp.EventKind]int
	Items     map[amqp.EventKind]int
	FirstSeen time.Time
	LastSeen  time.Time
}

// NewActivityWorker remembers up to dedupeSize event IDs for dedupeTTL.
func NewActivityWorker(dedupeSize int, dedupeTTL time.Duration) *ActivityWorker {
	return &ActivityWorker{
		byKind:   make(map[amqp.EventKind]int),
		items:    make(map[amqp.EventKind]int),
		sessions: make(map[string]struct{}),
		seen:     cache.NewLRUCache[struct{}](dedupeSize, dedupeTTL),
	}
}

// Seen exposes the dedupe cache so it can be registered for cleanup.
func (w *ActivityWorker) Seen() *cache.LRUCache[struct{}] { return w.seen }

// HandleActivity implements the consumer callback for amqp.Client.ConsumeActivity.
func (w *ActivityWorker) HandleActivity(ctx context.Context, ev *amqp.ActivityEvent) error {
	if _, dup := w.seen.Get(ev.ID); dup {
		slog.DebugContext(ctx, "Skipping duplicate activity event", "id", ev.ID, "kind", ev.Kind)
		return nil
	}
	w.seen.Set(ev.ID, struct{}{})

	w.mu.Lock()
	defer w.mu.Unlock()

	w.byKind[ev.Kind]++
	w.items[ev.Kind] += ev.Count
	if ev.SessionID != "" {
		w.sessions[ev.SessionID] = struct{}{}
	}
	if w.first.IsZero() || ev.Timestamp.Before(w.first) {
		w.first = ev.Timestamp
	}
	if ev.Timestamp.After(w.last) {
		w.last = ev.Timestamp
	}

	slog.DebugContext(ctx, "Activity event counted",
		"id", ev.ID,
		"kind", ev.Kind,
		"count", ev.Count)
	return nil
}

// Snapshot returns a copy of the current tallies.
func (w *ActivityWorker) Snapshot() Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := Report{
		Sessions:  len(w.sessions),
		ByKind:    make(map[amqp.EventKind]int, len(w.byKind)),
		Items:     make(map[amqp.EventKind]int, len(w.items)),
		FirstSeen: w.first,
		LastSeen:  w.last,
	}
	for k, v := range w.byKind {
		r.ByKind[k] = v
		r.Events += v
	}
	for k, v := range w.items {
		r.Items[k] = v
	}
	return r
}

// LogReport writes the current tallies to the log.
func (w *ActivityWorker) LogReport(ctx context.Context) {
	r := w.Snapshot()
	if r.Events == 0 {
		slog.InfoContext(ctx, "Activity report: no events yet")
		return
	}

	kinds := make([]string, 0, len(r.ByKind))
	for k := range r.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	args := []any{"events", r.Events, "sessions", r.Sessions, "last_seen", r.LastSeen.Format(time.RFC3339)}
	for _, k := range kinds {
		args = append(args, k, r.ByKind[amqp.EventKind(k)])
	}
	slog.InfoContext(ctx, "Activity report", args...)
}
