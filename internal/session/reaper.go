package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Reaper removes idle sessions on a cron schedule such as "@every 10m".
type Reaper struct {
	cron  *cron.Cron
	store *Store
}

func NewReaper(store *Store, schedule string) (*Reaper, error) {
	c := cron.New()
	r := &Reaper{cron: c, store: store}
	if _, err := c.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid reap schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Reaper) run() {
	removed := r.store.Reap()
	slog.Debug("Session reap completed", "removed", removed, "live", r.store.Len())
}

// Start runs the schedule in the background.
func (r *Reaper) Start() { r.cron.Start() }

// Stop halts the schedule and waits for a running reap to finish or ctx to end.
func (r *Reaper) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
