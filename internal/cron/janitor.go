// Package cron runs axon's scheduled maintenance. The only recurring job
// today is the pending-attempt sweep: OAuth attempts that were initiated but
// never completed are dropped after a TTL so the connection table does not
// accumulate dead entries. Cached connector declarations are deliberately
// not touched here; they live until an explicit refresh.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/axonlabs/axon/internal/connector"
)

// Janitor periodically sweeps expired pending OAuth attempts from the store.
type Janitor struct {
	store    *connector.Store
	schedule string
	ttl      time.Duration
	robfig   *robfigcron.Cron
}

// NewJanitor creates a Janitor sweeping attempts older than ttl on the given
// robfig schedule (e.g. "@every 10m").
func NewJanitor(store *connector.Store, schedule string, ttl time.Duration) *Janitor {
	return &Janitor{
		store:    store,
		schedule: schedule,
		ttl:      ttl,
		robfig:   robfigcron.New(),
	}
}

// Start sweeps once immediately, then on schedule until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.robfig.AddFunc(j.schedule, j.RunOnce); err != nil {
		return fmt.Errorf("cron: bad janitor schedule %q: %w", j.schedule, err)
	}

	j.RunOnce()
	j.robfig.Start()
	slog.Info("cron: janitor started", "schedule", j.schedule, "ttl", j.ttl)

	<-ctx.Done()

	<-j.robfig.Stop().Done()
	return ctx.Err()
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce() {
	expired := j.store.SweepPending(j.ttl)
	for _, p := range expired {
		slog.Info("cron: expired pending attempt",
			"app", p.App,
			"connectionId", p.ConnectionID,
			"age", time.Since(p.StartedAt).Round(time.Second))
	}
}
