package cron

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/axonlabs/axon/internal/connector"
)

func newStore(t *testing.T) *connector.Store {
	t.Helper()
	s := connector.NewStore(filepath.Join(t.TempDir(), "connections.json"))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunOnceSweepsExpiredAttempts(t *testing.T) {
	store := newStore(t)
	store.TrackPending(connector.Pending{
		App:          "gmail",
		ConnectionID: "old",
		StartedAt:    time.Now().UTC().Add(-time.Hour),
	})
	store.TrackPending(connector.Pending{
		App:          "calendar",
		ConnectionID: "fresh",
	})

	j := NewJanitor(store, "@every 10m", 30*time.Minute)
	j.RunOnce()

	if _, ok := store.PendingByID("old"); ok {
		t.Error("expired attempt survived the sweep")
	}
	if _, ok := store.PendingByID("fresh"); !ok {
		t.Error("fresh attempt must survive the sweep")
	}
}

func TestRunOnceLeavesConnectionsAlone(t *testing.T) {
	store := newStore(t)
	store.MarkConnected("gmail", "conn-1")

	NewJanitor(store, "@every 10m", time.Nanosecond).RunOnce()

	if !store.Connected("gmail") {
		t.Error("sweep must never touch established connections")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(newStore(t), "not a schedule", time.Minute)
	if err := j.Start(context.Background()); err == nil {
		t.Fatal("expected error for unparseable schedule")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	store := newStore(t)
	store.TrackPending(connector.Pending{
		App:          "gmail",
		ConnectionID: "old",
		StartedAt:    time.Now().UTC().Add(-time.Hour),
	})
	j := NewJanitor(store, "@every 1h", 30*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Start(ctx) }()

	// The startup sweep runs before the scheduler blocks.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := store.PendingByID("old"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup sweep did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
