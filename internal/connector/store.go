package connector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/axonlabs/axon/internal/events"
)

// Event types emitted by the Store. The connection_success name is the wire
// contract the page already understands from the OAuth completion message.
const (
	EventConnected    = "connection_success"
	EventDisconnected = "connection_removed"
)

// Event describes one connection-state change.
type Event struct {
	Type         string `json:"type"`
	App          string `json:"app"`
	ConnectionID string `json:"connectionId"`
}

// Connection is the durable per-app connection state. Created on successful
// OAuth completion, destroyed only on explicit disconnect.
type Connection struct {
	App          string    `json:"app"`
	Connected    bool      `json:"connected"`
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
}

// Pending is an initiated OAuth attempt that has not completed yet. Pending
// entries are working state, not connections; the janitor may expire them.
type Pending struct {
	App          string    `json:"app"`
	ConnectionID string    `json:"connectionId"`
	RedirectURL  string    `json:"redirectUrl"`
	StartedAt    time.Time `json:"startedAt"`
}

type storeFile struct {
	Version     int                   `json:"version"`
	Connections map[string]Connection `json:"connections"`
	Pending     map[string]Pending    `json:"pending"`
}

// Store is the connection-state table, persisted as JSON and rehydrated at
// startup so connections survive restarts.
type Store struct {
	path    string
	emitter *events.Emitter[Event]

	mu      sync.Mutex
	conns   map[string]Connection // keyed by app name
	pending map[string]Pending    // keyed by connection id
}

// NewStore creates a Store persisting to path. Call Load before first use.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		emitter: events.NewEmitter[Event](),
		conns:   make(map[string]Connection),
		pending: make(map[string]Pending),
	}
}

// Load rehydrates the table from disk. A missing file is a fresh table.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read connections %s: %w", s.path, err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse connections %s: %w", s.path, err)
	}
	if f.Connections != nil {
		s.conns = f.Connections
	}
	if f.Pending != nil {
		s.pending = f.Pending
	}
	return nil
}

// Subscribe registers fn for connection-state events.
func (s *Store) Subscribe(fn func(Event)) func() {
	return s.emitter.Subscribe(fn)
}

// Connected reports whether app has an established connection.
func (s *Store) Connected(app string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[app]
	return ok && c.Connected
}

// Get returns the connection state for app.
func (s *Store) Get(app string) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[app]
	return c, ok
}

// Apps returns the names of all connected apps, sorted for determinism.
func (s *Store) Apps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	apps := make([]string, 0, len(s.conns))
	for app, c := range s.conns {
		if c.Connected {
			apps = append(apps, app)
		}
	}
	sort.Strings(apps)
	return apps
}

// MarkConnected records a completed OAuth connection for app, persists the
// table, and emits a connection_success event. Any pending attempt with the
// same connection id is resolved.
func (s *Store) MarkConnected(app, connectionID string) Connection {
	s.mu.Lock()
	c := Connection{
		App:          app,
		Connected:    true,
		ConnectionID: connectionID,
		ConnectedAt:  time.Now().UTC(),
	}
	s.conns[app] = c
	delete(s.pending, connectionID)
	s.saveLocked()
	s.mu.Unlock()

	s.emitter.Emit(Event{Type: EventConnected, App: app, ConnectionID: connectionID})
	return c
}

// Disconnect removes app's connection state and emits a removal event.
// Returns the removed connection so the caller can revoke it on the backend.
func (s *Store) Disconnect(app string) (Connection, bool) {
	s.mu.Lock()
	c, ok := s.conns[app]
	if ok {
		delete(s.conns, app)
		s.saveLocked()
	}
	s.mu.Unlock()

	if ok {
		s.emitter.Emit(Event{Type: EventDisconnected, App: app, ConnectionID: c.ConnectionID})
	}
	return c, ok
}

// TrackPending records an initiated OAuth attempt.
func (s *Store) TrackPending(p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now().UTC()
	}
	s.pending[p.ConnectionID] = p
	s.saveLocked()
}

// PendingByID returns the pending attempt for connectionID.
func (s *Store) PendingByID(connectionID string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[connectionID]
	return p, ok
}

// SweepPending removes and returns attempts older than ttl.
func (s *Store) SweepPending(ttl time.Duration) []Pending {
	cutoff := time.Now().UTC().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []Pending
	for id, p := range s.pending {
		if p.StartedAt.Before(cutoff) {
			expired = append(expired, p)
			delete(s.pending, id)
		}
	}
	if len(expired) > 0 {
		s.saveLocked()
		sort.Slice(expired, func(i, j int) bool { return expired[i].StartedAt.Before(expired[j].StartedAt) })
	}
	return expired
}

// saveLocked persists the table. Caller must hold s.mu.
func (s *Store) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		slog.Error("connector: create state dir failed", "err", err)
		return
	}
	f := storeFile{Version: 1, Connections: s.conns, Pending: s.pending}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		slog.Error("connector: marshal connections failed", "err", err)
		return
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		slog.Error("connector: write connections failed", "path", s.path, "err", err)
	}
}
