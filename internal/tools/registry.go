package tools

import (
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/axonlabs/axon/internal/schema"
)

// RouteKind says which execution path owns a declared tool name.
type RouteKind int

const (
	RouteLocal RouteKind = iota
	RouteConnector
)

// Route is one entry in the dispatch table. Connector routes carry the app
// whose connection executes the call.
type Route struct {
	Kind RouteKind
	App  string
}

// Registry merges locally implemented tools with connector-derived
// declarations into the single list a session is configured with, and
// maintains the route table the broker dispatches against. The table is
// rebuilt on every mutation, so routes always reflect the declarations
// last handed out.
type Registry struct {
	mu        sync.Mutex
	locals    []schema.Tool // registration order
	byName    map[string]schema.Tool
	apps      []string // connector app order, first set wins
	connector map[string][]*genai.FunctionDeclaration
	routes    map[string]Route
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]schema.Tool),
		connector: make(map[string][]*genai.FunctionDeclaration),
		routes:    make(map[string]Route),
	}
}

// Register adds a local tool. Registering the same name twice keeps the
// original and logs a warning instead of failing.
func (r *Registry) Register(t schema.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.byName[name]; exists {
		slog.Warn("tools: duplicate registration ignored", "tool", name)
		return
	}
	r.byName[name] = t
	r.locals = append(r.locals, t)
	r.rebuildRoutesLocked()
}

// SetConnectorDeclarations replaces app's contributed declaration set. App
// order follows the first time each app is set; replacing keeps the slot.
func (r *Registry) SetConnectorDeclarations(app string, decls []*genai.FunctionDeclaration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connector[app]; !exists {
		r.apps = append(r.apps, app)
	}
	r.connector[app] = decls
	r.rebuildRoutesLocked()
}

// RemoveConnectorDeclarations drops app's declaration set, typically on
// disconnect.
func (r *Registry) RemoveConnectorDeclarations(app string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connector[app]; !exists {
		return
	}
	delete(r.connector, app)
	for i, a := range r.apps {
		if a == app {
			r.apps = append(r.apps[:i], r.apps[i+1:]...)
			break
		}
	}
	r.rebuildRoutesLocked()
}

// Declarations returns the combined declaration list: local tools in
// registration order, then each connected app's set in app order. Local
// tools without a declaration are skipped with a warning.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*genai.FunctionDeclaration
	for _, t := range r.locals {
		decl := t.Declaration()
		if decl == nil {
			slog.Warn("tools: skipping tool without declaration", "tool", t.Name())
			continue
		}
		out = append(out, decl)
	}
	for _, app := range r.apps {
		out = append(out, r.connector[app]...)
	}
	return out
}

// Route returns the dispatch route registered for name.
func (r *Registry) Route(name string) (Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[name]
	return route, ok
}

// Local returns the locally implemented tool registered under name.
func (r *Registry) Local(name string) (schema.Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byName[name]
	return t, ok
}

// rebuildRoutesLocked recomputes the route table. Local names take
// precedence: a connector declaration that collides with a local tool is
// shadowed rather than hijacking its calls.
func (r *Registry) rebuildRoutesLocked() {
	routes := make(map[string]Route, len(r.byName))
	for name := range r.byName {
		routes[name] = Route{Kind: RouteLocal}
	}
	for _, app := range r.apps {
		for _, decl := range r.connector[app] {
			if _, taken := routes[decl.Name]; taken {
				slog.Debug("tools: connector declaration shadowed by local tool", "tool", decl.Name, "app", app)
				continue
			}
			routes[decl.Name] = Route{Kind: RouteConnector, App: app}
		}
	}
	r.routes = routes
}
