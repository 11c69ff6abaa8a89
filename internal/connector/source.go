package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// NotConnectedError reports an operation that requires an app connection
// which does not exist.
type NotConnectedError struct {
	App string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("app %q is not connected", e.App)
}

// API is the subset of the backend client the Source depends on.
type API interface {
	ListTools(ctx context.Context, entityID, app string, actions, tags []string) ([]RemoteTool, error)
	ExecuteAction(ctx context.Context, action, connectionID, entityID string, args map[string]any) (map[string]any, error)
}

var _ API = (*Client)(nil)

// Source turns connected apps into declaration lists and executes their
// actions remotely. Declaration lists are cached per (app, actions, tags)
// key; entries are never invalidated automatically — only ClearCache drops
// them, so backend-side changes to an app's actions are invisible until then.
type Source struct {
	api      API
	store    *Store
	entityID string

	mu    sync.Mutex
	cache map[string][]*genai.FunctionDeclaration
}

// NewSource creates a Source for entityID backed by api and store.
func NewSource(api API, store *Store, entityID string) *Source {
	return &Source{
		api:      api,
		store:    store,
		entityID: entityID,
		cache:    make(map[string][]*genai.FunctionDeclaration),
	}
}

// Connected reports whether app has an established connection.
func (s *Source) Connected(app string) bool { return s.store.Connected(app) }

// Tools returns the declarations for one connected app, narrowed by the
// action and tag filters. The cache key incorporates the filter lists as
// passed; callers keep their ordering consistent or accept cache misses.
func (s *Source) Tools(ctx context.Context, app string, actions, tags []string) ([]*genai.FunctionDeclaration, error) {
	if !s.store.Connected(app) {
		return nil, &NotConnectedError{App: app}
	}

	key := cacheKey(app, actions, tags)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	remote, err := s.api.ListTools(ctx, s.entityID, app, actions, tags)
	if err != nil {
		return nil, err
	}
	decls := unwrapDeclarations(app, remote)

	// Single assignment after the call returns; a concurrent fetch for the
	// same key wins deterministically by arriving first.
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		decls = cached
	} else {
		s.cache[key] = decls
	}
	s.mu.Unlock()

	return decls, nil
}

// ToolsForApps aggregates Tools across apps. Unconnected apps contribute an
// empty list (logged, not an error); per-app order is preserved without
// interleaving.
func (s *Source) ToolsForApps(ctx context.Context, apps []string) ([]*genai.FunctionDeclaration, error) {
	var all []*genai.FunctionDeclaration
	for _, app := range apps {
		if !s.store.Connected(app) {
			slog.Info("connector: skipping unconnected app", "app", app)
			continue
		}
		decls, err := s.Tools(ctx, app, nil, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, decls...)
	}
	return all, nil
}

// ClearCache drops every cached declaration set unconditionally.
func (s *Source) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string][]*genai.FunctionDeclaration)
	s.mu.Unlock()
}

// CacheSize returns the number of cached filter combinations.
func (s *Source) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Execute runs one remote action for a connected app and returns the
// backend's output field, or the whole response body when the field is
// absent.
func (s *Source) Execute(ctx context.Context, app, action string, args map[string]any) (any, error) {
	conn, ok := s.store.Get(app)
	if !ok || !conn.Connected {
		return nil, &NotConnectedError{App: app}
	}

	result, err := s.api.ExecuteAction(ctx, action, conn.ConnectionID, s.entityID, args)
	if err != nil {
		return nil, err
	}
	if out, ok := result["output"]; ok && out != nil {
		return out, nil
	}
	return result, nil
}

func cacheKey(app string, actions, tags []string) string {
	return app + "|" + strings.Join(actions, ",") + "|" + strings.Join(tags, ",")
}

// unwrapDeclarations converts the provider envelope into the common
// declaration schema. Tools without a usable name are dropped with a warning.
func unwrapDeclarations(app string, remote []RemoteTool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(remote))
	for _, rt := range remote {
		if rt.Function.Name == "" {
			slog.Warn("connector: dropping unnamed tool", "app", app)
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        rt.Function.Name,
			Description: rt.Function.Description,
			Parameters:  schemaFromMap(rt.Function.Parameters),
		})
	}
	return decls
}
