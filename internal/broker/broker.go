// Package broker routes tool calls to their executors and shapes every
// outcome into a result envelope. A call either completes with a
// success-status result or fails into an error-status result; nothing a
// single call does can abort the turn that carried it.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/axonlabs/axon/internal/schema"
	"github.com/axonlabs/axon/internal/tools"
)

// appPrefix captures the app-name prefix of connector-style call names.
var appPrefix = regexp.MustCompile(`^([a-z]+)_`)

// ConnectorExecutor runs calls routed to a connected app.
type ConnectorExecutor interface {
	Connected(app string) bool
	Execute(ctx context.Context, app, action string, args map[string]any) (any, error)
}

// Registry is the broker's view of the declaration registry.
type Registry interface {
	Route(name string) (tools.Route, bool)
	Local(name string) (schema.Tool, bool)
}

// Broker dispatches one call at a time as the session delivers them. Calls
// are independent; any number may be in flight concurrently.
type Broker struct {
	registry  Registry
	connector ConnectorExecutor
}

// New creates a Broker. connector may be nil when no connector backend is
// configured; every call then resolves against local tools only.
func New(registry Registry, connector ConnectorExecutor) *Broker {
	return &Broker{registry: registry, connector: connector}
}

// Dispatch resolves and executes call. The result is always well-formed:
// executor errors, unknown names, and even panicking handlers land in an
// error-status envelope instead of propagating.
func (b *Broker) Dispatch(ctx context.Context, call schema.CallRequest) (result schema.CallResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("broker: handler panicked", "tool", call.Name, "panic", r)
			result = schema.Failure(call.ID, call.Name, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	if call.Name == "" {
		return schema.Failure(call.ID, call.Name, "Tool call missing name")
	}

	if app, ok := b.resolveApp(call.Name); ok {
		if b.connector != nil && b.connector.Connected(app) {
			return b.executeConnector(ctx, app, call)
		}
		// The name claims an app that has no connection. Prefix matching
		// alone is not enough to own the call: local lookup still applies.
		slog.Warn("broker: app not connected, falling back to local tools", "tool", call.Name, "app", app)
	}

	return b.executeLocal(ctx, call)
}

// resolveApp names the app that would execute call name remotely. The route
// table decided at declaration time wins; names it does not know fall back
// to lexical prefix extraction.
func (b *Broker) resolveApp(name string) (string, bool) {
	if route, ok := b.registry.Route(name); ok {
		if route.Kind == tools.RouteLocal {
			return "", false
		}
		return route.App, true
	}
	if m := appPrefix.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	return "", false
}

func (b *Broker) executeConnector(ctx context.Context, app string, call schema.CallRequest) schema.CallResult {
	slog.Debug("broker: dispatching to connector", "tool", call.Name, "app", app)
	out, err := b.connector.Execute(ctx, app, call.Name, call.Args)
	if err != nil {
		slog.Error("broker: connector call failed", "tool", call.Name, "app", app, "err", err)
		return schema.Failure(call.ID, call.Name, err.Error())
	}
	return schema.Success(call.ID, call.Name, out)
}

func (b *Broker) executeLocal(ctx context.Context, call schema.CallRequest) schema.CallResult {
	tool, ok := b.registry.Local(call.Name)
	if !ok {
		// A name nothing owns is a reportable outcome, not a fault.
		return schema.Failure(call.ID, call.Name, "Tool not found: "+call.Name)
	}

	slog.Debug("broker: dispatching to local tool", "tool", call.Name)
	out, err := tool.Execute(ctx, call.Args)
	if err != nil {
		slog.Error("broker: local tool failed", "tool", call.Name, "err", err)
		return schema.Failure(call.ID, call.Name, err.Error())
	}
	return schema.Success(call.ID, call.Name, out)
}
