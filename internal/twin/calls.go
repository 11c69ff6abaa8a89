package twin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/axonlabs/axon/internal/schema"
)

// Handler is one callable the twin backend may invoke.
type Handler struct {
	Description string
	Schema      map[string]any
	Fn          func(ctx context.Context, args map[string]any) (any, error)
}

// RawCall is one entry of an inbound batch before argument decoding.
// Arguments may be a parsed object or a JSON-encoded string.
type RawCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// Calls is the twin path's own handler table. It is populated by explicit
// registration and deliberately separate from the session tool registry:
// the backend calls only what was announced to it here.
type Calls struct {
	mu       sync.Mutex
	handlers map[string]Handler
	order    []string
}

// NewCalls returns an empty handler table.
func NewCalls() *Calls {
	return &Calls{handlers: make(map[string]Handler)}
}

// Register adds a handler under name. Re-registering a name keeps the
// original, matching the session registry's behavior.
func (c *Calls) Register(name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[name]; exists {
		slog.Warn("twin: duplicate handler registration ignored", "handler", name)
		return
	}
	c.handlers[name] = h
	c.order = append(c.order, name)
}

// Descriptors returns the handler set in registration order, in the shape
// the announce payload carries.
func (c *Calls) Descriptors() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.order))
	for _, name := range c.order {
		h := c.handlers[name]
		out = append(out, map[string]any{
			"name":        name,
			"description": h.Description,
			"schema":      h.Schema,
		})
	}
	return out
}

// ExecuteBatch runs every call of one inbound batch concurrently and
// returns one result per call, in call order. The batch is a join-all
// barrier: all results exist before anything is replied, and one failing
// call leaves the others untouched.
func (c *Calls) ExecuteBatch(ctx context.Context, calls []RawCall) []schema.CallResult {
	results := make([]schema.CallResult, len(calls))

	g, ctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = c.run(ctx, call)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // run never returns an error

	return results
}

// run executes one call. Every failure mode lands in an error-status
// result, panics included.
func (c *Calls) run(ctx context.Context, call RawCall) (result schema.CallResult) {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("twin: handler panicked", "handler", call.Name, "panic", r)
			result = schema.Failure(id, call.Name, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	c.mu.Lock()
	h, ok := c.handlers[call.Name]
	c.mu.Unlock()
	if !ok {
		return schema.Failure(id, call.Name, "Tool not found: "+call.Name)
	}

	args, err := schema.DecodeArgs(call.Arguments)
	if err != nil {
		return schema.Failure(id, call.Name, err.Error())
	}

	out, err := h.Fn(ctx, args)
	if err != nil {
		slog.Error("twin: handler failed", "handler", call.Name, "err", err)
		return schema.Failure(id, call.Name, err.Error())
	}
	return schema.Success(id, call.Name, out)
}

// ParseToolCalls extracts the tool-call batch from a backend reply, if the
// reply carries one. Entries without a name are dropped.
func ParseToolCalls(reply map[string]any) []RawCall {
	payload, _ := reply["payload"].(map[string]any)
	if payload == nil || payload["type"] != "tool_call" {
		return nil
	}
	list, _ := payload["calls"].([]any)
	calls := make([]RawCall, 0, len(list))
	for _, item := range list {
		m, _ := item.(map[string]any)
		if m == nil {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			slog.Warn("twin: dropping tool call without name")
			continue
		}
		id, _ := m["id"].(string)
		calls = append(calls, RawCall{ID: id, Name: name, Arguments: m["arguments"]})
	}
	return calls
}

// WireResults maps canonical results onto the twin reply field names. This
// path says status/result/error where the session path says output/error;
// the difference exists only here, at the wire boundary.
func WireResults(results []schema.CallResult) []map[string]any {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		entry := map[string]any{
			"id":     r.ID,
			"name":   r.Name,
			"status": string(r.Status),
		}
		if r.Status == schema.StatusSuccess {
			entry["result"] = r.Output
		} else {
			entry["error"] = r.Error
		}
		out[i] = entry
	}
	return out
}

// HandleBatch executes an inbound batch and sends the single batched reply
// through the bridge.
func (c *Calls) HandleBatch(ctx context.Context, bridge *Bridge, calls []RawCall) error {
	results := c.ExecuteBatch(ctx, calls)
	_, err := bridge.send(ctx, map[string]any{
		"type":    "tool_result",
		"results": WireResults(results),
	})
	return err
}
