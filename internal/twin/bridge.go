package twin

import (
	"context"
	"sync"
	"time"
)

// Memory record types the backend distinguishes.
const (
	MemoryPreference = "preference"
	MemoryActivity   = "activity"
	MemoryContext    = "context"
)

// RetrieveOptions narrows a memory query. Zero fields take the backend
// paging defaults.
type RetrieveOptions struct {
	Limit         int
	Offset        int
	SortBy        string
	SortDirection string
}

// wire fills in the defaults and returns the options as sent to the
// backend. Only fields the caller set override them.
func (o RetrieveOptions) wire() map[string]any {
	out := map[string]any{
		"limit":         10,
		"offset":        0,
		"sortBy":        "timestamp",
		"sortDirection": "desc",
	}
	if o.Limit > 0 {
		out["limit"] = o.Limit
	}
	if o.Offset > 0 {
		out["offset"] = o.Offset
	}
	if o.SortBy != "" {
		out["sortBy"] = o.SortBy
	}
	if o.SortDirection != "" {
		out["sortDirection"] = o.SortDirection
	}
	return out
}

// API is the part of the Client the bridge uses.
type API interface {
	Init(ctx context.Context, userID string) (string, error)
	Message(ctx context.Context, contextID string, payload, metadata map[string]any) (map[string]any, error)
}

var _ API = (*Client)(nil)

// Bridge is the memory interface the rest of the process uses: store,
// retrieve, delete, and type-scoped clear against the twin backend. It is
// append-only from this side; nothing here mutates records in place. No
// operation retries — every failure surfaces once, to the immediate caller.
type Bridge struct {
	api    API
	userID string

	mu        sync.Mutex
	contextID string
}

// NewBridge creates a Bridge for userID backed by api.
func NewBridge(api API, userID string) *Bridge {
	return &Bridge{api: api, userID: userID}
}

// ensureContext establishes the twin session on first use. Failures are not
// cached; the next call tries again.
func (b *Bridge) ensureContext(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.contextID != "" {
		return b.contextID, nil
	}
	id, err := b.api.Init(ctx, b.userID)
	if err != nil {
		return "", err
	}
	b.contextID = id
	return id, nil
}

// send wraps one typed payload in the message envelope.
func (b *Bridge) send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	contextID, err := b.ensureContext(ctx)
	if err != nil {
		return nil, err
	}
	metadata := map[string]any{
		"userId": b.userID,
		"sentAt": time.Now().UTC().Format(time.RFC3339),
	}
	return b.api.Message(ctx, contextID, payload, metadata)
}

// SendChat forwards one user chat turn to the twin and returns the raw
// reply. The reply may carry a tool-call batch; see ParseToolCalls.
func (b *Bridge) SendChat(ctx context.Context, text string) (map[string]any, error) {
	return b.send(ctx, map[string]any{
		"type": "chat",
		"text": text,
	})
}

// AnnounceTools tells the backend which callables this process accepts on
// the tool-call path. Sent once at startup; the backend only ever invokes
// what was announced.
func (b *Bridge) AnnounceTools(ctx context.Context, descriptors []map[string]any) error {
	_, err := b.send(ctx, map[string]any{
		"type":  "tools_announce",
		"tools": descriptors,
	})
	return err
}

// Store appends one memory record and returns the backend's
// acknowledgement.
func (b *Bridge) Store(ctx context.Context, memoryType string, data map[string]any) (map[string]any, error) {
	return b.send(ctx, map[string]any{
		"type": "memory_store",
		"record": map[string]any{
			"memoryType": memoryType,
			"data":       data,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Retrieve queries memories. The response shape is the backend's; nothing
// is validated client-side.
func (b *Bridge) Retrieve(ctx context.Context, query map[string]any, opts RetrieveOptions) (map[string]any, error) {
	if query == nil {
		query = map[string]any{}
	}
	return b.send(ctx, map[string]any{
		"type":    "memory_retrieve",
		"query":   query,
		"options": opts.wire(),
	})
}

// Delete removes the records with the given ids. Unconditional; any
// confirmation step belongs to the caller.
func (b *Bridge) Delete(ctx context.Context, ids []string) (map[string]any, error) {
	return b.send(ctx, map[string]any{
		"type": "memory_delete",
		"ids":  ids,
	})
}

// ClearType removes every record of one memory type.
func (b *Bridge) ClearType(ctx context.Context, memoryType string) (map[string]any, error) {
	return b.send(ctx, map[string]any{
		"type":       "memory_clear",
		"memoryType": memoryType,
	})
}
