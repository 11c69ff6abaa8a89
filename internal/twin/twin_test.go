package twin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/axonlabs/axon/internal/schema"
)

type sentMessage struct {
	contextID string
	payload   map[string]any
	metadata  map[string]any
}

type fakeTwinAPI struct {
	mu        sync.Mutex
	contextID string
	initCalls int
	initErr   error
	messages  []sentMessage
	response  map[string]any
	msgErr    error
}

func (f *fakeTwinAPI) Init(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return "", f.initErr
	}
	return f.contextID, nil
}

func (f *fakeTwinAPI) Message(_ context.Context, contextID string, payload, metadata map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{contextID: contextID, payload: payload, metadata: metadata})
	return f.response, f.msgErr
}

func newTestBridge(api *fakeTwinAPI) *Bridge {
	if api.contextID == "" {
		api.contextID = "ctx-1"
	}
	return NewBridge(api, "user-1")
}

func TestBridge_InitOnce(t *testing.T) {
	api := &fakeTwinAPI{response: map[string]any{"acknowledged": true}}
	b := newTestBridge(api)

	ctx := context.Background()
	if _, err := b.Store(ctx, MemoryPreference, map[string]any{"theme": "dark"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := b.Retrieve(ctx, map[string]any{"memoryType": MemoryPreference}, RetrieveOptions{}); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if api.initCalls != 1 {
		t.Errorf("expected a single init across operations, got %d", api.initCalls)
	}
	for _, m := range api.messages {
		if m.contextID != "ctx-1" {
			t.Errorf("message sent under wrong context %q", m.contextID)
		}
	}
}

func TestBridge_InitFailureNotCached(t *testing.T) {
	api := &fakeTwinAPI{initErr: errors.New("backend down")}
	b := newTestBridge(api)

	if _, err := b.Store(context.Background(), MemoryPreference, nil); err == nil {
		t.Fatal("expected init failure to propagate")
	}

	api.mu.Lock()
	api.initErr = nil
	api.mu.Unlock()
	if _, err := b.Store(context.Background(), MemoryPreference, nil); err != nil {
		t.Fatalf("second attempt should re-init: %v", err)
	}
	if api.initCalls != 2 {
		t.Errorf("expected 2 init attempts, got %d", api.initCalls)
	}
}

func TestBridge_StorePayload(t *testing.T) {
	api := &fakeTwinAPI{}
	b := newTestBridge(api)

	if _, err := b.Store(context.Background(), MemoryPreference, map[string]any{"theme": "dark"}); err != nil {
		t.Fatal(err)
	}

	p := api.messages[0].payload
	if p["type"] != "memory_store" {
		t.Errorf("unexpected payload type %v", p["type"])
	}
	rec, _ := p["record"].(map[string]any)
	if rec["memoryType"] != MemoryPreference {
		t.Errorf("unexpected record %v", rec)
	}
	ts, _ := rec["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp not RFC3339: %q", ts)
	}
	if api.messages[0].metadata["userId"] != "user-1" {
		t.Errorf("metadata missing user: %v", api.messages[0].metadata)
	}
}

func TestBridge_RetrieveDefaults(t *testing.T) {
	api := &fakeTwinAPI{}
	b := newTestBridge(api)

	if _, err := b.Retrieve(context.Background(), map[string]any{"memoryType": MemoryPreference}, RetrieveOptions{}); err != nil {
		t.Fatal(err)
	}
	opts, _ := api.messages[0].payload["options"].(map[string]any)
	if opts["limit"] != 10 || opts["offset"] != 0 || opts["sortBy"] != "timestamp" || opts["sortDirection"] != "desc" {
		t.Errorf("defaults not applied: %v", opts)
	}

	// An explicit limit overrides only that field.
	if _, err := b.Retrieve(context.Background(), nil, RetrieveOptions{Limit: 5}); err != nil {
		t.Fatal(err)
	}
	opts, _ = api.messages[1].payload["options"].(map[string]any)
	if opts["limit"] != 5 {
		t.Errorf("limit override not applied: %v", opts)
	}
	if opts["sortBy"] != "timestamp" || opts["sortDirection"] != "desc" {
		t.Errorf("other defaults must stay intact: %v", opts)
	}
}

func TestBridge_DeleteAndClear(t *testing.T) {
	api := &fakeTwinAPI{}
	b := newTestBridge(api)

	if _, err := b.Delete(context.Background(), []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ClearType(context.Background(), MemoryActivity); err != nil {
		t.Fatal(err)
	}

	if api.messages[0].payload["type"] != "memory_delete" {
		t.Errorf("unexpected delete payload %v", api.messages[0].payload)
	}
	if api.messages[1].payload["type"] != "memory_clear" || api.messages[1].payload["memoryType"] != MemoryActivity {
		t.Errorf("unexpected clear payload %v", api.messages[1].payload)
	}
}

func TestBridge_BackendErrorPropagates(t *testing.T) {
	api := &fakeTwinAPI{msgErr: &schema.RequestError{Op: "twin: POST /v1/twin/message", Status: 500, Body: "oops"}}
	b := newTestBridge(api)

	_, err := b.Store(context.Background(), MemoryPreference, nil)
	var re *schema.RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if len(api.messages) != 1 {
		t.Errorf("no retry allowed, got %d sends", len(api.messages))
	}
}

func TestExecuteBatch_JoinAll(t *testing.T) {
	c := NewCalls()
	c.Register("echo", Handler{Fn: func(_ context.Context, args map[string]any) (any, error) {
		return args["value"], nil
	}})
	c.Register("fail", Handler{Fn: func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("handler exploded")
	}})

	calls := []RawCall{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"value": "one"}},
		{ID: "c2", Name: "fail"},
		{ID: "c3", Name: "echo", Arguments: `{"value":"three"}`},
	}
	results := c.ExecuteBatch(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Status != schema.StatusSuccess || results[0].Output != "one" {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].Status != schema.StatusError || results[1].Error != "handler exploded" {
		t.Errorf("failing call must carry its error: %+v", results[1])
	}
	if results[2].Status != schema.StatusSuccess || results[2].Output != "three" {
		t.Errorf("string arguments must decode: %+v", results[2])
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		if results[i].ID != id {
			t.Errorf("results must keep call order: got %q at %d", results[i].ID, i)
		}
	}
}

func TestExecuteBatch_SingleReplyMessage(t *testing.T) {
	api := &fakeTwinAPI{}
	b := newTestBridge(api)

	c := NewCalls()
	c.Register("ok", Handler{Fn: func(context.Context, map[string]any) (any, error) { return "fine", nil }})
	c.Register("bad", Handler{Fn: func(context.Context, map[string]any) (any, error) { return nil, errors.New("no") }})

	calls := []RawCall{
		{ID: "c1", Name: "ok"},
		{ID: "c2", Name: "bad"},
		{ID: "c3", Name: "ok"},
	}
	if err := c.HandleBatch(context.Background(), b, calls); err != nil {
		t.Fatal(err)
	}

	if len(api.messages) != 1 {
		t.Fatalf("batch must produce exactly one reply message, got %d", len(api.messages))
	}
	p := api.messages[0].payload
	if p["type"] != "tool_result" {
		t.Errorf("unexpected reply type %v", p["type"])
	}
	wire, _ := p["results"].([]map[string]any)
	if len(wire) != 3 {
		t.Fatalf("reply must carry 3 results, got %d", len(wire))
	}
	if wire[1]["status"] != "error" || wire[1]["error"] != "no" {
		t.Errorf("unexpected failing entry %v", wire[1])
	}
	if _, hasResult := wire[1]["result"]; hasResult {
		t.Error("error entries must not carry a result field")
	}
	if wire[0]["status"] != "success" || wire[0]["result"] != "fine" {
		t.Errorf("unexpected success entry %v", wire[0])
	}
	if _, hasError := wire[0]["error"]; hasError {
		t.Error("success entries must not carry an error field")
	}
}

func TestCalls_NotFoundAndPanic(t *testing.T) {
	c := NewCalls()
	c.Register("panics", Handler{Fn: func(context.Context, map[string]any) (any, error) { panic("kaboom") }})

	results := c.ExecuteBatch(context.Background(), []RawCall{
		{ID: "c1", Name: "missing"},
		{ID: "c2", Name: "panics"},
	})

	if results[0].Status != schema.StatusError || results[0].Error != "Tool not found: missing" {
		t.Errorf("unexpected not-found result %+v", results[0])
	}
	if results[1].Status != schema.StatusError {
		t.Errorf("panic must become an error result, got %+v", results[1])
	}
}

func TestCalls_SynthesizedID(t *testing.T) {
	c := NewCalls()
	c.Register("ok", Handler{Fn: func(context.Context, map[string]any) (any, error) { return "x", nil }})

	results := c.ExecuteBatch(context.Background(), []RawCall{{Name: "ok"}})
	if results[0].ID == "" {
		t.Error("calls without an id must get one")
	}
}

func TestCalls_DuplicateRegistration(t *testing.T) {
	c := NewCalls()
	c.Register("tool", Handler{Description: "original", Fn: func(context.Context, map[string]any) (any, error) { return "original", nil }})
	c.Register("tool", Handler{Description: "replacement", Fn: func(context.Context, map[string]any) (any, error) { return "replacement", nil }})

	results := c.ExecuteBatch(context.Background(), []RawCall{{ID: "c1", Name: "tool"}})
	if results[0].Output != "original" {
		t.Error("duplicate registration must keep the original handler")
	}
	descs := c.Descriptors()
	if len(descs) != 1 || descs[0]["description"] != "original" {
		t.Errorf("unexpected descriptors %v", descs)
	}
}

func TestCalls_BadArgumentsString(t *testing.T) {
	c := NewCalls()
	c.Register("ok", Handler{Fn: func(context.Context, map[string]any) (any, error) { return "x", nil }})

	results := c.ExecuteBatch(context.Background(), []RawCall{{ID: "c1", Name: "ok", Arguments: "{not json"}})
	if results[0].Status != schema.StatusError {
		t.Errorf("undecodable arguments must fail the call, got %+v", results[0])
	}
}

func TestRecorder_SwallowsErrors(t *testing.T) {
	api := &fakeTwinAPI{msgErr: errors.New("backend down")}
	r := NewRecorder(newTestBridge(api))

	// Must not panic or propagate.
	r.RecordTurn(context.Background(), "user", "hello there")
	r.RecordTurn(context.Background(), "assistant", "   ")
	r.RecordGeneration(context.Background(), "a fox", "https://videos.example/clip.mp4")

	if len(api.messages) != 2 {
		t.Errorf("expected 2 sends (blank turn dropped), got %d", len(api.messages))
	}
	rec, _ := api.messages[0].payload["record"].(map[string]any)
	data, _ := rec["data"].(map[string]any)
	if data["kind"] != "chat_turn" || data["role"] != "user" {
		t.Errorf("unexpected turn record %v", data)
	}
}

func TestParseToolCalls(t *testing.T) {
	reply := map[string]any{
		"payload": map[string]any{
			"type": "tool_call",
			"calls": []any{
				map[string]any{"id": "c1", "name": "generate_video", "arguments": map[string]any{"prompt": "a fox"}},
				map[string]any{"id": "c2", "arguments": map[string]any{}}, // nameless, dropped
				"garbage",
			},
		},
	}
	calls := ParseToolCalls(reply)
	if len(calls) != 1 {
		t.Fatalf("expected 1 usable call, got %d", len(calls))
	}
	if calls[0].ID != "c1" || calls[0].Name != "generate_video" {
		t.Errorf("unexpected call %+v", calls[0])
	}

	if got := ParseToolCalls(map[string]any{"payload": map[string]any{"type": "chat"}}); got != nil {
		t.Errorf("non-batch replies must yield nil, got %v", got)
	}
	if got := ParseToolCalls(map[string]any{}); got != nil {
		t.Errorf("empty replies must yield nil, got %v", got)
	}
}

func TestBridge_SendChat(t *testing.T) {
	api := &fakeTwinAPI{}
	b := newTestBridge(api)

	if _, err := b.SendChat(context.Background(), "remember I like foxes"); err != nil {
		t.Fatal(err)
	}
	p := api.messages[0].payload
	if p["type"] != "chat" || p["text"] != "remember I like foxes" {
		t.Errorf("unexpected chat payload %v", p)
	}
}

func TestBridge_AnnounceTools(t *testing.T) {
	api := &fakeTwinAPI{}
	b := newTestBridge(api)

	descs := []map[string]any{{"name": "generate_video", "description": "Generate a short video clip."}}
	if err := b.AnnounceTools(context.Background(), descs); err != nil {
		t.Fatal(err)
	}
	p := api.messages[0].payload
	if p["type"] != "tools_announce" {
		t.Errorf("unexpected payload type %v", p["type"])
	}
	tools, _ := p["tools"].([]map[string]any)
	if len(tools) != 1 || tools[0]["name"] != "generate_video" {
		t.Errorf("unexpected tools list %v", tools)
	}
}

func TestWireResults_FieldNames(t *testing.T) {
	wire := WireResults([]schema.CallResult{
		schema.Success("c1", "a", map[string]any{"v": 1}),
		schema.Failure("c2", "b", "nope"),
	})
	if fmt.Sprintf("%v %v %v", wire[0]["id"], wire[0]["name"], wire[0]["status"]) != "c1 a success" {
		t.Errorf("unexpected success entry %v", wire[0])
	}
	if fmt.Sprintf("%v %v %v", wire[1]["id"], wire[1]["name"], wire[1]["status"]) != "c2 b error" {
		t.Errorf("unexpected error entry %v", wire[1])
	}
}
