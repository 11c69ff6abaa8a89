// Package twin talks to the personalization backend: a per-user "digital
// twin" that stores memory records and can drive its own function-calling
// protocol back through this process.
package twin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/axonlabs/axon/internal/schema"
)

// Client is the HTTP client for the twin backend. All traffic after Init
// flows through a single long-lived context id.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Init establishes the twin session for userID and returns its context id.
func (c *Client) Init(ctx context.Context, userID string) (string, error) {
	var out struct {
		ContextID string `json:"contextId"`
	}
	if err := c.post(ctx, "/v1/twin/init", map[string]any{"userId": userID}, &out); err != nil {
		return "", err
	}
	if out.ContextID == "" {
		return "", &schema.ResponseShapeError{Op: "twin: init", Wanted: "contextId"}
	}
	return out.ContextID, nil
}

// Message sends one typed payload under contextID and returns the backend's
// response body as-is. The backend owns the payload vocabulary; this client
// does not validate shapes in either direction.
func (c *Client) Message(ctx context.Context, contextID string, payload, metadata map[string]any) (map[string]any, error) {
	body := map[string]any{
		"contextId": contextID,
		"payload":   payload,
		"metadata":  metadata,
	}
	var out map[string]any
	if err := c.post(ctx, "/v1/twin/message", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	op := "twin: POST " + path

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &schema.RequestError{Op: op, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &schema.RequestError{Op: op, Status: resp.StatusCode, Body: "unreadable body: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &schema.RequestError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &schema.RequestError{Op: op, Status: resp.StatusCode, Body: "malformed body: " + err.Error()}
	}
	return nil
}
