// Package connector bridges named external apps (email, spreadsheets, …) to
// callable tool declarations and remote action execution, via the connector
// platform that owns the OAuth flows. The package never initiates OAuth by
// itself; it creates connection attempts, consumes their completion, and
// keeps the durable connection-state table.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/axonlabs/axon/internal/schema"
)

// Connection status values reported by the connector backend.
const (
	StatusInitiated = "INITIATED"
	StatusActive    = "ACTIVE"
	StatusFailed    = "FAILED"
)

// Initiation is the backend's answer to a new connection attempt: the id to
// poll and the URL the user must visit to finish OAuth.
type Initiation struct {
	ConnectionID string `json:"connection_id"`
	RedirectURL  string `json:"redirect_url"`
}

// ConnectionInfo is the backend's view of one connection attempt.
type ConnectionInfo struct {
	ID     string `json:"id"`
	App    string `json:"app"`
	Status string `json:"status"`
}

// RemoteTool is the provider-specific envelope the backend returns from the
// tool-listing endpoint. The source unwraps it into the common declaration
// schema before anything else sees it.
type RemoteTool struct {
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

// Client is the HTTP client for the connector backend.
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

// CreateAuthConfig provisions an auth configuration for app and returns its id.
// Called once per app when the catalog has no pre-provisioned config.
func (c *Client) CreateAuthConfig(ctx context.Context, app string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth_configs", map[string]any{"app": app}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &schema.ResponseShapeError{Op: "connector: create auth config", Wanted: "id"}
	}
	return out.ID, nil
}

// InitiateConnection starts an OAuth connection attempt for an entity.
func (c *Client) InitiateConnection(ctx context.Context, authConfigID, entityID, callbackURL string) (Initiation, error) {
	body := map[string]any{
		"auth_config_id": authConfigID,
		"entity_id":      entityID,
		"callback_url":   callbackURL,
	}
	var out Initiation
	if err := c.do(ctx, http.MethodPost, "/api/v1/connections", body, &out); err != nil {
		return Initiation{}, err
	}
	if out.ConnectionID == "" {
		return Initiation{}, &schema.ResponseShapeError{Op: "connector: initiate connection", Wanted: "connection_id"}
	}
	return out, nil
}

// Connection fetches the current state of one connection attempt.
func (c *Client) Connection(ctx context.Context, connectionID string) (ConnectionInfo, error) {
	var out ConnectionInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/connections/"+url.PathEscape(connectionID), nil, &out)
	return out, err
}

// DeleteConnection revokes a connection on the backend.
func (c *Client) DeleteConnection(ctx context.Context, connectionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/connections/"+url.PathEscape(connectionID), nil, nil)
}

// ListTools returns the callable tool definitions the backend exposes for app,
// optionally narrowed by action and tag filters.
func (c *Client) ListTools(ctx context.Context, entityID, app string, actions, tags []string) ([]RemoteTool, error) {
	q := url.Values{}
	q.Set("entity_id", entityID)
	q.Set("apps", app)
	if len(actions) > 0 {
		q.Set("actions", strings.Join(actions, ","))
	}
	if len(tags) > 0 {
		q.Set("tags", strings.Join(tags, ","))
	}

	var out struct {
		Tools []RemoteTool `json:"tools"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tools?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// ExecuteAction invokes the backend's generic execute-action entrypoint and
// returns the decoded response body as-is. Logical failure fields inside a
// 2xx body are the caller's to interpret.
func (c *Client) ExecuteAction(ctx context.Context, action, connectionID, entityID string, args map[string]any) (map[string]any, error) {
	body := map[string]any{
		"entity_id":     entityID,
		"connection_id": connectionID,
		"arguments":     args,
	}
	var out map[string]any
	err := c.do(ctx, http.MethodPost, "/api/v1/actions/"+url.PathEscape(action)+"/execute", body, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one JSON request. A non-2xx status yields *schema.RequestError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := "connector: " + method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		return &schema.RequestError{Op: op, Status: resp.StatusCode, Body: excerpt(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &schema.RequestError{Op: op, Status: resp.StatusCode, Body: "malformed body: " + excerpt(raw)}
	}
	return nil
}

func excerpt(raw []byte) string {
	const max = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
