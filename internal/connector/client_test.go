package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axonlabs/axon/internal/schema"
)

func TestClient_ListTools(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tools" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("missing api key header, got %q", r.Header.Get("X-API-Key"))
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"entity_id": q.Get("entity_id"),
			"apps":      q.Get("apps"),
			"actions":   q.Get("actions"),
			"tags":      q.Get("tags"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tools": []map[string]any{
				{"function": map[string]any{
					"name":        "gmail_send_email",
					"description": "Send an email",
					"parameters":  map[string]any{"type": "object"},
				}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	tools, err := c.ListTools(context.Background(), "default", "gmail", []string{"gmail_send_email"}, []string{"important"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 1 || tools[0].Function.Name != "gmail_send_email" {
		t.Errorf("unexpected tools %+v", tools)
	}
	if gotQuery["entity_id"] != "default" || gotQuery["apps"] != "gmail" {
		t.Errorf("unexpected query %v", gotQuery)
	}
	if gotQuery["actions"] != "gmail_send_email" || gotQuery["tags"] != "important" {
		t.Errorf("filters not forwarded: %v", gotQuery)
	}
}

func TestClient_ExecuteAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/actions/gmail_send_email/execute" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["connection_id"] != "conn-1" || body["entity_id"] != "default" {
			t.Errorf("unexpected request body %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"successful": true, "output": map[string]any{"id": "m1"}})
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	out, err := c.ExecuteAction(context.Background(), "gmail_send_email", "conn-1", "default", map[string]any{"to": "a@b.c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["successful"] != true {
		t.Errorf("unexpected response %v", out)
	}
}

func TestClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := NewClient("wrong", srv.URL)
	_, err := c.ListTools(context.Background(), "default", "gmail", nil, nil)

	var re *schema.RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Status != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", re.Status)
	}
	if re.Body == "" {
		t.Error("error should carry the response body")
	}
}

func TestClient_InitiateConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["auth_config_id"] != "ac-1" || body["callback_url"] != "http://127.0.0.1:8780/v1/connect/callback" {
			t.Errorf("unexpected body %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"connection_id": "conn-1",
			"redirect_url":  "https://auth.example/flow/1",
		})
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	init, err := c.InitiateConnection(context.Background(), "ac-1", "default", "http://127.0.0.1:8780/v1/connect/callback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if init.ConnectionID != "conn-1" || init.RedirectURL != "https://auth.example/flow/1" {
		t.Errorf("unexpected initiation %+v", init)
	}
}

func TestClient_InitiateConnectionMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"redirect_url": "https://auth.example/flow/1"})
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	_, err := c.InitiateConnection(context.Background(), "ac-1", "default", "")

	var se *schema.ResponseShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ResponseShapeError, got %v", err)
	}
}
