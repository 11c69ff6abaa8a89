package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axonlabs/axon/internal/schema"
)

func videoResponse(uri string) map[string]any {
	parts := []map[string]any{
		{"text": "here is your clip"},
	}
	if uri != "" {
		parts = append(parts, map[string]any{"video": map[string]any{"uri": uri}})
	}
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	}
}

func TestGenerate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/veo-2.0:generateVideo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(videoResponse("https://videos.example/clip.mp4"))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, "veo-2.0", 8, "16:9")
	res, err := c.Generate(context.Background(), Request{Prompt: "a red fox in the snow"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URI != "https://videos.example/clip.mp4" {
		t.Errorf("unexpected uri %q", res.URI)
	}

	cfg, _ := gotBody["config"].(map[string]any)
	if cfg["durationSeconds"] != float64(8) || cfg["aspectRatio"] != "16:9" {
		t.Errorf("defaults not applied: %v", cfg)
	}
	if _, ok := gotBody["image"]; ok {
		t.Error("image must be omitted when not given")
	}
}

func TestGenerate_OverridesAndImage(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(videoResponse("https://videos.example/clip.mp4"))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, "veo-2.0", 8, "16:9")
	_, err := c.Generate(context.Background(), Request{
		Prompt:          "pan across a city",
		DurationSeconds: 4,
		AspectRatio:     "9:16",
		ImageData:       "aGVsbG8=",
		ImageMIME:       "image/png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, _ := gotBody["config"].(map[string]any)
	if cfg["durationSeconds"] != float64(4) || cfg["aspectRatio"] != "9:16" {
		t.Errorf("overrides not applied: %v", cfg)
	}
	img, _ := gotBody["image"].(map[string]any)
	if img["data"] != "aGVsbG8=" || img["mimeType"] != "image/png" {
		t.Errorf("image not forwarded: %v", img)
	}
}

func TestGenerate_NoVideoPart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(videoResponse(""))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, "veo-2.0", 8, "16:9")
	_, err := c.Generate(context.Background(), Request{Prompt: "anything"})

	var se *schema.ResponseShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ResponseShapeError, got %v", err)
	}
	if se.Wanted != "video.uri" {
		t.Errorf("unexpected wanted field %q", se.Wanted)
	}
}

func TestGenerate_BackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, "veo-2.0", 8, "16:9")
	_, err := c.Generate(context.Background(), Request{Prompt: "anything"})

	var re *schema.RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Status != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", re.Status)
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	c := NewClient("secret", "http://unused.example", "veo-2.0", 8, "16:9")
	if _, err := c.Generate(context.Background(), Request{}); err == nil {
		t.Error("expected error for empty prompt")
	}
}
