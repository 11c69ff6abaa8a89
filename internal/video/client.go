// Package video is the HTTP client for the video-generation backend.
package video

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

// Request describes one generation job. Zero Duration/AspectRatio fall back
// to the client defaults.
type Request struct {
	Prompt          string
	DurationSeconds int
	AspectRatio     string
	ImageData       string // base64, optional starting frame
	ImageMIME       string
}

// Result is the generated clip.
type Result struct {
	URI string `json:"uri"`
}

// Client calls the video backend. Generation is a single synchronous POST;
// the backend holds the request open until the clip is ready.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	durationSeconds int
	aspectRatio     string
	httpClient      *http.Client
}

// NewClient creates a Client for model at baseURL with default generation
// parameters.
func NewClient(apiKey, baseURL, model string, durationSeconds int, aspectRatio string) *Client {
	return &Client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		model:           model,
		durationSeconds: durationSeconds,
		aspectRatio:     aspectRatio,
		httpClient:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// Generate runs one job and returns the URI of the produced clip. The
// backend response is scanned for the first part carrying a video URI;
// a response without one is a *schema.ResponseShapeError.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	const op = "video: generate"

	if req.Prompt == "" {
		return Result{}, fmt.Errorf("%s: prompt is required", op)
	}
	duration := req.DurationSeconds
	if duration <= 0 {
		duration = c.durationSeconds
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = c.aspectRatio
	}

	payload := map[string]any{
		"prompt": req.Prompt,
		"config": map[string]any{
			"durationSeconds": duration,
			"aspectRatio":     aspect,
		},
	}
	if req.ImageData != "" {
		payload["image"] = map[string]any{
			"data":     req.ImageData,
			"mimeType": req.ImageMIME,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	endpoint := c.baseURL + "/v1/models/" + url.PathEscape(c.model) + ":generateVideo"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, &schema.RequestError{Op: op, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, &schema.RequestError{Op: op, Status: resp.StatusCode, Body: "unreadable body: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &schema.RequestError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Video *struct {
						URI string `json:"uri"`
					} `json:"video"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, &schema.RequestError{Op: op, Status: resp.StatusCode, Body: "malformed body: " + err.Error()}
	}

	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Video != nil && part.Video.URI != "" {
				return Result{URI: part.Video.URI}, nil
			}
		}
	}
	return Result{}, &schema.ResponseShapeError{Op: op, Wanted: "video.uri"}
}
