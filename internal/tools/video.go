package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/axonlabs/axon/internal/video"
)

// videoGenerator is the part of the video client the tool uses.
type videoGenerator interface {
	Generate(ctx context.Context, req video.Request) (video.Result, error)
}

// VideoTool exposes video generation as a callable tool.
type VideoTool struct {
	client videoGenerator
}

// NewVideoTool creates a VideoTool backed by client.
func NewVideoTool(client videoGenerator) *VideoTool {
	return &VideoTool{client: client}
}

func (t *VideoTool) Name() string { return "generate_video" }

func (t *VideoTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: "Generate a short video clip from a text prompt. Returns the clip URI.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"prompt":          {Type: genai.TypeString, Description: "What the clip should show"},
				"durationSeconds": {Type: genai.TypeInteger, Description: "Clip length in seconds"},
				"aspectRatio":     {Type: genai.TypeString, Description: `"16:9" or "9:16"`},
			},
			Required: []string{"prompt"},
		},
	}
}

func (t *VideoTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	req := video.Request{Prompt: prompt}
	switch v := args["durationSeconds"].(type) {
	case float64:
		req.DurationSeconds = int(v)
	case int:
		req.DurationSeconds = v
	}
	if ar, ok := args["aspectRatio"].(string); ok {
		req.AspectRatio = ar
	}

	res, err := t.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"uri": res.URI}, nil
}
