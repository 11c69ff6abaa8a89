package twin

import (
	"context"
	"log/slog"
	"strings"
)

// Recorder persists chat turns as activity memories so later sessions can
// retrieve them. Recording is best-effort: a failing backend must never
// break the conversation, so errors are logged and swallowed here.
type Recorder struct {
	bridge *Bridge
}

// NewRecorder creates a Recorder writing through bridge.
func NewRecorder(bridge *Bridge) *Recorder {
	return &Recorder{bridge: bridge}
}

// RecordTurn stores one chat turn. Empty turns are dropped.
func (r *Recorder) RecordTurn(ctx context.Context, role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	_, err := r.bridge.Store(ctx, MemoryActivity, map[string]any{
		"kind": "chat_turn",
		"role": role,
		"text": text,
	})
	if err != nil {
		slog.Warn("twin: recording chat turn failed", "role", role, "err", err)
	}
}

// RecordGeneration stores one video-generation event.
func (r *Recorder) RecordGeneration(ctx context.Context, prompt, uri string) {
	_, err := r.bridge.Store(ctx, MemoryActivity, map[string]any{
		"kind":   "video_generation",
		"prompt": prompt,
		"uri":    uri,
	})
	if err != nil {
		slog.Warn("twin: recording generation failed", "err", err)
	}
}
