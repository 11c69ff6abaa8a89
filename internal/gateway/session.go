package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/axonlabs/axon/internal/connector"
	"github.com/axonlabs/axon/internal/schema"
	"github.com/axonlabs/axon/internal/twin"
)

// session is one page's socket. Inbound messages are handled concurrently;
// writes are serialized so interleaved results cannot corrupt a frame.
type session struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	writeMu sync.Mutex
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	sess := &session{id: uuid.NewString(), conn: conn, srv: s}

	// Connection-state changes reach the page as pushed events, the same
	// shape the OAuth completion message has always had.
	unsubscribe := s.store.Subscribe(func(e connector.Event) {
		sess.write(map[string]any{
			"type":         e.Type,
			"app":          e.App,
			"connectionId": e.ConnectionID,
		})
	})
	defer unsubscribe()

	slog.Info("gateway: session opened", "session", sess.id, "remote", r.RemoteAddr)
	sess.readLoop(r.Context())
	slog.Info("gateway: session closed", "session", sess.id)
}

// checkOrigin admits same-host requests, anything in allowedOrigins, or
// everything when the list contains "*".
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Gateway.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (sess *session) readLoop(ctx context.Context) {
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		go sess.handle(ctx, raw)
	}
}

func (sess *session) handle(ctx context.Context, raw []byte) {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		sess.write(map[string]any{"type": "error", "error": "malformed message"})
		return
	}

	msgType, _ := msg["type"].(string)
	switch msgType {
	case "tool_call":
		sess.handleToolCall(ctx, msg)
	case "chat_turn":
		sess.handleChatTurn(ctx, msg)
	default:
		slog.Warn("gateway: unknown message type", "session", sess.id, "type", msgType)
		sess.write(map[string]any{"type": "error", "error": "unknown message type: " + msgType})
	}
}

// handleToolCall runs one call through the broker and replies with the
// session-path result shape: output and error both present, exactly one
// non-null.
func (sess *session) handleToolCall(ctx context.Context, msg map[string]any) {
	id, _ := msg["id"].(string)
	name, _ := msg["name"].(string)

	args, err := schema.DecodeArgs(msg["arguments"])
	if err != nil {
		sess.write(liveResult(schema.Failure(id, name, err.Error())))
		return
	}

	res := sess.srv.broker.Dispatch(ctx, schema.CallRequest{ID: id, Name: name, Args: args})
	sess.write(liveResult(res))
}

// handleChatTurn records the turn and, for user turns, runs one twin
// round: forward the text, then execute whatever tool-call batch the twin
// answers with.
func (sess *session) handleChatTurn(ctx context.Context, msg map[string]any) {
	role, _ := msg["role"].(string)
	if role == "" {
		role = "user"
	}
	text, _ := msg["text"].(string)

	if sess.srv.recorder != nil {
		sess.srv.recorder.RecordTurn(ctx, role, text)
	}
	if role != "user" || sess.srv.bridge == nil || text == "" {
		return
	}

	reply, err := sess.srv.bridge.SendChat(ctx, text)
	if err != nil {
		slog.Warn("gateway: twin chat failed", "session", sess.id, "err", err)
		return
	}
	if calls := twin.ParseToolCalls(reply); len(calls) > 0 {
		if err := sess.srv.calls.HandleBatch(ctx, sess.srv.bridge, calls); err != nil {
			slog.Warn("gateway: twin batch reply failed", "session", sess.id, "err", err)
		}
	}
}

func (sess *session) write(msg map[string]any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("gateway: marshal outbound message failed", "session", sess.id, "err", err)
		return
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("gateway: write failed", "session", sess.id, "err", err)
	}
}

// liveResult maps a canonical result onto the session wire shape.
func liveResult(r schema.CallResult) map[string]any {
	msg := map[string]any{
		"type":   "tool_result",
		"id":     r.ID,
		"name":   r.Name,
		"output": nil,
		"error":  nil,
	}
	if r.Status == schema.StatusSuccess {
		msg["output"] = r.Output
	} else {
		msg["error"] = r.Error
	}
	return msg
}
