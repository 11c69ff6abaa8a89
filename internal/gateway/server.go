// Package gateway is the HTTP and WebSocket surface the chat page talks
// to: declaration listing, app connection lifecycle, memory operations,
// the config profile, and the per-page session socket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/axonlabs/axon/internal/broker"
	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/connector"
	"github.com/axonlabs/axon/internal/schema"
	"github.com/axonlabs/axon/internal/tools"
	"github.com/axonlabs/axon/internal/twin"
)

// Server owns the HTTP mux and the live sessions hanging off it.
type Server struct {
	cfg      *config.Config
	registry *tools.Registry
	broker   *broker.Broker
	catalog  *connector.Catalog
	store    *connector.Store

	// nil when the connector backend is not configured.
	client *connector.Client
	source *connector.Source

	// nil when the twin backend is not configured.
	bridge   *twin.Bridge
	calls    *twin.Calls
	recorder *twin.Recorder
}

// New creates a Server. client/source and bridge/calls/recorder may be nil
// when the respective backend is disabled; the affected endpoints then
// answer 503.
func New(
	cfg *config.Config,
	registry *tools.Registry,
	b *broker.Broker,
	catalog *connector.Catalog,
	store *connector.Store,
	client *connector.Client,
	source *connector.Source,
	bridge *twin.Bridge,
	calls *twin.Calls,
	recorder *twin.Recorder,
) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		broker:   b,
		catalog:  catalog,
		store:    store,
		client:   client,
		source:   source,
		bridge:   bridge,
		calls:    calls,
		recorder: recorder,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/declarations", s.handleDeclarations)
	mux.HandleFunc("GET /v1/apps", s.handleApps)
	mux.HandleFunc("POST /v1/connect", s.handleConnect)
	mux.HandleFunc("GET /v1/connect/callback", s.handleConnectCallback)
	mux.HandleFunc("POST /v1/disconnect", s.handleDisconnect)
	mux.HandleFunc("POST /v1/tools/refresh", s.handleToolsRefresh)
	mux.HandleFunc("POST /v1/memories", s.handleMemoryStore)
	mux.HandleFunc("POST /v1/memories/search", s.handleMemorySearch)
	mux.HandleFunc("POST /v1/memories/delete", s.handleMemoryDelete)
	mux.HandleFunc("POST /v1/memories/clear", s.handleMemoryClear)
	mux.HandleFunc("GET /v1/config", s.handleConfigGet)
	mux.HandleFunc("PUT /v1/config", s.handleConfigPut)
	mux.HandleFunc("GET /ws", s.handleSession)
	return mux
}

// Run serves until ctx is canceled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Gateway.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("gateway: listening", "addr", s.cfg.Gateway.Addr)

	select {
	case err := <-errc:
		return fmt.Errorf("gateway: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return ctx.Err()
}

func (s *Server) handleDeclarations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"declarations": s.registry.Declarations(),
	})
}

func (s *Server) handleApps(w http.ResponseWriter, _ *http.Request) {
	type appView struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Connected    bool   `json:"connected"`
		ConnectionID string `json:"connectionId,omitempty"`
	}
	apps := make([]appView, 0, len(s.catalog.Apps))
	for _, app := range s.catalog.Apps {
		v := appView{Name: app.Name, Description: app.Description}
		if conn, ok := s.store.Get(app.Name); ok && conn.Connected {
			v.Connected = true
			v.ConnectionID = conn.ConnectionID
		}
		apps = append(apps, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

// handleConnect starts an OAuth connection attempt and hands the page the
// URL to open. Completion arrives later on the callback route.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.client == nil {
		writeError(w, http.StatusServiceUnavailable, "connector backend not configured")
		return
	}
	var req struct {
		App string `json:"app"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.App == "" {
		writeError(w, http.StatusBadRequest, "app is required")
		return
	}
	app, ok := s.catalog.Lookup(req.App)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown app: "+req.App)
		return
	}
	if s.store.Connected(app.Name) {
		writeError(w, http.StatusConflict, "app already connected: "+app.Name)
		return
	}

	authConfigID := app.AuthConfig
	if authConfigID == "" {
		id, err := s.client.CreateAuthConfig(r.Context(), app.Name)
		if err != nil {
			slog.Error("gateway: create auth config failed", "app", app.Name, "err", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		authConfigID = id
	}

	init, err := s.client.InitiateConnection(r.Context(), authConfigID, s.cfg.Connector.EntityID, s.cfg.Connector.CallbackURL)
	if err != nil {
		slog.Error("gateway: initiate connection failed", "app", app.Name, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.store.TrackPending(connector.Pending{
		App:          app.Name,
		ConnectionID: init.ConnectionID,
		RedirectURL:  init.RedirectURL,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"connectionId": init.ConnectionID,
		"redirectUrl":  init.RedirectURL,
	})
}

// handleConnectCallback is where the OAuth flow lands after the user
// finishes. The attempt is verified against the backend before anything is
// marked connected.
func (s *Server) handleConnectCallback(w http.ResponseWriter, r *http.Request) {
	if s.client == nil {
		writeError(w, http.StatusServiceUnavailable, "connector backend not configured")
		return
	}
	connectionID := r.URL.Query().Get("connection_id")
	if connectionID == "" {
		writeError(w, http.StatusBadRequest, "connection_id is required")
		return
	}
	pending, ok := s.store.PendingByID(connectionID)
	if !ok {
		writeError(w, http.StatusNotFound, "no pending attempt for this connection")
		return
	}

	info, err := s.client.Connection(r.Context(), connectionID)
	if err != nil {
		slog.Error("gateway: verify connection failed", "app", pending.App, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if info.Status != connector.StatusActive {
		writeError(w, http.StatusConflict, fmt.Sprintf("connection %s is %s, not %s", connectionID, info.Status, connector.StatusActive))
		return
	}

	s.store.MarkConnected(pending.App, connectionID)
	if _, err := s.refreshApp(r.Context(), pending.App); err != nil {
		slog.Warn("gateway: declaration refresh after connect failed", "app", pending.App, "err", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<html><body><p>%s connected. You can close this window.</p></body></html>", pending.App)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		App string `json:"app"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.App == "" {
		writeError(w, http.StatusBadRequest, "app is required")
		return
	}

	removed, ok := s.store.Disconnect(req.App)
	if !ok {
		writeError(w, http.StatusNotFound, "app not connected: "+req.App)
		return
	}
	s.registry.RemoveConnectorDeclarations(req.App)

	// Best-effort revocation; local state is already gone.
	if s.client != nil {
		if err := s.client.DeleteConnection(r.Context(), removed.ConnectionID); err != nil {
			slog.Warn("gateway: backend revocation failed", "app", req.App, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"disconnected": req.App})
}

// handleToolsRefresh re-fetches connector declarations. With no body apps
// it refreshes every connected app; the cache is cleared first so the
// backend is actually consulted.
func (s *Server) handleToolsRefresh(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "connector backend not configured")
		return
	}
	var req struct {
		Apps []string `json:"apps"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
			return
		}
	}
	apps := req.Apps
	if len(apps) == 0 {
		apps = s.store.Apps()
	}

	s.source.ClearCache()
	counts := make(map[string]int, len(apps))
	for _, app := range apps {
		n, err := s.refreshApp(r.Context(), app)
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("refresh %s: %s", app, err))
			return
		}
		counts[app] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": counts})
}

// RefreshConnected installs declarations for every connected app, typically
// once at startup after the store rehydrates. Per-app failures are logged
// and skipped; a dead backend must not keep the gateway from serving.
func (s *Server) RefreshConnected(ctx context.Context) {
	for _, app := range s.store.Apps() {
		if _, err := s.refreshApp(ctx, app); err != nil {
			slog.Warn("gateway: startup refresh failed", "app", app, "err", err)
		}
	}
}

// refreshApp pulls app's declarations through the source, filtered the way
// the catalog entry prescribes, and installs them in the registry.
// Unconnected apps contribute nothing.
func (s *Server) refreshApp(ctx context.Context, appName string) (int, error) {
	if s.source == nil || !s.store.Connected(appName) {
		return 0, nil
	}
	var actions, tags []string
	if entry, ok := s.catalog.Lookup(appName); ok {
		actions, tags = entry.Actions, entry.Tags
	}
	decls, err := s.source.Tools(ctx, appName, actions, tags)
	if err != nil {
		var nce *connector.NotConnectedError
		if errors.As(err, &nce) {
			return 0, nil
		}
		return 0, err
	}
	s.registry.SetConnectorDeclarations(appName, decls)
	return len(decls), nil
}

func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "twin backend not configured")
		return
	}
	var req struct {
		MemoryType string         `json:"memoryType"`
		Data       map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MemoryType == "" {
		writeError(w, http.StatusBadRequest, "memoryType is required")
		return
	}
	ack, err := s.bridge.Store(r.Context(), req.MemoryType, req.Data)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "twin backend not configured")
		return
	}
	var req struct {
		Query   map[string]any `json:"query"`
		Options struct {
			Limit         int    `json:"limit"`
			Offset        int    `json:"offset"`
			SortBy        string `json:"sortBy"`
			SortDirection string `json:"sortDirection"`
		} `json:"options"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
			return
		}
	}
	out, err := s.bridge.Retrieve(r.Context(), req.Query, twin.RetrieveOptions{
		Limit:         req.Options.Limit,
		Offset:        req.Options.Offset,
		SortBy:        req.Options.SortBy,
		SortDirection: req.Options.SortDirection,
	})
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "twin backend not configured")
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}
	out, err := s.bridge.Delete(r.Context(), req.IDs)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "twin backend not configured")
		return
	}
	var req struct {
		MemoryType string `json:"memoryType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MemoryType == "" {
		writeError(w, http.StatusBadRequest, "memoryType is required")
		return
	}
	out, err := s.bridge.ClearType(r.Context(), req.MemoryType)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConfigGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, redactConfig(*s.cfg))
}

// handleConfigPut persists a full replacement profile. Masked secrets keep
// their stored values so a page can round-trip what GET returned. Most
// changes need a restart to take effect.
func (s *Server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	var incoming config.Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "malformed config: "+err.Error())
		return
	}
	unmaskConfig(&incoming, s.cfg)

	if err := config.Save(&incoming, ""); err != nil {
		slog.Error("gateway: save config failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"saved": true,
		"note":  "restart to apply backend changes",
	})
}

const secretMask = "********"

// redactConfig masks every credential before the profile leaves the
// process.
func redactConfig(cfg config.Config) config.Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return secretMask
	}
	cfg.Connector.APIKey = mask(cfg.Connector.APIKey)
	cfg.Twin.APIKey = mask(cfg.Twin.APIKey)
	cfg.Video.APIKey = mask(cfg.Video.APIKey)
	cfg.Tools.Search.APIKey = mask(cfg.Tools.Search.APIKey)
	cfg.Tools.Slack.BotToken = mask(cfg.Tools.Slack.BotToken)
	cfg.Tools.Telegram.BotToken = mask(cfg.Tools.Telegram.BotToken)
	return cfg
}

// unmaskConfig restores stored secrets wherever incoming still carries the
// mask.
func unmaskConfig(incoming *config.Config, current *config.Config) {
	restore := func(field *string, stored string) {
		if *field == secretMask {
			*field = stored
		}
	}
	restore(&incoming.Connector.APIKey, current.Connector.APIKey)
	restore(&incoming.Twin.APIKey, current.Twin.APIKey)
	restore(&incoming.Video.APIKey, current.Video.APIKey)
	restore(&incoming.Tools.Search.APIKey, current.Tools.Search.APIKey)
	restore(&incoming.Tools.Slack.BotToken, current.Tools.Slack.BotToken)
	restore(&incoming.Tools.Telegram.BotToken, current.Tools.Telegram.BotToken)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("gateway: write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeBackendError maps backend failures onto gateway statuses: upstream
// HTTP failures become 502, everything else 500.
func writeBackendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var re *schema.RequestError
	if errors.As(err, &re) {
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}
