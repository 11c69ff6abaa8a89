// Package config defines the configuration schema for axon.
//
// The file at ~/.axon/config.json is the durable profile the gateway reads at
// startup: backend credentials, feature toggles, and the numeric generation
// parameters. Unknown keys are preserved-by-ignore; absent keys fall back to
// DefaultConfig values.
package config

import (
	"os"
	"path/filepath"
)

// GatewayConfig configures the HTTP/WebSocket surface the page talks to.
type GatewayConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Addr: "127.0.0.1:8780", AllowedOrigins: []string{}}
}

// ConnectorConfig holds credentials and knobs for the connector platform
// that brokers OAuth connections and action execution for external apps.
type ConnectorConfig struct {
	Enabled     bool   `json:"enabled"`
	APIKey      string `json:"apiKey"`
	BaseURL     string `json:"baseUrl"`
	EntityID    string `json:"entityId"`
	CallbackURL string `json:"callbackUrl"`
	// PendingTTLMinutes bounds how long an initiated-but-never-completed
	// OAuth attempt is kept before the janitor sweeps it.
	PendingTTLMinutes int    `json:"pendingTtlMinutes"`
	JanitorSchedule   string `json:"janitorSchedule"`
}

func defaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		BaseURL:           "https://backend.composio.dev",
		EntityID:          "default",
		CallbackURL:       "http://127.0.0.1:8780/v1/connect/callback",
		PendingTTLMinutes: 30,
		JanitorSchedule:   "@every 10m",
	}
}

// TwinConfig holds credentials for the personalization (digital twin)
// backend that owns the persistent user context and memory store.
type TwinConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	UserID  string `json:"userId"`
}

func defaultTwinConfig() TwinConfig {
	return TwinConfig{BaseURL: "https://api.twin.example.com", UserID: "default"}
}

// VideoConfig holds credentials for the video-generation backend.
type VideoConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
}

func defaultVideoConfig() VideoConfig {
	return VideoConfig{BaseURL: "https://generativelanguage.googleapis.com", Model: "veo-2.0"}
}

// GenerationConfig carries the numeric generation parameters surfaced in the
// settings profile.
type GenerationConfig struct {
	VideoDurationSeconds int    `json:"videoDurationSeconds"`
	VideoAspectRatio     string `json:"videoAspectRatio"`
}

func defaultGenerationConfig() GenerationConfig {
	return GenerationConfig{VideoDurationSeconds: 8, VideoAspectRatio: "16:9"}
}

// SearchToolConfig configures the web_search local tool.
type SearchToolConfig struct {
	APIKey     string `json:"apiKey"`
	MaxResults int    `json:"maxResults"`
}

// SlackToolConfig configures the slack_post_message local tool.
type SlackToolConfig struct {
	BotToken       string `json:"botToken"`
	DefaultChannel string `json:"defaultChannel"`
}

// TelegramToolConfig configures the telegram_send_message local tool.
type TelegramToolConfig struct {
	BotToken      string `json:"botToken"`
	DefaultChatID int64  `json:"defaultChatId"`
}

// ToolsConfig groups the local tool settings.
type ToolsConfig struct {
	Search   SearchToolConfig   `json:"search"`
	Slack    SlackToolConfig    `json:"slack"`
	Telegram TelegramToolConfig `json:"telegram"`
}

func defaultToolsConfig() ToolsConfig {
	return ToolsConfig{Search: SearchToolConfig{MaxResults: 5}}
}

// Config is the root configuration object.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Connector  ConnectorConfig  `json:"connector"`
	Twin       TwinConfig       `json:"twin"`
	Video      VideoConfig      `json:"video"`
	Generation GenerationConfig `json:"generation"`
	Tools      ToolsConfig      `json:"tools"`
}

// DefaultConfig returns a Config populated with every default value.
func DefaultConfig() Config {
	return Config{
		Gateway:    defaultGatewayConfig(),
		Connector:  defaultConnectorConfig(),
		Twin:       defaultTwinConfig(),
		Video:      defaultVideoConfig(),
		Generation: defaultGenerationConfig(),
		Tools:      defaultToolsConfig(),
	}
}

// DataDir returns the axon data directory: ~/.axon.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".axon"
	}
	return filepath.Join(home, ".axon")
}

// ConfigPath returns the default configuration file path: ~/.axon/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// ConnectionsPath returns the durable connection-state file path.
func ConnectionsPath() string {
	return filepath.Join(DataDir(), "connections.json")
}

// CatalogPath returns the optional user override for the app catalog.
func CatalogPath() string {
	return filepath.Join(DataDir(), "apps.yaml")
}
