// Package dependency wires core axon services using go.uber.org/dig.
package dependency

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/dig"

	"github.com/axonlabs/axon/internal/broker"
	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/connector"
	"github.com/axonlabs/axon/internal/cron"
	"github.com/axonlabs/axon/internal/gateway"
	"github.com/axonlabs/axon/internal/tools"
	"github.com/axonlabs/axon/internal/twin"
	"github.com/axonlabs/axon/internal/video"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig
// directly. Backend-scoped services (connector client/source, twin bridge)
// are nil when their backend is disabled in the config.
type Container struct {
	gw       *gateway.Server
	janitor  *cron.Janitor
	store    *connector.Store
	client   *connector.Client
	catalog  *connector.Catalog
	source   *connector.Source
	registry *tools.Registry
	bridge   *twin.Bridge
	calls    *twin.Calls
}

func (c *Container) Gateway() *gateway.Server    { return c.gw }
func (c *Container) Janitor() *cron.Janitor      { return c.janitor }
func (c *Container) Store() *connector.Store     { return c.store }
func (c *Container) Client() *connector.Client   { return c.client }
func (c *Container) Catalog() *connector.Catalog { return c.catalog }
func (c *Container) Source() *connector.Source   { return c.source }
func (c *Container) Registry() *tools.Registry   { return c.registry }
func (c *Container) Bridge() *twin.Bridge        { return c.bridge }
func (c *Container) Calls() *twin.Calls          { return c.calls }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newConnectionStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newConnectorClient); err != nil {
		return nil, err
	}
	if err := d.Provide(newCatalog); err != nil {
		return nil, err
	}
	if err := d.Provide(newSource); err != nil {
		return nil, err
	}
	if err := d.Provide(newVideoClient); err != nil {
		return nil, err
	}
	if err := d.Provide(newTwinClient); err != nil {
		return nil, err
	}
	if err := d.Provide(newTwinBridge); err != nil {
		return nil, err
	}
	if err := d.Provide(newRecorder); err != nil {
		return nil, err
	}
	if err := d.Provide(newVideoGenerator); err != nil {
		return nil, err
	}
	if err := d.Provide(newToolRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newTwinCalls); err != nil {
		return nil, err
	}
	if err := d.Provide(newBroker); err != nil {
		return nil, err
	}
	if err := d.Provide(newJanitor); err != nil {
		return nil, err
	}
	if err := d.Provide(newGateway); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		gw *gateway.Server,
		janitor *cron.Janitor,
		store *connector.Store,
		client *connector.Client,
		catalog *connector.Catalog,
		source *connector.Source,
		registry *tools.Registry,
		bridge *twin.Bridge,
		calls *twin.Calls,
	) {
		result = &Container{
			gw:       gw,
			janitor:  janitor,
			store:    store,
			client:   client,
			catalog:  catalog,
			source:   source,
			registry: registry,
			bridge:   bridge,
			calls:    calls,
		}
	})
	return result, err
}

func newConnectionStore() (*connector.Store, error) {
	store := connector.NewStore(config.ConnectionsPath())
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func newConnectorClient(cfg *config.Config) *connector.Client {
	if !cfg.Connector.Enabled || cfg.Connector.APIKey == "" {
		return nil
	}
	return connector.NewClient(cfg.Connector.APIKey, cfg.Connector.BaseURL)
}

func newCatalog() (*connector.Catalog, error) {
	return connector.LoadCatalog(config.CatalogPath())
}

func newSource(cfg *config.Config, client *connector.Client, store *connector.Store) *connector.Source {
	if client == nil {
		return nil
	}
	return connector.NewSource(client, store, cfg.Connector.EntityID)
}

func newVideoClient(cfg *config.Config) *video.Client {
	if !cfg.Video.Enabled || cfg.Video.APIKey == "" {
		return nil
	}
	return video.NewClient(
		cfg.Video.APIKey,
		cfg.Video.BaseURL,
		cfg.Video.Model,
		cfg.Generation.VideoDurationSeconds,
		cfg.Generation.VideoAspectRatio,
	)
}

func newTwinClient(cfg *config.Config) *twin.Client {
	if !cfg.Twin.Enabled || cfg.Twin.APIKey == "" {
		return nil
	}
	return twin.NewClient(cfg.Twin.APIKey, cfg.Twin.BaseURL)
}

func newTwinBridge(cfg *config.Config, client *twin.Client) *twin.Bridge {
	if client == nil {
		return nil
	}
	return twin.NewBridge(client, cfg.Twin.UserID)
}

func newRecorder(bridge *twin.Bridge) *twin.Recorder {
	if bridge == nil {
		return nil
	}
	return twin.NewRecorder(bridge)
}

// recordingGenerator wraps the video client so every successful generation
// lands in the activity history, no matter which path asked for it.
type recordingGenerator struct {
	client   *video.Client
	recorder *twin.Recorder
}

func (g *recordingGenerator) Generate(ctx context.Context, req video.Request) (video.Result, error) {
	res, err := g.client.Generate(ctx, req)
	if err == nil && g.recorder != nil {
		g.recorder.RecordGeneration(ctx, req.Prompt, res.URI)
	}
	return res, err
}

func newVideoGenerator(vc *video.Client, recorder *twin.Recorder) *recordingGenerator {
	if vc == nil {
		return nil
	}
	return &recordingGenerator{client: vc, recorder: recorder}
}

func newToolRegistry(cfg *config.Config, gen *recordingGenerator) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewSearchTool(cfg.Tools.Search.APIKey, cfg.Tools.Search.MaxResults))
	registry.Register(tools.NewWebpageTool(0))

	if cfg.Tools.Slack.BotToken != "" {
		registry.Register(tools.NewSlackTool(cfg.Tools.Slack.BotToken, cfg.Tools.Slack.DefaultChannel))
	}
	if cfg.Tools.Telegram.BotToken != "" {
		bot, err := tools.NewTelegramBot(cfg.Tools.Telegram.BotToken)
		if err != nil {
			slog.Warn("dependency: telegram bot unavailable", "err", err)
		} else {
			registry.Register(tools.NewTelegramTool(bot, cfg.Tools.Telegram.DefaultChatID))
		}
	}
	if gen != nil {
		registry.Register(tools.NewVideoTool(gen))
	}
	return registry
}

// newTwinCalls populates the twin-path handler table. Video generation is
// the one callable the backend may invoke on this process today.
func newTwinCalls(gen *recordingGenerator) *twin.Calls {
	calls := twin.NewCalls()
	if gen != nil {
		vt := tools.NewVideoTool(gen)
		calls.Register(vt.Name(), twin.Handler{
			Description: vt.Declaration().Description,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt":          map[string]any{"type": "string"},
					"durationSeconds": map[string]any{"type": "integer"},
					"aspectRatio":     map[string]any{"type": "string"},
				},
				"required": []string{"prompt"},
			},
			Fn: vt.Execute,
		})
	}
	return calls
}

func newBroker(registry *tools.Registry, source *connector.Source) *broker.Broker {
	// A nil *Source must stay a nil interface inside the broker.
	if source == nil {
		return broker.New(registry, nil)
	}
	return broker.New(registry, source)
}

func newJanitor(cfg *config.Config, store *connector.Store) *cron.Janitor {
	ttl := time.Duration(cfg.Connector.PendingTTLMinutes) * time.Minute
	return cron.NewJanitor(store, cfg.Connector.JanitorSchedule, ttl)
}

func newGateway(
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
) *gateway.Server {
	return gateway.New(cfg, registry, b, catalog, store, client, source, bridge, calls, recorder)
}
