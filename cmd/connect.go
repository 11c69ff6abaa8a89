package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/connector"
)

var (
	connectNoWait  bool
	connectTimeout time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect <app>",
	Short: "Connect an external app via OAuth",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <app>",
	Short: "Disconnect an external app",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisconnect,
}

func init() {
	connectCmd.Flags().BoolVar(&connectNoWait, "no-wait", false, "Print the authorization URL and exit without waiting")
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 5*time.Minute, "How long to wait for authorization")
}

func connectorClient(cfg *config.Config) (*connector.Client, error) {
	if !cfg.Connector.Enabled || cfg.Connector.APIKey == "" {
		return nil, fmt.Errorf("connector backend not configured — edit %s", config.ConfigPath())
	}
	return connector.NewClient(cfg.Connector.APIKey, cfg.Connector.BaseURL), nil
}

func runConnect(_ *cobra.Command, args []string) error {
	appName := args[0]

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := connectorClient(cfg)
	if err != nil {
		return err
	}
	catalog, err := connector.LoadCatalog(config.CatalogPath())
	if err != nil {
		return err
	}
	app, ok := catalog.Lookup(appName)
	if !ok {
		return fmt.Errorf("unknown app %q (known: %s)", appName, strings.Join(catalog.Names(), ", "))
	}

	store := connector.NewStore(config.ConnectionsPath())
	if err := store.Load(); err != nil {
		return err
	}
	if store.Connected(app.Name) {
		fmt.Printf("✓ %s is already connected\n", app.Name)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authConfigID := app.AuthConfig
	if authConfigID == "" {
		authConfigID, err = client.CreateAuthConfig(ctx, app.Name)
		if err != nil {
			return fmt.Errorf("create auth config: %w", err)
		}
	}

	init, err := client.InitiateConnection(ctx, authConfigID, cfg.Connector.EntityID, cfg.Connector.CallbackURL)
	if err != nil {
		return fmt.Errorf("initiate connection: %w", err)
	}
	store.TrackPending(connector.Pending{
		App:          app.Name,
		ConnectionID: init.ConnectionID,
		RedirectURL:  init.RedirectURL,
	})

	fmt.Printf("\nOpen this URL to authorize %s:\n\n  %s\n\n", app.Name, init.RedirectURL)
	if connectNoWait {
		fmt.Println("Waiting skipped; the connection completes on the gateway callback.")
		return nil
	}

	fmt.Printf("Waiting for authorization (up to %s, Ctrl+C to stop waiting)...\n", connectTimeout)
	if _, err := connector.WaitForActive(ctx, client, init.ConnectionID, 3*time.Second, connectTimeout); err != nil {
		fmt.Printf("\nNot connected yet: %v\n", err)
		fmt.Println("The attempt stays pending; finishing the OAuth flow later still completes it.")
		return nil
	}

	store.MarkConnected(app.Name, init.ConnectionID)
	fmt.Printf("✓ %s connected\n", app.Name)
	return nil
}

func runDisconnect(_ *cobra.Command, args []string) error {
	appName := args[0]

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store := connector.NewStore(config.ConnectionsPath())
	if err := store.Load(); err != nil {
		return err
	}

	removed, ok := store.Disconnect(appName)
	if !ok {
		return fmt.Errorf("%s is not connected", appName)
	}
	fmt.Printf("✓ %s disconnected\n", appName)

	// Best-effort backend revocation; local state is already gone.
	if client, err := connectorClient(cfg); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := client.DeleteConnection(ctx, removed.ConnectionID); err != nil {
			fmt.Printf("  (backend revocation failed: %v)\n", err)
		}
	}
	return nil
}
