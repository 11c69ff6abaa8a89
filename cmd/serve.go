package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/dependency"
)

var (
	serveAddr    string
	serveVerbose bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the axon gateway server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Verbose logging")
}

func runServe(_ *cobra.Command, _ []string) error {
	if serveVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Gateway.Addr = serveAddr
	}

	c, err := dependency.New(cfg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	fmt.Printf("%s Starting axon gateway on %s...\n", logo, cfg.Gateway.Addr)
	if apps := c.Store().Apps(); len(apps) > 0 {
		fmt.Printf("✓ Connected apps: %v\n", apps)
	}
	if c.Bridge() != nil {
		fmt.Println("✓ Twin backend enabled")
	}

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.Gateway().Run(gctx) })
	g.Go(func() error { return c.Janitor().Start(gctx) })

	// Warm startup state in the background: declarations for rehydrated
	// connections, and the handler announcement to the twin. Neither may
	// keep the gateway from serving.
	g.Go(func() error {
		c.Gateway().RefreshConnected(gctx)
		if c.Bridge() != nil {
			if err := c.Bridge().AnnounceTools(gctx, c.Calls().Descriptors()); err != nil {
				slog.Warn("serve: tool announcement failed", "err", err)
			}
		}
		return nil
	})

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
