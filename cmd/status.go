package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/connector"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show axon status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s axon Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:   %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}
	fmt.Printf("Gateway:  %s\n\n", cfg.Gateway.Addr)

	fmt.Println("Backends:")
	fmt.Printf("  %-12s %s %s\n", "Connector", yesNo(cfg.Connector.Enabled), keyHint(cfg.Connector.APIKey))
	fmt.Printf("  %-12s %s %s\n", "Twin", yesNo(cfg.Twin.Enabled), keyHint(cfg.Twin.APIKey))
	fmt.Printf("  %-12s %s %s\n", "Video", yesNo(cfg.Video.Enabled), keyHint(cfg.Video.APIKey))

	store := connector.NewStore(config.ConnectionsPath())
	if err := store.Load(); err != nil {
		fmt.Printf("\n(could not load connections: %v)\n", err)
		return nil
	}

	fmt.Println("\nConnected apps:")
	apps := store.Apps()
	if len(apps) == 0 {
		fmt.Println("  (none)")
	}
	for _, app := range apps {
		conn, _ := store.Get(app)
		fmt.Printf("  %-12s ✓ %s\n", app, conn.ConnectedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func keyHint(key string) string {
	if key == "" {
		return "(no key)"
	}
	return "(key set)"
}
