package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/connector"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List connectable apps and their connection state",
	RunE:  runApps,
}

func runApps(_ *cobra.Command, _ []string) error {
	catalog, err := connector.LoadCatalog(config.CatalogPath())
	if err != nil {
		return err
	}
	store := connector.NewStore(config.ConnectionsPath())
	if err := store.Load(); err != nil {
		return err
	}

	for _, app := range catalog.Apps {
		mark := "✗"
		if store.Connected(app.Name) {
			mark = "✓"
		}
		fmt.Printf("  %s %-12s %s\n", mark, app.Name, app.Description)
	}
	return nil
}
