package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/axonlabs/axon/internal/config"
	"github.com/axonlabs/axon/internal/twin"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Work with twin memory records",
}

func init() {
	memoryCmd.AddCommand(memoryStoreCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryDeleteCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}

func memoryBridge() (*twin.Bridge, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Twin.Enabled || cfg.Twin.APIKey == "" {
		return nil, fmt.Errorf("twin backend not configured — edit %s", config.ConfigPath())
	}
	return twin.NewBridge(twin.NewClient(cfg.Twin.APIKey, cfg.Twin.BaseURL), cfg.Twin.UserID), nil
}

func memoryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func printResponse(out map[string]any) {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", out)
		return
	}
	fmt.Println(string(data))
}

// ---- store -----------------------------------------------------------------

var (
	memoryStoreType string
	memoryStoreData string
)

var memoryStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Append one memory record",
	RunE: func(_ *cobra.Command, _ []string) error {
		bridge, err := memoryBridge()
		if err != nil {
			return err
		}
		var data map[string]any
		if memoryStoreData != "" {
			if err := json.Unmarshal([]byte(memoryStoreData), &data); err != nil {
				return fmt.Errorf("invalid --data JSON: %w", err)
			}
		}

		ctx, cancel := memoryContext()
		defer cancel()
		out, err := bridge.Store(ctx, memoryStoreType, data)
		if err != nil {
			return err
		}
		printResponse(out)
		return nil
	},
}

func init() {
	memoryStoreCmd.Flags().StringVarP(&memoryStoreType, "type", "t", twin.MemoryPreference, "Memory type (preference, activity, context)")
	memoryStoreCmd.Flags().StringVarP(&memoryStoreData, "data", "d", "", "Record data as JSON")
	memoryStoreCmd.MarkFlagRequired("data") //nolint:errcheck
}

// ---- search ----------------------------------------------------------------

var (
	memorySearchType  string
	memorySearchLimit int
)

var memorySearchCmd = &cobra.Command{
	Use:   "search [query-json]",
	Short: "Query memory records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		bridge, err := memoryBridge()
		if err != nil {
			return err
		}
		query := map[string]any{}
		if len(args) == 1 {
			if err := json.Unmarshal([]byte(args[0]), &query); err != nil {
				return fmt.Errorf("invalid query JSON: %w", err)
			}
		}
		if memorySearchType != "" {
			query["memoryType"] = memorySearchType
		}

		ctx, cancel := memoryContext()
		defer cancel()
		out, err := bridge.Retrieve(ctx, query, twin.RetrieveOptions{Limit: memorySearchLimit})
		if err != nil {
			return err
		}
		printResponse(out)
		return nil
	},
}

func init() {
	memorySearchCmd.Flags().StringVarP(&memorySearchType, "type", "t", "", "Restrict to one memory type")
	memorySearchCmd.Flags().IntVarP(&memorySearchLimit, "limit", "n", 0, "Result limit (0 = backend default)")
}

// ---- delete ----------------------------------------------------------------

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id> [id...]",
	Short: "Delete memory records by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		bridge, err := memoryBridge()
		if err != nil {
			return err
		}
		ctx, cancel := memoryContext()
		defer cancel()
		out, err := bridge.Delete(ctx, args)
		if err != nil {
			return err
		}
		printResponse(out)
		return nil
	},
}

// ---- clear -----------------------------------------------------------------

var memoryClearType string

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record of one memory type",
	RunE: func(_ *cobra.Command, _ []string) error {
		bridge, err := memoryBridge()
		if err != nil {
			return err
		}
		ctx, cancel := memoryContext()
		defer cancel()
		out, err := bridge.ClearType(ctx, memoryClearType)
		if err != nil {
			return err
		}
		printResponse(out)
		return nil
	},
}

func init() {
	memoryClearCmd.Flags().StringVarP(&memoryClearType, "type", "t", "", "Memory type to clear")
	memoryClearCmd.MarkFlagRequired("type") //nolint:errcheck
}
