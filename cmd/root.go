// Package cmd implements the axon CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "⚡"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "axon",
	Short: logo + " axon — tool-call gateway for the live chat page",
	Long: logo + ` axon — the local gateway that brokers tool calls for the chat page:
local tools, OAuth-connected apps, and the personalization backend behind one socket.`,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(memoryCmd)
}
