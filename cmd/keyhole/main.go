package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "keyhole",
		Short: "Fine-grained observable store tooling",
		Long: `Keyhole is a small observable store with fine-grained change
notification: observers read state through tracking views and are only
re-notified when a key they actually read changes.

This CLI runs the development-time inspection server over a demo store,
useful for poking at the dispatch/notify cycle from curl or a browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keyhole %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
