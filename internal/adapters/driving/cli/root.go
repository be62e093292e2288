// Package cli holds the cobra commands of the syncbridge binary.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "syncbridge",
	Short: "Synchronise content from local and cloud sources into a knowledge base",
	Long: `syncbridge runs a background synchronisation engine: sources configured
through the local control API are polled continuously, new and modified
content is fetched from the provider and uploaded to the destination
knowledge base exactly once.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.syncbridge)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
