// Package commands provides the CLI commands for the PixelForge server.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "pixelforge",
	Short: "PixelForge - tool-using image agent server",
	Long: `PixelForge runs an AI image-editing agent behind an HTTP API.

Clients create sessions, send chat turns, and receive the agent's
model output and tool activity as a server-sent event stream while
credits are metered per executed tool call.

Run 'pixelforge serve' to start the server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("pixelforge %s (%s)\n", Version, BuildTime))
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
