package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "wireirc",
	Short:         "IRC server with a WebSocket gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML); created with defaults when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (console, json)")
}
