// Package cmd provides the CLI commands for sessiond.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "sessiond - Session Security Engine",
	Long: `sessiond runs the session lifecycle and continuous validation engine.

It manages authenticated sessions end to end: creation with device binding
and per-session key material, continuous per-request validation (context,
device, travel, behavior), graduated risk response, background behavioral
profiling, and maintenance sweeps for cleanup and key rotation.

Quick start:
  1. Create a config file: sessiond.yaml
  2. Run: sessiond serve

Configuration:
  Config is loaded from sessiond.yaml in the current directory,
  $HOME/.sessiond/, or /etc/sessiond/.

  Environment variables can override config values with the SESSIOND_ prefix.
  Example: SESSIOND_SERVER_METRICS_ADDR=:9100

Commands:
  serve         Run the engine daemon
  check-config  Load and validate the configuration, then exit
  stop          Stop the running daemon
  reset         Remove persistent forensics and event data
  version       Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sessiond.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
