// Ecomax-cli talks to ecoMAX360 heating controllers.
//
// It reads thermostat and boiler parameters, changes presets and setpoints,
// watches readings live, and includes offline tools for encoding and
// checking protocol frames. Controllers are reached over a serial-to-TCP
// bridge or a local RS-485 adapter.
//
// Usage:
//
//	ecomax-cli [command] [flags]
//
// See 'ecomax-cli --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ecomax-cli",
	Short: "ecoMAX360 Controller Utility",
	Long: `A command-line utility for ecoMAX360 heating controllers.

Reads thermostat and boiler values, changes presets and setpoints, and
provides offline tools for building and checking protocol frames.

The controller is taken from the configuration file (see 'ecomax-cli config')
or given directly with --host/--port or --device.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			return logging.Initialize(logLevel)
		}
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		if outputFormat == formatJSON {
			_ = newPrinter(cmd).PrintJSON(info)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ecomax-cli %s (commit: %s, %s, %s)\n", info.Version, info.Commit, info.GoVersion, info.Platform)
	},
}
