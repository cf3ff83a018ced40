// Farmline is a phone helpline for farmers. Callers ask questions by voice,
// hear synthesized answers in their language, and receive an SMS summary
// when they hang up.
//
// Usage:
//
//	farmline serve [--config /path/to/farmline.yaml]
//	farmline check [--config /path/to/farmline.yaml]
//	farmline --version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "farmline",
		Short:        "Farmline - voice helpline for farmers",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/farmline.local.yaml)")

	rootCmd.AddCommand(
		buildServeCmd(&configFile),
		buildCheckCmd(&configFile),
	)
	rootCmd.SetVersionTemplate(fmt.Sprintf("farmline %s\n", version))
	return rootCmd
}
