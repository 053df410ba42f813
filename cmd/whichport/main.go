// Package main is the entry point for the whichport CLI.
//
// whichport can be embedded as a library or run as a standalone binary with
// an optional YAML configuration. This CLI provides the standalone binary.
//
// Usage:
//
//	whichport serve -c whichport.yaml    # Start the dashboard
//	whichport check localhost:3000       # Check one port and exit
//	whichport validate -c whichport.yaml # Validate configuration
//	whichport version                    # Show version info
//
// Every flag can also be set through the environment with a WHICHPORT_
// prefix, e.g. WHICHPORT_LOG_LEVEL=debug or WHICHPORT_DATA_FILE=state.json.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// settings resolves flag values with flag > environment precedence.
var settings = newSettings()

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("WHICHPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "whichport",
	Short: "See which local ports are serving",
	Long: `whichport watches a list of local ports and shows which ones are serving.

Each port is checked with an HTTP request; any response, even an error page,
means something is listening. Results stream live to a web dashboard.

Quick start:
  1. Run: whichport serve
  2. Open http://localhost:4321 in your browser
  3. Add the ports you care about, or pick a common one

Example config:
  listen_port: 4321
  data_file: ${HOME}/.whichport/state.json
  entries:
    - port: 3000
      label: React Dev
    - port: 8080
      path: /healthz`,
	// bind the running command's flags, including inherited ones
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return settings.BindPFlags(cmd.Flags())
	},
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this whichport binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("whichport %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger on stderr at the configured level.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(settings.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}
