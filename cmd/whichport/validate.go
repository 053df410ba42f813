package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a whichport configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for checking a file before committing it.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  whichport validate -c whichport.yaml
  WHICHPORT_CONFIG=whichport.yaml whichport validate`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := settings.GetString("config")
	if configFile == "" {
		return errors.New("a config file is required (--config or WHICHPORT_CONFIG)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	refresh := "saved setting, or every 10s"
	if ar := cfg.AutoRefresh; ar != nil {
		refresh = "every " + ar.Interval.Duration().String()
		if !ar.Enabled {
			refresh = "off"
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Listen port:  %d\n", cfg.ListenPort)
	fmt.Printf("  Data file:    %s\n", cfg.DataFile)
	fmt.Printf("  Timeout:      %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Auto-refresh: %s\n", refresh)
	fmt.Printf("  Entries:      %d\n", len(cfg.Entries))

	return nil
}
