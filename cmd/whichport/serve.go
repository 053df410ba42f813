package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamath/whichport"
	"github.com/kamath/whichport/config"
	"github.com/kamath/whichport/dashboard"
	"github.com/kamath/whichport/internal/server"
	"github.com/kamath/whichport/kv"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the whichport dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the whichport dashboard server.

The server will:
  - Load configuration from the YAML file, if one is given
  - Restore the saved watchlist and add configured entries not yet watched
  - Check every entry, then keep re-checking on the auto-refresh schedule
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  whichport serve
  whichport serve -c whichport.yaml
  WHICHPORT_DATA_FILE=/tmp/ports.json whichport serve --port 9000`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
	serveCmd.Flags().IntP("port", "p", 0, "dashboard port (overrides listen_port)")
	serveCmd.Flags().String("data-file", "", "where the watchlist is saved (overrides data_file)")
}

// loadConfig reads the config file if one was given, defaults otherwise.
func loadConfig() (*config.Config, error) {
	path := settings.GetString("config")
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if settings.IsSet("port") {
		cfg.ListenPort = settings.GetInt("port")
	}
	if settings.IsSet("data-file") {
		cfg.DataFile = settings.GetString("data-file")
	}

	store, err := kv.NewFileStore(cfg.DataFile)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}

	opts := append(config.BuildOptions(cfg),
		whichport.WithLogger(logger),
		whichport.WithStore(store),
	)
	m, err := whichport.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	defer func() { _ = m.Close() }()

	added, err := config.Seed(m, config.BuildEntries(cfg))
	if err != nil {
		return fmt.Errorf("failed to seed watchlist: %w", err)
	}

	logger.Info("config loaded",
		"data_file", store.Path(),
		"entries", len(m.Entries()),
		"seeded", added,
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(m, cfg.ListenPort, dashboard.Assets, cfg.Title, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%d", cfg.ListenPort))

	// monitor blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("monitor error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("monitor error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
