package whichport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kamath/whichport/kv"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	logger          *slog.Logger
	timeout         time.Duration
	autoRefresh     AutoRefreshConfig
	store           kv.Store
	maxConcurrency  int
	transport       http.RoundTripper
	statusCallbacks []func(EntryStatus)
}

// Option is a function that configures a [Monitor] instance during construction.
//
// Options return an error if validation fails.
type Option func(*monitorConfig) error

// WithLogger sets a custom [slog.Logger] for the Monitor.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTimeout sets the per-check timeout shared by both probe tiers.
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithAutoRefresh sets the auto-refresh configuration used when the store
// holds none. A saved configuration always wins, so changes made through
// [Monitor.SetAutoRefresh] survive restarts.
//
// The interval is clamped to [MinIntervalSeconds, MaxIntervalSeconds].
func WithAutoRefresh(c AutoRefreshConfig) Option {
	return func(cfg *monitorConfig) error {
		cfg.autoRefresh = c.Normalize()
		return nil
	}
}

// WithStore sets where the watchlist and auto-refresh configuration are
// saved. Defaults to an in-memory store, which forgets everything on exit.
//
// Returns an error if the store is nil.
func WithStore(s kv.Store) Option {
	return func(cfg *monitorConfig) error {
		if s == nil {
			return errors.New("store cannot be nil")
		}
		cfg.store = s
		return nil
	}
}

// WithMaxConcurrency limits how many entries are checked at once during
// [Monitor.CheckAll]. By default every entry is checked at the same time.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithTransport sets the HTTP transport used for probing.
//
// Returns an error if the transport is nil.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *monitorConfig) error {
		if rt == nil {
			return errors.New("transport cannot be nil")
		}
		cfg.transport = rt
		return nil
	}
}

// WithStatusCallback registers a function to be called after every
// completed check.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks run on the goroutine that performed the check, so they must be
// non-blocking. Panics within callbacks are recovered and logged.
//
// Example:
//
//	m, err := whichport.New(
//	    whichport.WithStatusCallback(func(r whichport.EntryStatus) {
//	        if r.Status.Status == whichport.StatusInactive {
//	            log.Printf("%s went away", r.Entry.URL())
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(EntryStatus)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}
