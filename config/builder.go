package config

import (
	"errors"
	"fmt"

	"github.com/kamath/whichport"
)

// BuildOptions converts parsed configuration into Monitor options.
//
// The data file store is not included; callers open it themselves so they
// control its lifetime.
func BuildOptions(cfg *Config) []whichport.Option {
	opts := []whichport.Option{
		whichport.WithTimeout(cfg.Timeout.Duration()),
	}

	if cfg.MaxConcurrency > 0 {
		opts = append(opts, whichport.WithMaxConcurrency(cfg.MaxConcurrency))
	}

	if ar := cfg.AutoRefresh; ar != nil {
		opts = append(opts, whichport.WithAutoRefresh(whichport.AutoRefreshConfig{
			Enabled:         ar.Enabled,
			IntervalSeconds: int(ar.Interval.Duration().Seconds()),
		}))
	}

	return opts
}

// BuildEntries converts configured entries into watchlist additions,
// preserving file order.
func BuildEntries(cfg *Config) []whichport.NewEntry {
	entries := make([]whichport.NewEntry, 0, len(cfg.Entries))
	for _, ec := range cfg.Entries {
		entries = append(entries, whichport.NewEntry{
			Host:         ec.Host,
			Port:         ec.Port,
			EndpointPath: ec.Path,
			Label:        ec.Label,
		})
	}
	return entries
}

// EntryAdder is the part of [whichport.Monitor] used for seeding.
type EntryAdder interface {
	AddEntry(n whichport.NewEntry) (whichport.WatchEntry, error)
}

// Seed adds every entry that is not already watched and returns how many
// were added. Entries already in the watchlist are skipped silently.
func Seed(m EntryAdder, entries []whichport.NewEntry) (int, error) {
	added := 0
	for i, n := range entries {
		_, err := m.AddEntry(n)
		switch {
		case err == nil:
			added++
		case errors.Is(err, whichport.ErrDuplicateEntry):
			// already watched from a previous run
		default:
			return added, fmt.Errorf("entries[%d]: %w", i, err)
		}
	}
	return added, nil
}
