package whichport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kamath/whichport/kv"
)

const (
	// MinIntervalSeconds is the shortest auto-refresh interval accepted.
	MinIntervalSeconds = 5

	// MaxIntervalSeconds is the longest auto-refresh interval accepted.
	MaxIntervalSeconds = 300

	// FallbackIntervalSeconds replaces interval input that is not a number.
	FallbackIntervalSeconds = 30

	refreshConfigKey = "which-port-refresh-config"
)

// AutoRefreshConfig controls periodic re-checking of all entries.
type AutoRefreshConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"intervalSeconds"`
}

// DefaultAutoRefresh is the configuration used when none has been saved.
var DefaultAutoRefresh = AutoRefreshConfig{Enabled: true, IntervalSeconds: 10}

// Normalize clamps IntervalSeconds into [MinIntervalSeconds, MaxIntervalSeconds].
func (c AutoRefreshConfig) Normalize() AutoRefreshConfig {
	c.IntervalSeconds = clampInterval(c.IntervalSeconds)
	return c
}

// Interval returns IntervalSeconds as a duration.
func (c AutoRefreshConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ParseIntervalSeconds converts user input to a clamped interval in seconds.
// Input that is not an integer yields [FallbackIntervalSeconds].
func ParseIntervalSeconds(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return FallbackIntervalSeconds
	}
	return clampInterval(n)
}

func clampInterval(n int) int {
	return min(max(n, MinIntervalSeconds), MaxIntervalSeconds)
}

// loadAutoRefresh reads the saved configuration, returning fallback when
// nothing was saved.
func loadAutoRefresh(store kv.Store, fallback AutoRefreshConfig) (AutoRefreshConfig, error) {
	data, ok, err := store.Get(refreshConfigKey)
	if err != nil {
		return AutoRefreshConfig{}, fmt.Errorf("load auto-refresh config: %w", err)
	}
	if !ok {
		return fallback.Normalize(), nil
	}

	var cfg AutoRefreshConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AutoRefreshConfig{}, fmt.Errorf("decode auto-refresh config: %w", err)
	}
	return cfg.Normalize(), nil
}

func saveAutoRefresh(store kv.Store, cfg AutoRefreshConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode auto-refresh config: %w", err)
	}
	if err := store.Put(refreshConfigKey, data); err != nil {
		return fmt.Errorf("save auto-refresh config: %w", err)
	}
	return nil
}
