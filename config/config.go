// Package config provides YAML configuration parsing for the whichport binary.
//
// The configuration seeds the watchlist and sets the defaults a fresh data
// file starts from. Entries added or removed through the dashboard are kept
// in the data file; seeded entries are only added when not already watched.
//
// Example configuration:
//
//	title: Dev Ports
//	listen_port: 4321
//	data_file: ${HOME}/.whichport/state.json
//	timeout: 5s
//
//	auto_refresh:
//	  enabled: true
//	  interval: 10s
//
//	entries:
//	  - port: 3000
//	    label: React Dev
//	  - host: 127.0.0.1
//	    port: 8080
//	    path: /healthz
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kamath/whichport"
)

const (
	defaultListenPort = 4321
	defaultDataFile   = "whichport.json"

	// minTimeout keeps probes from failing on ordinary local latency.
	minTimeout = 100 * time.Millisecond
	maxTimeout = time.Minute

	minRefreshInterval = 5 * time.Second
	maxRefreshInterval = 300 * time.Second
)

// Config is the root configuration structure for whichport.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Which Port" if not set.
	Title string `yaml:"title"`

	// ListenPort is the HTTP port the dashboard is served on. Defaults to 4321.
	ListenPort int `yaml:"listen_port"`

	// DataFile is where the watchlist and auto-refresh settings are saved.
	// Supports environment variable substitution.
	DataFile string `yaml:"data_file"`

	// Timeout bounds a single check, across both probe tiers.
	// Defaults to 5s.
	Timeout Duration `yaml:"timeout"`

	// MaxConcurrency limits simultaneous checks. Zero means unlimited.
	MaxConcurrency int `yaml:"max_concurrency"`

	// AutoRefresh is the schedule used until one is saved from the dashboard.
	AutoRefresh *AutoRefreshConfig `yaml:"auto_refresh"`

	// Entries are added to the watchlist on startup unless already watched.
	Entries []EntryConfig `yaml:"entries"`
}

// AutoRefreshConfig configures periodic re-checking.
type AutoRefreshConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between rounds, between 5s and 300s. Defaults to 10s.
	Interval Duration `yaml:"interval"`
}

// EntryConfig defines one watched port.
type EntryConfig struct {
	// Host defaults to localhost. Supports environment variable substitution.
	Host string `yaml:"host"`

	Port int `yaml:"port"`

	// Path is requested instead of the root, e.g. /healthz.
	Path string `yaml:"path"`

	Label string `yaml:"label"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in DataFile and entry hosts.
// Defaults are applied for ListenPort (4321), DataFile and Timeout (5s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.ListenPort == 0 {
		cfg.ListenPort = defaultListenPort
	}
	if cfg.DataFile == "" {
		cfg.DataFile = defaultDataFile
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(5 * time.Second)
	}
	if cfg.AutoRefresh != nil && cfg.AutoRefresh.Interval == 0 {
		cfg.AutoRefresh.Interval = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 1 and 65535, got %d", c.ListenPort)
	}

	expanded, err := expandEnvVars(c.DataFile)
	if err != nil {
		return fmt.Errorf("data_file: %w", err)
	}
	c.DataFile = expanded

	if d := c.Timeout.Duration(); d < minTimeout || d > maxTimeout {
		return fmt.Errorf("timeout must be between %s and %s, got %s", minTimeout, maxTimeout, d)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if ar := c.AutoRefresh; ar != nil {
		d := ar.Interval.Duration()
		if d < minRefreshInterval || d > maxRefreshInterval {
			return fmt.Errorf("auto_refresh.interval must be between %s and %s, got %s",
				minRefreshInterval, maxRefreshInterval, d)
		}
		if d%time.Second != 0 {
			return fmt.Errorf("auto_refresh.interval must be whole seconds, got %s", d)
		}
	}

	seen := make(map[string]int, len(c.Entries))
	for i := range c.Entries {
		e := &c.Entries[i]

		host, err := expandEnvVars(strings.TrimSpace(e.Host))
		if err != nil {
			return fmt.Errorf("entries[%d]: host: %w", i, err)
		}
		e.Host = host
		e.Path = strings.TrimSpace(e.Path)
		e.Label = strings.TrimSpace(e.Label)

		if e.Port < 1 || e.Port > 65535 {
			return fmt.Errorf("entries[%d]%s: port must be between 1 and 65535, got %d", i, e.describe(), e.Port)
		}

		if strings.ContainsAny(e.Host, "/:?# ") {
			return fmt.Errorf("entries[%d]%s: host must be a bare hostname or IPv4 address, got %q", i, e.describe(), e.Host)
		}

		key := e.key()
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("entries[%d]%s: duplicates entries[%d]", i, e.describe(), prev)
		}
		seen[key] = i
	}

	return nil
}

// key identifies an entry the way the watchlist does for duplicate detection.
func (e EntryConfig) key() string {
	host := e.Host
	if host == "" {
		host = whichport.DefaultHost
	}
	return fmt.Sprintf("%s:%d%s", host, e.Port, e.Path)
}

// describe returns the label in parentheses for error messages, if any.
func (e EntryConfig) describe() string {
	if e.Label == "" {
		return ""
	}
	return " (" + e.Label + ")"
}
