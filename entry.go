package whichport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kamath/whichport/internal/probe"
)

// DefaultHost is used when an entry is added without a host.
const DefaultHost = "localhost"

var (
	// ErrDuplicateEntry is returned when an entry with the same host, port
	// and endpoint path is already watched.
	ErrDuplicateEntry = errors.New("entry already watched")

	// ErrEntryNotFound is returned when no entry has the given id.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidPort is returned when a port is outside 1-65535.
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
)

// WatchEntry is one watched endpoint.
//
// Two entries are the same endpoint when host, port and endpoint path all
// match; the same port with different paths is watched separately.
type WatchEntry struct {
	ID           string    `json:"id"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	EndpointPath string    `json:"endpointPath,omitempty"`
	Label        string    `json:"label,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// URL returns the address the entry is probed at.
func (e WatchEntry) URL() string {
	return e.target().URL()
}

func (e WatchEntry) target() probe.Target {
	return probe.Target{Host: e.Host, Port: e.Port, Path: e.EndpointPath}
}

// entryKey is the identity used for duplicate detection.
type entryKey struct {
	host string
	port int
	path string
}

func (e WatchEntry) key() entryKey {
	return entryKey{host: e.Host, port: e.Port, path: e.EndpointPath}
}

// NewEntry describes an entry to add. Host defaults to [DefaultHost].
type NewEntry struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	EndpointPath string `json:"endpointPath"`
	Label        string `json:"label"`
}

// EntryUpdate is a partial edit of an entry. Nil fields are left unchanged.
type EntryUpdate struct {
	Host         *string `json:"host,omitempty"`
	Port         *int    `json:"port,omitempty"`
	EndpointPath *string `json:"endpointPath,omitempty"`
	Label        *string `json:"label,omitempty"`
}

// apply returns e with the update applied and normalized.
func (u EntryUpdate) apply(e WatchEntry) (WatchEntry, error) {
	if u.Host != nil {
		e.Host = normalizeHost(*u.Host)
	}
	if u.Port != nil {
		if err := validatePort(*u.Port); err != nil {
			return WatchEntry{}, err
		}
		e.Port = *u.Port
	}
	if u.EndpointPath != nil {
		e.EndpointPath = strings.TrimSpace(*u.EndpointPath)
	}
	if u.Label != nil {
		e.Label = strings.TrimSpace(*u.Label)
	}
	return e, nil
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return DefaultHost
	}
	return host
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w, got %d", ErrInvalidPort, port)
	}
	return nil
}
