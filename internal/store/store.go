package store

import (
	"time"

	"github.com/kamath/whichport/internal/probe"
)

// State is the status of an entry as shown to the display layer.
type State string

const (
	// StateUnknown means the entry has never been probed.
	StateUnknown State = "unknown"

	// StateChecking means a probe is in flight.
	StateChecking State = "checking"

	// StateActive means the last probe reached the target.
	StateActive State = "active"

	// StateInactive means the last probe did not reach the target.
	StateInactive State = "inactive"
)

// Status is the stored status of a single entry.
//
// A Status never duplicates probe fields; it wraps the last [probe.Result]
// so its shape follows the result variant. While Checking is set, Result
// still holds the previous outcome (last known title and so on) until the
// running probe overwrites it.
type Status struct {
	// ID is the watch entry identifier.
	ID string

	// Target is the address the current or last probe was sent to.
	Target string

	// LastChecked is when the current probe started while Checking, and when
	// the last probe completed otherwise.
	LastChecked time.Time

	// Checking is set while a probe for this entry is in flight.
	Checking bool

	// Result is the last completed probe outcome, nil if none completed yet.
	Result probe.Result
}

// State derives the display state from the stored fields.
func (s Status) State() State {
	switch {
	case s.Checking:
		return StateChecking
	case s.Result == nil:
		return StateUnknown
	case s.Result.State() == probe.StateActive:
		return StateActive
	default:
		return StateInactive
	}
}

// Store defines the check lifecycle of entry statuses and subscriptions to it.
//
// Store implementations must be safe for concurrent access. No method blocks
// on I/O; all are synchronous mutations or snapshots.
type Store interface {
	// BeginCheck marks id as being probed at target. It returns false,
	// changing nothing, if a probe for id is already in flight or if id is not
	// live at target.
	BeginCheck(id, target string, at time.Time) bool

	// CompleteCheck records the outcome of the probe started by BeginCheck and
	// clears the in-flight marker. It returns false, discarding result, if the
	// probe is no longer the in-flight one for id at target.
	CompleteCheck(id, target string, result probe.Result, at time.Time) bool

	// Reconcile sets the live entries, mapping each id to its target. Statuses
	// and in-flight probes of ids missing from live, or of another target, are
	// dropped.
	Reconcile(live map[string]string)

	// Get returns the status of id. The boolean is false if there is none,
	// which callers treat as unknown.
	Get(id string) (Status, bool)

	// GetAll returns a snapshot of all stored statuses.
	GetAll() []Status

	// Subscribe returns a channel that receives every status change.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Status

	// Unsubscribe removes a subscription and closes the channel.
	Unsubscribe(ch <-chan Status)
}
