package whichport

import (
	"time"

	"github.com/kamath/whichport/internal/probe"
	"github.com/kamath/whichport/internal/store"
)

// Status is the liveness state of a watched entry.
//
// Status is a string type that holds one of four values: [StatusUnknown],
// [StatusChecking], [StatusActive] or [StatusInactive].
type Status string

const (
	// StatusUnknown means the entry has not been checked yet.
	StatusUnknown Status = "unknown"

	// StatusChecking means a check is in progress. The other fields of
	// [PortStatus] still describe the previous check.
	StatusChecking Status = "checking"

	// StatusActive means something answered on the entry's address.
	StatusActive Status = "active"

	// StatusInactive means nothing answered before the timeout.
	StatusInactive Status = "inactive"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// PortStatus is the latest known status of one entry.
//
// Fields describing the response are set only when the check produced
// them: PageTitle and HTTPStatus need a readable response, Opaque marks a
// response whose content could not be read, and Error is set only for
// inactive entries.
type PortStatus struct {
	// ID is the id of the [WatchEntry] this status belongs to.
	ID string `json:"id"`

	Status Status `json:"status"`

	// PageTitle is the <title> of the response body.
	PageTitle string `json:"pageTitle,omitempty"`

	// LastChecked is when the running check started, or when the last one
	// finished. Zero until the first check.
	LastChecked time.Time `json:"lastChecked,omitzero"`

	// ResponseTimeMs is the latency of the last completed check, nil until
	// one completes. Sub-millisecond responses report 0.
	ResponseTimeMs *int64 `json:"responseTimeMs,omitempty"`

	// Error describes why the entry is inactive.
	Error string `json:"error,omitempty"`

	HTTPStatus int  `json:"httpStatus,omitempty"`
	Opaque     bool `json:"opaque,omitempty"`
}

// EntryStatus pairs an entry with its latest status. It is what status
// callbacks receive and what [Monitor.Snapshot] returns.
type EntryStatus struct {
	Entry  WatchEntry `json:"entry"`
	Status PortStatus `json:"status"`
}

// unknownStatus is reported for entries that have no stored status.
func unknownStatus(id string) PortStatus {
	return PortStatus{ID: id, Status: StatusUnknown}
}

// toPortStatus flattens a stored status into its public form.
func toPortStatus(s store.Status) PortStatus {
	ps := PortStatus{
		ID:          s.ID,
		Status:      Status(s.State()),
		LastChecked: s.LastChecked,
	}
	if s.Result == nil {
		return ps
	}

	ms := s.Result.Latency().Milliseconds()
	ps.ResponseTimeMs = &ms
	switch r := s.Result.(type) {
	case probe.Active:
		ps.PageTitle = r.Title
		ps.HTTPStatus = r.HTTPStatus
	case probe.Opaque:
		ps.Opaque = true
	case probe.Inactive:
		ps.Error = r.Err
	}
	return ps
}
