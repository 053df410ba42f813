package probe

import "time"

// State is the liveness of a target as determined by a probe.
type State string

const (
	// StateActive means the target answered one of the two tiers.
	StateActive State = "active"

	// StateInactive means neither tier received a response.
	StateInactive State = "inactive"
)

// TimeoutMessage is the error text recorded when a probe exceeds its deadline.
const TimeoutMessage = "Request timed out"

// Result is the outcome of a single probe.
//
// Result is a closed set of variants: [Active], [Opaque] and [Inactive].
// Each carries only the fields that make sense for it, so an inactive
// result can never hold a page title and an opaque one never holds a
// status code.
type Result interface {
	// State reports whether the target is active or inactive.
	State() State

	// Latency is the total time spent across all tiers that ran.
	Latency() time.Duration

	isResult()
}

// Active is a readable response from the first tier.
type Active struct {
	// Elapsed is the time until the response headers arrived.
	Elapsed time.Duration

	// Title is the trimmed content of the first <title> tag, if any.
	Title string

	// HTTPStatus is the numeric status code. Any code, including 4xx and
	// 5xx, proves liveness.
	HTTPStatus int
}

// Opaque is a response from the second tier whose content and status
// could not be inspected.
type Opaque struct {
	Elapsed time.Duration
}

// Inactive means no response was received from either tier.
type Inactive struct {
	// Elapsed is the timeout when TimedOut is set, the measured time otherwise.
	Elapsed time.Duration

	// Err is a human readable description of the failure.
	Err string

	// TimedOut is set when the probe deadline expired.
	TimedOut bool
}

func (Active) State() State   { return StateActive }
func (Opaque) State() State   { return StateActive }
func (Inactive) State() State { return StateInactive }

func (r Active) Latency() time.Duration   { return r.Elapsed }
func (r Opaque) Latency() time.Duration   { return r.Elapsed }
func (r Inactive) Latency() time.Duration { return r.Elapsed }

func (Active) isResult()   {}
func (Opaque) isResult()   {}
func (Inactive) isResult() {}
