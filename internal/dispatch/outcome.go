package dispatch

import "time"

// FailureKind buckets terminal query failures.
type FailureKind string

const (
	// FailNetwork covers connection errors and retryable server statuses
	// (5xx, 429).
	FailNetwork FailureKind = "network"

	// FailTimeout is a per-attempt wall-clock timeout; retryable and
	// counted against the endpoint's retry budget.
	FailTimeout FailureKind = "timeout"

	// FailAuth is a 401/403; the credentials are wrong, retrying cannot
	// help.
	FailAuth FailureKind = "auth"

	// FailClient is any other 4xx or an unencodable request; terminal.
	FailClient FailureKind = "client"

	// FailDecode means the server answered but the body was not
	// interpretable as a resolution; terminal.
	FailDecode FailureKind = "decode"

	// FailCanceled means the overall run was aborted while the query was
	// in flight or waiting.
	FailCanceled FailureKind = "canceled"
)

// Outcome is the terminal state of one query (or, for patchpal, one beam of
// a query's answer).
type Outcome struct {
	// Index is the originating query's static issue index. Beam outcomes
	// share their query's index; their relative rank order is preserved by
	// list position.
	Index int

	// Label attributes the outcome: endpoint name, variant suffix, and a
	// #rank suffix for beams.
	Label string

	// Text is the resolved text; valid only on success.
	Text string

	// Err is the terminal error; nil on success.
	Err error

	// Kind buckets Err; empty on success.
	Kind FailureKind

	Duration time.Duration
	Attempts int
}

// Succeeded reports whether the query produced resolved text.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Event phases reported while a query runs.
type Phase string

const (
	PhaseStart   Phase = "start"
	PhaseRetry   Phase = "retry"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// Event is a progress notification for one query.
type Event struct {
	Label    string
	Phase    Phase
	Err      error
	Duration time.Duration
	Attempts int
}
