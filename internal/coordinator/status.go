package coordinator

import "context"

// State of the coordinator.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Operator-visible status codes.
const (
	StatusActive        = 102 // configuration applied, notifications processed
	StatusSourceMissing = 104 // price source unset or unknown
	StatusConfigInvalid = 201 // settings snapshot failed validation
	StatusBackendError  = 202 // variable directory or subscription API unreachable
	StatusFetchFailed   = 203 // archive query failed, chart may be stale
)

// Status is reported on every state-relevant event.
type Status struct {
	Code    int    `json:"code"`
	State   State  `json:"state"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// StatusReporter is the operator-visible status channel.
type StatusReporter interface {
	Report(ctx context.Context, s Status)
}
