package broker

import (
	"errors"
	"fmt"
)

// Kind classifies broker errors.
type Kind int

const (
	// KindSpawn is a synchronous spawn failure while enabling an agent.
	KindSpawn Kind = iota

	// KindHandler is an error returned by a dispatch handler. It terminates
	// the run loop.
	KindHandler

	// KindPollExtra is an error returned by the PollExtra hook.
	KindPollExtra

	// KindAgentTerminated means an enabled agent closed its output stream.
	KindAgentTerminated
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindHandler:
		return "handler"
	case KindPollExtra:
		return "poll extra"
	case KindAgentTerminated:
		return "agent terminated"
	default:
		return "unknown"
	}
}

// Error is the broker error taxonomy. Agent names the agent involved, empty
// for KindPollExtra.
type Error struct {
	Kind  Kind
	Agent string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Agent == "" {
		if e.Err == nil {
			return fmt.Sprintf("broker: %s", e.Kind)
		}
		return fmt.Sprintf("broker: %s: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("broker: agent %q: %s", e.Agent, e.Kind)
	}
	return fmt.Sprintf("broker: agent %q: %s: %v", e.Agent, e.Kind, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a broker Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == kind
}
