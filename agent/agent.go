package agent

import (
	"context"

	"github.com/hupe1980/agentwire/port"
)

// Agent is the contract implemented by every agent type. Run is the agent's
// loop: it receives inputs and sends outputs through the Inner half of the
// port and returns when the port closes or ctx is done. A nil return and
// port.ErrClosed both count as a clean exit.
type Agent[I, O any] interface {
	// Name identifies the agent in logs and errors.
	Name() string

	// Port declares the queue capacities of the agent's port.
	Port() port.Config

	// Run executes the agent loop until the port closes or ctx is done.
	Run(ctx context.Context, p *port.Inner[I, O]) error
}

// Kill terminates a running agent. For task and thread agents it closes the
// broker half of the port and cancels the loop context, so the loop exits
// cooperatively; the call returns without waiting for the exit. For process
// agents it kills the subprocess and waits for the supervisor to finish.
type Kill func()

// SpawnFunc starts an agent and returns the broker half of its port together
// with a Kill handle. Cell calls it on first enable.
type SpawnFunc[I, O any] func(ctx context.Context) (*port.Outer[I, O], Kill, error)
