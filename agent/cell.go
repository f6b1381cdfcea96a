package agent

import (
	"context"
	"sync"

	"github.com/hupe1980/agentwire/port"
)

// CellState is the lifecycle state of an agent slot.
type CellState int

const (
	// Vacant means no agent instance exists in the slot.
	Vacant CellState = iota

	// Enabled means the agent is running and the broker dispatches its
	// outputs.
	Enabled

	// Disabled means the agent is still running but the broker ignores its
	// outputs. They accumulate in the port queue until re-enable or kill.
	Disabled
)

// String implements fmt.Stringer.
func (s CellState) String() string {
	switch s {
	case Vacant:
		return "vacant"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Cell tracks the lifecycle of one agent slot inside a broker. A vacant cell
// spawns the agent on first enable. Disabling does not stop the agent, it
// only detaches its outputs from broker dispatch, so enable after disable is
// cheap and loses nothing. Kill terminates the instance and returns the cell
// to vacant, from where the next enable spawns a fresh instance.
//
// All methods are safe for concurrent use.
type Cell[I, O any] struct {
	mu    sync.Mutex
	state CellState
	outer *port.Outer[I, O]
	kill  Kill
	spawn SpawnFunc[I, O]
	wake  chan struct{}
}

// NewCell creates a vacant cell that will use spawn to start the agent.
func NewCell[I, O any](spawn SpawnFunc[I, O]) *Cell[I, O] {
	return &Cell[I, O]{spawn: spawn}
}

// Bind registers the broker's wake channel. Ports spawned by this cell post
// a coalesced token to ch whenever the agent produces an output.
func (c *Cell[I, O]) Bind(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wake = ch
	if c.outer != nil && ch != nil {
		c.outer.Notify(ch)
	}
}

// Enable makes the cell's agent available for dispatch, spawning it first if
// the cell is vacant. Enabling an enabled cell is a no-op.
func (c *Cell[I, O]) Enable(ctx context.Context) error {
	_, err := c.enable(ctx)
	return err
}

// TryEnable is like Enable but additionally reports whether the call changed
// the cell's state.
func (c *Cell[I, O]) TryEnable(ctx context.Context) (bool, error) {
	return c.enable(ctx)
}

func (c *Cell[I, O]) enable(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Enabled:
		return false, nil
	case Disabled:
		c.state = Enabled
		// Outputs may have queued up while disabled.
		if c.wake != nil {
			c.outer.Notify(c.wake)
		}
		return true, nil
	default:
		outer, kill, err := c.spawn(ctx)
		if err != nil {
			return false, err
		}
		c.outer = outer
		c.kill = kill
		c.state = Enabled
		if c.wake != nil {
			outer.Notify(c.wake)
		}
		return true, nil
	}
}

// Disable detaches the agent's outputs from broker dispatch without stopping
// the agent. Disabling a vacant or disabled cell is a no-op.
func (c *Cell[I, O]) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Enabled {
		c.state = Disabled
	}
}

// Kill terminates the agent instance, if any, and returns the cell to
// vacant.
func (c *Cell[I, O]) Kill() {
	c.mu.Lock()
	kill := c.kill
	c.state = Vacant
	c.outer = nil
	c.kill = nil
	c.mu.Unlock()
	if kill != nil {
		kill()
	}
}

// Enabled returns the broker half of the agent's port when the cell is
// enabled, and ok=false otherwise.
func (c *Cell[I, O]) Enabled() (*port.Outer[I, O], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Enabled {
		return nil, false
	}
	return c.outer, true
}

// State returns the cell's current lifecycle state.
func (c *Cell[I, O]) State() CellState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsEnabled reports whether the cell is enabled.
func (c *Cell[I, O]) IsEnabled() bool {
	return c.State() == Enabled
}

// IsInitialized reports whether an agent instance exists, enabled or not.
func (c *Cell[I, O]) IsInitialized() bool {
	return c.State() != Vacant
}
