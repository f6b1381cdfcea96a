package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentwire/agent"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/port"
)

// Handler consumes one output of an agent, mutating the plan as needed. It
// may send new inputs back through the agent's cell. Returning Break ends
// the run loop successfully; returning an error terminates it with a
// KindHandler error.
type Handler[P, O any] func(plan P, out port.Output[O]) (Flow, error)

// PollExtra is an optional per-scan hook for work that does not originate
// from an agent port. It reports whether it made progress; when no source
// and no hook made progress the core parks until woken.
type PollExtra[P any] func(plan P) (Flow, bool, error)

// Options configures a Core.
type Options[P any] struct {
	// Logger receives dispatch-level events.
	Logger logging.Logger

	// Registerer receives the broker metrics. Defaults to a no-op.
	Registerer prometheus.Registerer

	// PollExtra is invoked once per scan, after the attached cells.
	PollExtra PollExtra[P]
}

// source is one attached cell, reduced to the closed-set operations the scan
// loop needs. The value-type glue lives in the closures built by Attach, so
// dispatch needs no reflection.
type source[P any] struct {
	name    string
	enabled func() bool
	enable  func(ctx context.Context) error
	disable func()
	poll    func(plan P, fence time.Time) (Flow, bool, error)
}

// Core is the dispatch core over a plan of type P. Construction is cheap and
// spawns nothing; agents come to life through their cells.
//
// Core methods must be driven from a single goroutine.
type Core[P any] struct {
	opts    Options[P]
	logger  logging.Logger
	metrics *metrics
	wake    chan struct{}
	sources []*source[P]
}

// NewCore creates an empty dispatch core.
func NewCore[P any](optFns ...func(o *Options[P])) *Core[P] {
	opts := Options[P]{
		Registerer: noopRegisterer{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Core[P]{
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
		metrics: newMetrics(opts.Registerer),
		wake:    make(chan struct{}, 1),
	}
}

// Waker returns the core's wake channel. Attached cells post to it
// automatically; external producers feeding PollExtra should post a token
// after publishing work.
func (c *Core[P]) Waker() chan struct{} {
	return c.wake
}

// Attach registers cell under name with its typed handler. Outputs of the
// cell's agent are dispatched to handler during Run in attach order. Attach
// must not be called while Run is active.
func Attach[P, I, O any](c *Core[P], name string, cell *agent.Cell[I, O], handler Handler[P, O]) {
	cell.Bind(c.wake)
	c.sources = append(c.sources, &source[P]{
		name:    name,
		enabled: cell.IsEnabled,
		enable:  cell.Enable,
		disable: cell.Disable,
		poll: func(plan P, fence time.Time) (Flow, bool, error) {
			outer, ok := cell.Enabled()
			if !ok {
				return Continue, false, nil
			}
			for {
				out, ok, err := outer.TryNext()
				if err != nil {
					return Continue, false, &Error{Kind: KindAgentTerminated, Agent: name, Err: err}
				}
				if !ok {
					return Continue, false, nil
				}
				if !out.Causation.Origin.After(fence) {
					c.metrics.discarded.WithLabelValues(name).Inc()
					c.logger.Debug("output discarded by fence", "agent", name, "causation", out.Causation.ID)
					continue
				}
				c.metrics.dispatched.WithLabelValues(name).Inc()
				flow, err := handler(plan, out)
				if err != nil {
					c.metrics.handlerErrors.WithLabelValues(name).Inc()
					return flow, true, &Error{Kind: KindHandler, Agent: name, Err: err}
				}
				return flow, true, nil
			}
		},
	})
}

// Enable enables the attached cell registered under name, spawning its
// agent if the cell is vacant. A spawn failure is wrapped in a KindSpawn
// error naming the agent.
func (c *Core[P]) Enable(ctx context.Context, name string) error {
	src, err := c.source(name)
	if err != nil {
		return err
	}
	if err := src.enable(ctx); err != nil {
		return &Error{Kind: KindSpawn, Agent: name, Err: err}
	}
	return nil
}

// Disable disables the attached cell registered under name without stopping
// its agent.
func (c *Core[P]) Disable(name string) error {
	src, err := c.source(name)
	if err != nil {
		return err
	}
	src.disable()
	return nil
}

func (c *Core[P]) source(name string) (*source[P], error) {
	for _, src := range c.sources {
		if src.name == name {
			return src, nil
		}
	}
	return nil, fmt.Errorf("broker: no agent attached under %q", name)
}

// Run dispatches agent outputs to their handlers until a handler breaks,
// a handler or the PollExtra hook fails, an enabled agent terminates, or ctx
// is done. Outputs originating before the call are discarded.
func (c *Core[P]) Run(ctx context.Context, plan P) error {
	return c.RunWithFence(ctx, plan, time.Now())
}

// RunWithFence is Run with an explicit fence: outputs whose causation
// originates at or before fence are discarded instead of dispatched. Use a
// fence in the past to consume outputs buffered across an enable/disable
// cycle, or a fence in the future to drop everything already in flight.
func (c *Core[P]) RunWithFence(ctx context.Context, plan P, fence time.Time) error {
	for {
		c.metrics.enabled.Set(float64(c.countEnabled()))

		progressed := false
		for _, src := range c.sources {
			flow, handled, err := src.poll(plan, fence)
			if err != nil {
				return err
			}
			if !handled {
				continue
			}
			if flow == Break {
				return nil
			}
			// Restart the whole scan so earlier attachments keep priority.
			progressed = true
			break
		}
		if progressed {
			continue
		}

		if c.opts.PollExtra != nil {
			flow, handled, err := c.opts.PollExtra(plan)
			if err != nil {
				return &Error{Kind: KindPollExtra, Err: err}
			}
			if handled {
				if flow == Break {
					return nil
				}
				continue
			}
		}

		select {
		case <-c.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Core[P]) countEnabled() int {
	n := 0
	for _, src := range c.sources {
		if src.enabled() {
			n++
		}
	}
	return n
}
