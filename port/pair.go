package port

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by send and receive operations after the respective
// direction of the port has been closed.
var ErrClosed = errors.New("port: closed")

// state is the channel plumbing shared by the two halves of one port.
type state[I, O any] struct {
	in  chan Input[I]
	out chan Output[O]

	inOnce  sync.Once
	outOnce sync.Once
	inDone  chan struct{}
	outDone chan struct{}

	// notify holds the broker's wake channel (chan struct{}, cap 1) once the
	// Outer half has been registered with a broker. Stored as a pointer so
	// sends can load it without locking.
	notify atomic.Pointer[chan struct{}]
}

func (s *state[I, O]) closeIn() {
	s.inOnce.Do(func() { close(s.inDone) })
}

func (s *state[I, O]) closeOut() {
	s.outOnce.Do(func() {
		close(s.outDone)
		s.wake()
	})
}

// wake posts a coalesced token to the bound notify channel, if any.
func (s *state[I, O]) wake() {
	if ch := s.notify.Load(); ch != nil {
		select {
		case *ch <- struct{}{}:
		default:
		}
	}
}

// New creates a connected port pair with the capacities declared in cfg. The
// Inner half belongs to the agent, the Outer half to the broker. Each
// direction is an independent bounded FIFO holding at least one element, so
// a sender always lands its first item and its wake token even while the
// receiver is parked.
func New[I, O any](cfg Config) (*Inner[I, O], *Outer[I, O]) {
	s := &state[I, O]{
		in:      make(chan Input[I], max(1, cfg.InputCapacity)),
		out:     make(chan Output[O], max(1, cfg.OutputCapacity)),
		inDone:  make(chan struct{}),
		outDone: make(chan struct{}),
	}
	return &Inner[I, O]{s: s}, &Outer[I, O]{s: s}
}

// Inner is the agent-side half of a port: it receives inputs from the broker
// and sends outputs to it.
type Inner[I, O any] struct {
	s *state[I, O]
}

// Next blocks until an input is available, the broker closes its half, or ctx
// is done. It returns ErrClosed once the input direction is closed and
// drained.
func (p *Inner[I, O]) Next(ctx context.Context) (Input[I], error) {
	var zero Input[I]
	// Prefer queued inputs over a pending close so nothing is dropped.
	select {
	case in := <-p.s.in:
		return in, nil
	default:
	}
	select {
	case in := <-p.s.in:
		return in, nil
	case <-p.s.inDone:
		select {
		case in := <-p.s.in:
			return in, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Send delivers an output to the broker, blocking while the output queue is
// full. It returns ErrClosed if the broker has killed the agent, and ctx.Err
// if ctx is done first.
func (p *Inner[I, O]) Send(ctx context.Context, out Output[O]) error {
	select {
	case <-p.s.outDone:
		return ErrClosed
	default:
	}
	select {
	case p.s.out <- out:
		p.s.wake()
		return nil
	case <-p.s.outDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that the agent will produce no more outputs. The broker
// observes it as agent termination after draining queued outputs.
func (p *Inner[I, O]) Close() {
	p.s.closeOut()
}

// Outer is the broker-side half of a port: it sends inputs to the agent and
// receives outputs from it.
type Outer[I, O any] struct {
	s *state[I, O]
}

// Send delivers an input to the agent, blocking while the input queue is
// full.
func (p *Outer[I, O]) Send(ctx context.Context, in Input[I]) error {
	select {
	case <-p.s.inDone:
		return ErrClosed
	default:
	}
	select {
	case p.s.in <- in:
		return nil
	case <-p.s.inDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendUnjam delivers an input like Send, but discards the agent's queued
// outputs while the send is blocked. A full input queue can mean the agent
// is itself stuck sending into a full output queue and never reaches its
// next receive; draining outputs breaks that mutual jam. It returns how many
// outputs were discarded.
func (p *Outer[I, O]) SendUnjam(ctx context.Context, in Input[I]) (int, error) {
	dropped := 0
	for {
		select {
		case <-p.s.inDone:
			return dropped, ErrClosed
		default:
		}
		select {
		case p.s.in <- in:
			return dropped, nil
		case <-p.s.out:
			dropped++
		case <-p.s.outDone:
			// No more outputs will arrive; fall back to a plain send.
			select {
			case p.s.in <- in:
				return dropped, nil
			case <-p.s.inDone:
				return dropped, ErrClosed
			case <-ctx.Done():
				return dropped, ctx.Err()
			}
		case <-p.s.inDone:
			return dropped, ErrClosed
		case <-ctx.Done():
			return dropped, ctx.Err()
		}
	}
}

// Next blocks until the agent produces an output, the agent closes its half,
// or ctx is done. It returns ErrClosed once the output direction is closed
// and drained, which the broker maps to agent termination.
func (p *Outer[I, O]) Next(ctx context.Context) (Output[O], error) {
	var zero Output[O]
	select {
	case out := <-p.s.out:
		return out, nil
	default:
	}
	select {
	case out := <-p.s.out:
		return out, nil
	case <-p.s.outDone:
		select {
		case out := <-p.s.out:
			return out, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryNext returns a queued output without blocking. ok is false when the
// queue is empty. It returns ErrClosed once the output direction is closed
// and drained.
func (p *Outer[I, O]) TryNext() (Output[O], bool, error) {
	var zero Output[O]
	select {
	case out := <-p.s.out:
		return out, true, nil
	default:
	}
	select {
	case <-p.s.outDone:
		select {
		case out := <-p.s.out:
			return out, true, nil
		default:
			return zero, false, ErrClosed
		}
	default:
		return zero, false, nil
	}
}

// Notify registers the broker's wake channel. After registration every output
// sent by the agent posts a coalesced token to ch. One token is posted
// immediately so outputs sent before registration are not missed.
func (p *Outer[I, O]) Notify(ch chan struct{}) {
	p.s.notify.Store(&ch)
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Close signals that the broker will send no more inputs. The agent observes
// it as ErrClosed from Next after draining queued inputs and should exit its
// run loop.
func (p *Outer[I, O]) Close() {
	p.s.closeIn()
}
