package agent

import (
	"context"
	"errors"
	"runtime"

	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/port"
)

// SpawnTask runs the agent loop on a goroutine. This is the default strategy
// for lightweight agents that mostly wait on channels or I/O.
func SpawnTask[I, O any](ctx context.Context, a Agent[I, O], logger logging.Logger) (*port.Outer[I, O], Kill) {
	return spawnLoop(ctx, a, logger, false)
}

func spawnLoop[I, O any](ctx context.Context, a Agent[I, O], logger logging.Logger, pinned bool) (*port.Outer[I, O], Kill) {
	log := logging.OrNoOp(logger)
	inner, outer := port.New[I, O](a.Port())
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer inner.Close()
		defer func() {
			if r := recover(); r != nil {
				log.Error("agent loop panicked", "agent", a.Name(), "panic", r)
			}
		}()
		if pinned {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		log.Debug("agent loop started", "agent", a.Name())
		err := a.Run(ctx, inner)
		switch {
		case err == nil, errors.Is(err, port.ErrClosed), errors.Is(err, context.Canceled):
			log.Debug("agent loop finished", "agent", a.Name())
		default:
			log.Error("agent loop failed", "agent", a.Name(), "error", err)
		}
	}()

	kill := func() {
		outer.Close()
		cancel()
	}
	return outer, kill
}

// TaskSpawner adapts SpawnTask to the SpawnFunc shape expected by Cell.
func TaskSpawner[I, O any](a Agent[I, O], logger logging.Logger) SpawnFunc[I, O] {
	return func(ctx context.Context) (*port.Outer[I, O], Kill, error) {
		outer, kill := SpawnTask(ctx, a, logger)
		return outer, kill, nil
	}
}
