package agent

import (
	"context"

	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/port"
)

// SpawnThread runs the agent loop on a goroutine pinned to a dedicated OS
// thread. Use it for loops that are CPU-heavy or rely on thread-local state,
// for example agents wrapping C libraries. The thread is released when the
// loop returns.
func SpawnThread[I, O any](ctx context.Context, a Agent[I, O], logger logging.Logger) (*port.Outer[I, O], Kill) {
	return spawnLoop(ctx, a, logger, true)
}

// ThreadSpawner adapts SpawnThread to the SpawnFunc shape expected by Cell.
func ThreadSpawner[I, O any](a Agent[I, O], logger logging.Logger) SpawnFunc[I, O] {
	return func(ctx context.Context) (*port.Outer[I, O], Kill, error) {
		outer, kill := SpawnThread(ctx, a, logger)
		return outer, kill, nil
	}
}
