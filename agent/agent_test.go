package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentwire/port"
)

// doubler echoes every input multiplied by two.
type doubler struct{}

func (doubler) Name() string { return "doubler" }

func (doubler) Port() port.Config {
	return port.Config{InputCapacity: 8, OutputCapacity: 8}
}

func (doubler) Run(ctx context.Context, p *port.Inner[int, int]) error {
	for {
		in, err := p.Next(ctx)
		if err != nil {
			if errors.Is(err, port.ErrClosed) {
				return nil
			}
			return err
		}
		if err := p.Send(ctx, port.ChainOutput(in, in.Value*2)); err != nil {
			return err
		}
	}
}

func roundtrip(t *testing.T, outer *port.Outer[int, int]) {
	t.Helper()
	ctx := context.Background()

	in := port.NewInput(21)
	require.NoError(t, outer.Send(ctx, in))

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := outer.Next(rctx)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, in.Causation, out.Causation)
}

func TestSpawnTask(t *testing.T) {
	outer, kill := SpawnTask[int, int](context.Background(), doubler{}, nil)
	defer kill()
	roundtrip(t, outer)
}

func TestSpawnThread(t *testing.T) {
	outer, kill := SpawnThread[int, int](context.Background(), doubler{}, nil)
	defer kill()
	roundtrip(t, outer)
}

func TestKillClosesPort(t *testing.T) {
	ctx := context.Background()
	outer, kill := SpawnTask[int, int](ctx, doubler{}, nil)
	kill()

	assert.ErrorIs(t, outer.Send(ctx, port.NewInput(1)), port.ErrClosed)
}

func TestCellLifecycle(t *testing.T) {
	ctx := context.Background()
	cell := NewCell(TaskSpawner[int, int](doubler{}, nil))

	assert.Equal(t, Vacant, cell.State())
	assert.False(t, cell.IsEnabled())
	assert.False(t, cell.IsInitialized())
	_, ok := cell.Enabled()
	assert.False(t, ok)

	require.NoError(t, cell.Enable(ctx))
	assert.Equal(t, Enabled, cell.State())
	assert.True(t, cell.IsEnabled())
	assert.True(t, cell.IsInitialized())

	outer, ok := cell.Enabled()
	require.True(t, ok)
	roundtrip(t, outer)

	// Enabling again is a no-op and keeps the same instance.
	changed, err := cell.TryEnable(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	again, ok := cell.Enabled()
	require.True(t, ok)
	assert.Same(t, outer, again)

	cell.Disable()
	assert.Equal(t, Disabled, cell.State())
	assert.True(t, cell.IsInitialized())
	_, ok = cell.Enabled()
	assert.False(t, ok)

	changed, err = cell.TryEnable(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	cell.Kill()
	assert.Equal(t, Vacant, cell.State())
}

func TestCellDisableBuffersOutputs(t *testing.T) {
	ctx := context.Background()
	cell := NewCell(TaskSpawner[int, int](doubler{}, nil))
	require.NoError(t, cell.Enable(ctx))

	outer, ok := cell.Enabled()
	require.True(t, ok)

	cell.Disable()

	// The agent keeps running while disabled; its output stays queued.
	in := port.NewInput(5)
	require.NoError(t, outer.Send(ctx, in))

	changed, err := cell.TryEnable(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := outer.Next(rctx)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Value)
	assert.Equal(t, in.Causation, out.Causation)

	cell.Kill()
}

func TestCellSpawnError(t *testing.T) {
	wantErr := errors.New("spawn denied")
	cell := NewCell(func(context.Context) (*port.Outer[int, int], Kill, error) {
		return nil, nil, wantErr
	})

	err := cell.Enable(context.Background())
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, Vacant, cell.State())
}

func TestCellBindWakes(t *testing.T) {
	ctx := context.Background()
	cell := NewCell(TaskSpawner[int, int](doubler{}, nil))
	require.NoError(t, cell.Enable(ctx))
	defer cell.Kill()

	wake := make(chan struct{}, 1)
	cell.Bind(wake)

	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("no token after binding an enabled cell")
	}

	outer, ok := cell.Enabled()
	require.True(t, ok)
	require.NoError(t, outer.Send(ctx, port.NewInput(1)))

	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("no token after agent output")
	}
}
