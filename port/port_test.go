package port

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCausationChain(t *testing.T) {
	in := NewInput("speak")
	require.NotEqual(t, [16]byte{}, [16]byte(in.Causation.ID))
	require.False(t, in.Causation.Origin.IsZero())

	t.Run("ChainOutput", func(t *testing.T) {
		out := ChainOutput(in, 42)
		assert.Equal(t, in.Causation, out.Causation)
		assert.Equal(t, 42, out.Value)
	})

	t.Run("ChainInput", func(t *testing.T) {
		out := ChainOutput(in, 42)
		next := ChainInput(out, "again")
		assert.Equal(t, in.Causation, next.Causation)
		assert.Equal(t, "again", next.Value)
	})

	t.Run("Derive", func(t *testing.T) {
		d := DeriveInput(in, 3.14)
		assert.Equal(t, in.Causation, d.Causation)

		out := NewOutput(true)
		do := DeriveOutput(out, "mapped")
		assert.Equal(t, out.Causation, do.Causation)
	})

	t.Run("MultiHopPreservesRoot", func(t *testing.T) {
		root := NewInput(1)
		hop1 := ChainOutput(root, 2)
		hop2 := ChainInput(hop1, 3)
		hop3 := ChainOutput(hop2, 4)
		assert.Equal(t, root.Causation, hop3.Causation)
	})

	t.Run("FreshRoots", func(t *testing.T) {
		a := NewInput(1)
		b := NewInput(1)
		assert.NotEqual(t, a.Causation.ID, b.Causation.ID)
	})
}

func TestPortRoundtrip(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[string, int](Config{InputCapacity: 4, OutputCapacity: 4})

	require.NoError(t, outer.Send(ctx, NewInput("ping")))

	in, err := inner.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", in.Value)

	require.NoError(t, inner.Send(ctx, ChainOutput(in, 7)))

	out, err := outer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Value)
	assert.Equal(t, in.Causation, out.Causation)
}

func TestPortFIFO(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[int, int](Config{InputCapacity: 8, OutputCapacity: 8})

	for i := 0; i < 5; i++ {
		require.NoError(t, outer.Send(ctx, NewInput(i)))
	}
	for i := 0; i < 5; i++ {
		in, err := inner.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, in.Value)
	}
}

func TestOuterCloseDrainsThenErrClosed(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[int, int](Config{InputCapacity: 4, OutputCapacity: 4})

	require.NoError(t, outer.Send(ctx, NewInput(1)))
	require.NoError(t, outer.Send(ctx, NewInput(2)))
	outer.Close()

	in, err := inner.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, in.Value)

	in, err = inner.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Value)

	_, err = inner.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, outer.Send(ctx, NewInput(3)), ErrClosed)
}

func TestInnerCloseDrainsThenErrClosed(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[int, int](Config{InputCapacity: 4, OutputCapacity: 4})

	require.NoError(t, inner.Send(ctx, NewOutput(9)))
	inner.Close()

	out, err := outer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, out.Value)

	_, err = outer.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	_, ok, err := outer.TryNext()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, inner.Send(ctx, NewOutput(10)), ErrClosed)
}

func TestTryNextEmpty(t *testing.T) {
	_, outer := New[int, int](Config{OutputCapacity: 1})
	_, ok, err := outer.TryNext()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestSendUnjam(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[int, int](Config{InputCapacity: 1, OutputCapacity: 1})

	// Jam both directions: the input queue is full and the agent is stuck
	// sending a second output, so it never reaches its next receive.
	require.NoError(t, outer.Send(ctx, NewInput(1)))

	unblocked := make(chan struct{})
	go func() {
		defer close(unblocked)
		assert.NoError(t, inner.Send(ctx, NewOutput(1)))
		assert.NoError(t, inner.Send(ctx, NewOutput(2)))
		in, err := inner.Next(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, in.Value)
	}()

	dropped, err := outer.SendUnjam(ctx, NewInput(2))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dropped, 1)

	select {
	case <-unblocked:
	case <-time.After(5 * time.Second):
		t.Fatal("agent stayed jammed")
	}
}

func TestSendUnjamWithSpace(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[int, int](Config{InputCapacity: 1, OutputCapacity: 1})

	dropped, err := outer.SendUnjam(ctx, NewInput(7))
	require.NoError(t, err)
	assert.Zero(t, dropped)

	in, err := inner.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, in.Value)
}

func TestNotifyWakes(t *testing.T) {
	ctx := context.Background()
	inner, outer := New[int, int](Config{OutputCapacity: 4})

	wake := make(chan struct{}, 1)
	outer.Notify(wake)

	// One conservative token is posted at registration.
	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("no registration token")
	}

	require.NoError(t, inner.Send(ctx, NewOutput(1)))
	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("no wake token after send")
	}

	// Tokens coalesce: many sends, at most one pending token.
	require.NoError(t, inner.Send(ctx, NewOutput(2)))
	require.NoError(t, inner.Send(ctx, NewOutput(3)))
	<-wake
	select {
	case <-wake:
		t.Fatal("tokens did not coalesce")
	default:
	}
}

func TestCapacityZeroHoldsOneElement(t *testing.T) {
	inner, outer := New[int, int](Config{})

	// The first send lands without a receiver; the queue never shrinks
	// below one slot.
	require.NoError(t, outer.Send(context.Background(), NewInput(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := outer.Send(ctx, NewInput(2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	in, err := inner.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, in.Value)
}

func TestContextCancelUnblocksNext(t *testing.T) {
	inner, _ := New[int, int](Config{InputCapacity: 1})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := inner.Next(ctx)
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}
