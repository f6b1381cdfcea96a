package process

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentwire/internal/shm"
	"github.com/hupe1980/agentwire/port"
)

// layout describes where the three record slots live inside the region.
// Parent and child compute it independently from the same SharedConfig.
type layout struct {
	initOff, initLen int
	inOff, inLen     int
	outOff, outLen   int
}

func layoutFor(sc port.SharedConfig) layout {
	l := layout{
		initLen: shm.RecordSize(sc.InitSize),
		inLen:   shm.RecordSize(sc.InputSize),
		outLen:  shm.RecordSize(sc.OutputSize),
	}
	l.inOff = l.initLen
	l.outOff = l.inOff + l.inLen
	return l
}

func (l layout) total() int {
	return l.initLen + l.inLen + l.outLen
}

func (l layout) initSlot(b []byte) []byte { return b[l.initOff : l.initOff+l.initLen] }
func (l layout) inSlot(b []byte) []byte   { return b[l.inOff : l.inOff+l.inLen] }
func (l layout) outSlot(b []byte) []byte  { return b[l.outOff : l.outOff+l.outLen] }

// ErrClosed is returned by Remote operations once the transport has been
// torn down. A child body should treat it as end-of-stream and return.
var ErrClosed = shm.ErrClosed

// Remote is the child-side handle of a process agent's port. Recv and Send
// block on the shared-memory semaphores; both return ErrClosed once the
// parent tears the transport down.
//
// The same struct carries the parent-side pump methods, which use the
// semaphore pairs in the opposite roles.
type Remote[I, O any] struct {
	region *shm.Region
	lay    layout

	inFree  *shm.Sem
	inUsed  *shm.Sem
	outFree *shm.Sem
	outUsed *shm.Sem
}

// Recv blocks until the parent delivers the next input.
func (r *Remote[I, O]) Recv() (port.Input[I], error) {
	var zero port.Input[I]
	if err := r.inUsed.Wait(); err != nil {
		return zero, err
	}
	id, nano, payload, err := shm.GetRecord(r.lay.inSlot(r.region.Bytes()))
	if err != nil {
		return zero, err
	}
	if err := r.inFree.Post(); err != nil {
		return zero, err
	}
	var value I
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, fmt.Errorf("process: decode input: %w", err)
	}
	return port.Input[I]{Value: value, Causation: causationFrom(id, nano)}, nil
}

// TryRecv is like Recv but never blocks; ok is false when no input is
// pending.
func (r *Remote[I, O]) TryRecv() (port.Input[I], bool, error) {
	var zero port.Input[I]
	got, err := r.inUsed.TryWait()
	if err != nil || !got {
		return zero, false, err
	}
	id, nano, payload, err := shm.GetRecord(r.lay.inSlot(r.region.Bytes()))
	if err != nil {
		return zero, false, err
	}
	if err := r.inFree.Post(); err != nil {
		return zero, false, err
	}
	var value I
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, false, fmt.Errorf("process: decode input: %w", err)
	}
	return port.Input[I]{Value: value, Causation: causationFrom(id, nano)}, true, nil
}

// Send blocks until the output slot is free, then delivers out to the
// parent.
func (r *Remote[I, O]) Send(out port.Output[O]) error {
	payload, err := json.Marshal(out.Value)
	if err != nil {
		return fmt.Errorf("process: encode output: %w", err)
	}
	if err := r.outFree.Wait(); err != nil {
		return err
	}
	if err := shm.PutRecord(r.lay.outSlot(r.region.Bytes()), out.Causation.ID, out.Causation.Origin.UnixNano(), payload); err != nil {
		return err
	}
	return r.outUsed.Post()
}

// TrySend is like Send but never blocks; ok is false when the output slot is
// still occupied.
func (r *Remote[I, O]) TrySend(out port.Output[O]) (bool, error) {
	payload, err := json.Marshal(out.Value)
	if err != nil {
		return false, fmt.Errorf("process: encode output: %w", err)
	}
	got, err := r.outFree.TryWait()
	if err != nil || !got {
		return false, err
	}
	if err := shm.PutRecord(r.lay.outSlot(r.region.Bytes()), out.Causation.ID, out.Causation.Origin.UnixNano(), payload); err != nil {
		return false, err
	}
	return true, r.outUsed.Post()
}

// Close releases the region and semaphores, unblocking any pending Recv or
// Send with shm.ErrClosed.
func (r *Remote[I, O]) Close() error {
	first := r.region.Close()
	for _, s := range []*shm.Sem{r.inFree, r.inUsed, r.outFree, r.outUsed} {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sendInput is the parent half of Recv.
func (r *Remote[I, O]) sendInput(in port.Input[I]) error {
	payload, err := json.Marshal(in.Value)
	if err != nil {
		return fmt.Errorf("process: encode input: %w", err)
	}
	if err := r.inFree.Wait(); err != nil {
		return err
	}
	if err := shm.PutRecord(r.lay.inSlot(r.region.Bytes()), in.Causation.ID, in.Causation.Origin.UnixNano(), payload); err != nil {
		return err
	}
	return r.inUsed.Post()
}

// recvOutput is the parent half of Send.
func (r *Remote[I, O]) recvOutput() (port.Output[O], error) {
	var zero port.Output[O]
	if err := r.outUsed.Wait(); err != nil {
		return zero, err
	}
	id, nano, payload, err := shm.GetRecord(r.lay.outSlot(r.region.Bytes()))
	if err != nil {
		return zero, err
	}
	if err := r.outFree.Post(); err != nil {
		return zero, err
	}
	var value O
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, fmt.Errorf("process: decode output: %w", err)
	}
	return port.Output[O]{Value: value, Causation: causationFrom(id, nano)}, nil
}

// readInit decodes the initial agent state written by the parent.
func (r *Remote[I, O]) readInit(dst any) error {
	_, _, payload, err := shm.GetRecord(r.lay.initSlot(r.region.Bytes()))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("process: decode init state: %w", err)
	}
	return nil
}

// writeInit serializes the initial agent state for the child.
func (r *Remote[I, O]) writeInit(src any) error {
	payload, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("process: encode init state: %w", err)
	}
	return shm.PutRecord(r.lay.initSlot(r.region.Bytes()), uuid.Nil, 0, payload)
}

func causationFrom(id [16]byte, nano int64) port.Causation {
	return port.Causation{ID: uuid.UUID(id), Origin: time.Unix(0, nano)}
}
