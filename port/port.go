package port

import (
	"time"

	"github.com/google/uuid"
)

// Config declares the queue capacities of an agent's port.
//
// A capacity of zero is treated as one. The broker discovers ready outputs
// by polling, so every queue must be able to hold at least one element for a
// pending item to be observable; a capacity of one still keeps the data as
// fresh as a bounded queue can.
type Config struct {
	// InputCapacity bounds the broker→agent queue.
	InputCapacity int

	// OutputCapacity bounds the agent→broker queue.
	OutputCapacity int
}

// SharedConfig extends a port with fixed serialized payload sizes for
// cross-process shared-memory transport. Each size is the maximum number of
// bytes the serialized form of the respective value may occupy. Types with
// dynamic data (slices, strings) must declare the largest possible size.
type SharedConfig struct {
	// InitSize is the payload budget for the serialized initial agent state.
	InitSize int

	// InputSize is the payload budget for one serialized input value.
	InputSize int

	// OutputSize is the payload budget for one serialized output value.
	OutputSize int
}

// Causation is the opaque correlation value attached to every message. It is
// generated exactly once, when a root message is constructed, and copied
// unchanged by every derivation. Origin records when the root message was
// created and feeds the broker's fence filtering.
type Causation struct {
	ID     uuid.UUID
	Origin time.Time
}

// NewCausation creates a fresh causation value with Origin set to now.
func NewCausation() Causation {
	return Causation{ID: uuid.New(), Origin: time.Now()}
}

// Input is a message envelope travelling broker→agent.
type Input[T any] struct {
	// Value is the input value.
	Value T

	// Causation correlates this message with the chain it belongs to.
	Causation Causation
}

// Output is a message envelope travelling agent→broker.
type Output[T any] struct {
	// Value is the output value.
	Value T

	// Causation correlates this message with the chain it belongs to.
	Causation Causation
}

// NewInput creates a root input message with a freshly generated causation.
func NewInput[T any](value T) Input[T] {
	return Input[T]{Value: value, Causation: NewCausation()}
}

// NewOutput creates a root output message with a freshly generated causation.
func NewOutput[T any](value T) Output[T] {
	return Output[T]{Value: value, Causation: NewCausation()}
}

// ChainOutput creates an output carrying value but the same causation as the
// input that produced it. Free functions are used for chaining because Go
// methods cannot introduce the second value type parameter.
func ChainOutput[I, O any](in Input[I], value O) Output[O] {
	return Output[O]{Value: value, Causation: in.Causation}
}

// ChainInput creates an input carrying value but the same causation as the
// output that produced it, for feeding the next agent in a pipeline.
func ChainInput[O, I any](out Output[O], value I) Input[I] {
	return Input[I]{Value: value, Causation: out.Causation}
}

// DeriveInput creates an input for another port preserving the causation of
// the original input.
func DeriveInput[A, B any](in Input[A], value B) Input[B] {
	return Input[B]{Value: value, Causation: in.Causation}
}

// DeriveOutput creates an output for another port preserving the causation
// of the original output.
func DeriveOutput[A, B any](out Output[A], value B) Output[B] {
	return Output[B]{Value: value, Causation: out.Causation}
}
