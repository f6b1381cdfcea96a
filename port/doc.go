// Package port implements the bi-directional communication channel between
// an agent and its broker.
//
// A port has an input and an output side. The input side is used by the
// broker to send messages to the agent, and the output side is used by the
// agent to send messages to the broker. The two directions are independent
// bounded FIFO queues produced together by New: the agent holds the Inner
// half, the broker holds the Outer half.
//
// Every message travels inside an envelope (Input or Output) that carries a
// Causation value. The causation is generated once when a root message is
// constructed and copied unchanged by every derivation (ChainOutput,
// ChainInput, DeriveInput, DeriveOutput), which lets a broker handler
// correlate an output with the input(s) that caused it across an arbitrary
// chain of agent hops.
//
// For agents located in a separate process the port is extended by a
// SharedConfig declaring fixed serialized sizes, enabling a pre-allocated
// shared-memory transport (see the agent/process package).
package port
