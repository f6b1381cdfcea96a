// Package agent defines the agent contract and the in-process execution
// strategies of the runtime.
//
// An agent is a unit that runs an autonomous loop, receiving inputs and
// producing outputs through the Inner half of a port. Two strategies run
// agents inside the broker's process: SpawnTask schedules the loop on a
// plain goroutine, SpawnThread pins it to a dedicated OS thread for loops
// that are CPU-heavy or thread-affine. A third strategy, running the agent
// in a sandboxed subprocess, lives in the agent/process subpackage.
//
// Cell tracks the lifecycle of one agent slot inside a broker: vacant until
// first enabled, then toggling between enabled and disabled without
// restarting the agent, until killed back to vacant.
package agent
