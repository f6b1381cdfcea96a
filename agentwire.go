// Package agentwire is a framework for message-passing agent runtimes.
//
// An agent is an autonomous worker connected to a central broker through a
// bi-directional typed port. The broker owns a plan, enables and disables
// agents at runtime, and dispatches every agent output to a per-agent
// handler that may mutate the plan and feed new inputs back.
//
// Agents run under one of three execution strategies:
//
//   - Task: a goroutine on the shared scheduler (agent.SpawnTask)
//   - Thread: a goroutine pinned to a dedicated OS thread (agent.SpawnThread)
//   - Process: a sandboxed subprocess talking over shared memory
//     (process.Spawn)
//
// All three produce the same (*port.Outer, agent.Kill) pair, so the broker
// treats them uniformly through agent.Cell.
//
// A minimal broker looks like:
//
//	core := broker.NewCore[*Plan]()
//	cell := agent.NewCell(agent.TaskSpawner[In, Out](myAgent{}, logger))
//	broker.Attach(core, "worker", cell, func(plan *Plan, out port.Output[Out]) (broker.Flow, error) {
//		plan.Apply(out.Value)
//		return broker.Continue, nil
//	})
//	_ = cell.Enable(ctx)
//	err := core.Run(ctx, plan)
//
// The broker types most callers need are re-exported here.
package agentwire

import "github.com/hupe1980/agentwire/broker"

// Flow is the signal a dispatch handler returns to control the run loop.
type Flow = broker.Flow

// Flow values.
const (
	Continue = broker.Continue
	Break    = broker.Break
)

// BrokerError is the broker error taxonomy.
type BrokerError = broker.Error
