// Package broker implements the dispatch core connecting agents to a shared
// plan.
//
// A Core owns a set of attached agent cells. Run repeatedly scans every
// enabled cell for a ready output and feeds it to that agent's handler, one
// handler at a time; after each handled output the scan restarts from the
// first cell, so earlier attachments have priority. When a full scan finds
// nothing ready the core parks on its wake channel until an agent produces
// output, never busy-looping, even with zero attached or zero enabled
// agents.
//
// Handlers return a Flow: Continue keeps the loop running, Break ends Run
// successfully. A handler error is the only error class that terminates the
// loop; agent-side failures are logged by the execution strategies and show
// up here at worst as an agent termination.
package broker
