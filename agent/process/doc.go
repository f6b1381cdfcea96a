// Package process runs agents in sandboxed subprocesses.
//
// The parent re-executes its own binary, hands the child a shared-memory
// region and four counting semaphores through inherited file descriptors,
// and pumps messages between the broker-facing port pair and the region. The
// child recognizes itself through environment variables inside Init, decodes
// its initial state from the region, runs the agent body synchronously
// against a Remote, and never returns to main.
//
// Init must therefore run early in main (or TestMain for process agent
// tests) of every binary that spawns process agents, with every such agent
// registered in the Registry via Handle.
//
// A supervisor watches each child. When the child exits on its own the
// supervisor consults the agent's exit strategy: close the port (the broker
// observes agent termination), restart from fresh state, or restart and
// re-deliver the input that was in flight (the default).
package process
