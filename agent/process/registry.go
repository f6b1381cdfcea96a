package process

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/agentwire/internal/shm"
	"github.com/hupe1980/agentwire/port"
)

const (
	agentEnv     = "AGENTWIRE_PROCESS_AGENT"
	parentPIDEnv = "AGENTWIRE_PARENT_PID"

	// ArgsEnv carries the extra CLI arguments the parent passed via
	// Options.Args, unit-separator joined, for child bodies that want them.
	ArgsEnv = "AGENTWIRE_PROCESS_ARGS"
)

// Transport descriptors inherited by the child, in ExtraFiles order.
const (
	regionFd  = 3
	inFreeFd  = 4
	inUsedFd  = 5
	outFreeFd = 6
	outUsedFd = 7
)

// armed records that Init ran in this process, so Spawn can refuse to fork a
// binary that would never branch into the child path.
var armed atomic.Bool

// Registry maps agent names to child-side entrypoints.
type Registry struct {
	entries map[string]func() error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]func() error)}
}

// Handle registers the process agent type A under its zero value's name.
// The type parameters cannot be inferred, so calls name all three:
//
//	process.Handle[counterAgent, CounterIn, CounterOut](reg)
func Handle[A Agent[I, O], I, O any](reg *Registry) {
	var zero A
	name := zero.Name()
	if _, ok := reg.entries[name]; ok {
		panic(fmt.Sprintf("process: duplicate registration of agent %q", name))
	}
	reg.entries[name] = func() error {
		var a A
		rem, err := connect[I, O](a.Shared())
		if err != nil {
			return err
		}
		defer rem.Close()
		if err := rem.readInit(&a); err != nil {
			return err
		}
		return a.RunRemote(rem)
	}
}

// Init is the child/parent branch point. It must run early in main (or
// TestMain) of every binary that spawns process agents.
//
// In the parent, the process environment variables are absent: Init arms the
// package and returns so main can continue. In a child it looks up the agent
// named by the environment, runs its body against the inherited transport
// and exits the process without returning.
func Init(reg *Registry) {
	name := os.Getenv(agentEnv)
	if name == "" {
		armed.Store(true)
		return
	}

	// The descriptors die with the parent (PDEATHSIG), but guard against the
	// parent having died between fork and exec.
	if ppid, err := strconv.Atoi(os.Getenv(parentPIDEnv)); err != nil || os.Getppid() != ppid {
		fmt.Fprintf(os.Stderr, "process agent %q: parent is gone, exiting\n", name)
		os.Exit(1)
	}

	entry, ok := reg.entries[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "process agent %q: not registered\n", name)
		os.Exit(1)
	}
	if err := entry(); err != nil {
		fmt.Fprintf(os.Stderr, "process agent %q: %v\n", name, err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Args returns the extra CLI arguments passed by the parent via
// Options.Args.
func Args() []string {
	return decodeArgs(os.Getenv(ArgsEnv))
}

// connect attaches to the transport descriptors inherited from the parent.
func connect[I, O any](sc port.SharedConfig) (*Remote[I, O], error) {
	lay := layoutFor(sc)
	region, err := shm.RegionFromFile(os.NewFile(regionFd, "agentwire-shm"), lay.total())
	if err != nil {
		return nil, err
	}
	return &Remote[I, O]{
		region:  region,
		lay:     lay,
		inFree:  shm.SemFromFile(os.NewFile(inFreeFd, "agentwire-in-free")),
		inUsed:  shm.SemFromFile(os.NewFile(inUsedFd, "agentwire-in-used")),
		outFree: shm.SemFromFile(os.NewFile(outFreeFd, "agentwire-out-free")),
		outUsed: shm.SemFromFile(os.NewFile(outUsedFd, "agentwire-out-used")),
	}, nil
}

const argsSep = "\x1f"

func encodeArgs(args []string) string {
	return strings.Join(args, argsSep)
}

func decodeArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, argsSep)
}
