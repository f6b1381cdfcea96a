package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentwire/agent"
	"github.com/hupe1980/agentwire/internal/shm"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/port"
)

// Agent is the contract of an agent running in a subprocess. The value must
// be JSON-serializable: the parent marshals it as the child's initial state
// and the child unmarshals it into a zero value before calling RunRemote.
type Agent[I, O any] interface {
	// Name identifies the agent in logs, errors and the registry.
	Name() string

	// Port declares the queue capacities of the parent-side port.
	Port() port.Config

	// Shared declares the serialized payload budgets of the shared-memory
	// transport.
	Shared() port.SharedConfig

	// RunRemote is the child-side body. It runs synchronously against the
	// shared-memory transport and returns when Recv reports ErrClosed or
	// the agent is done.
	RunRemote(r *Remote[I, O]) error
}

// ExitStrategy tells the supervisor how to react when the child exits on its
// own.
type ExitStrategy int

const (
	// ExitRetry restarts the agent and re-delivers the input that was in
	// flight when the child died. This is the default.
	ExitRetry ExitStrategy = iota

	// ExitRestart restarts the agent from fresh state without re-delivery.
	ExitRestart

	// ExitClose closes the port. The broker observes agent termination.
	ExitClose
)

// String implements fmt.Stringer.
func (e ExitStrategy) String() string {
	switch e {
	case ExitRetry:
		return "retry"
	case ExitRestart:
		return "restart"
	case ExitClose:
		return "close"
	default:
		return "unknown"
	}
}

// ExitStrategist is optionally implemented by process agents that want a
// non-default exit strategy, possibly depending on the exit code.
type ExitStrategist interface {
	ExitStrategy(exitCode int) ExitStrategy
}

// Options configures Spawn.
type Options struct {
	// Logger receives supervisor events and the child's stdout/stderr lines.
	Logger logging.Logger

	// Exe is the binary to execute. Defaults to the current binary.
	Exe string

	// Args are extra CLI arguments for the child, also exposed to the child
	// through ArgsEnv.
	Args []string

	// Env is extra environment for the child, in "KEY=VALUE" form, appended
	// to the inherited environment.
	Env []string

	// Files are extra descriptors to inherit, after the transport ones.
	Files []*os.File
}

// Spawn starts a process agent and returns the broker half of its port. The
// first child start is synchronous, so a missing binary or exec failure is
// reported here; later restarts are handled by the supervisor. Spawn panics
// when Init was not called, because a spawned child would then loop forever
// re-executing the parent.
func Spawn[I, O any](ctx context.Context, a Agent[I, O], optFns ...func(o *Options)) (*port.Outer[I, O], agent.Kill, error) {
	if !armed.Load() {
		panic("process: Init was not called before Spawn")
	}

	opts := Options{
		Logger: logging.NewDefaultSlogLogger(),
		Exe:    os.Args[0],
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	inner, outer := port.New[I, O](a.Port())
	sup := &supervisor[I, O]{
		agent:  a,
		opts:   opts,
		inner:  inner,
		killed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	inc, err := sup.start(ctx)
	if err != nil {
		inner.Close()
		return nil, nil, err
	}
	go sup.run(ctx, inc)

	return outer, sup.kill, nil
}

// Spawner adapts Spawn to the agent.SpawnFunc shape expected by a Cell.
func Spawner[I, O any](a Agent[I, O], optFns ...func(o *Options)) agent.SpawnFunc[I, O] {
	return func(ctx context.Context) (*port.Outer[I, O], agent.Kill, error) {
		return Spawn(ctx, a, optFns...)
	}
}

// incarnation is one running child with its transport.
type incarnation[I, O any] struct {
	cmd    *exec.Cmd
	rem    *Remote[I, O]
	stdout io.ReadCloser
	stderr io.ReadCloser
}

type supervisor[I, O any] struct {
	agent Agent[I, O]
	opts  Options
	inner *port.Inner[I, O]

	mu  sync.Mutex
	cmd *exec.Cmd

	killOnce sync.Once
	killed   chan struct{}
	done     chan struct{}

	// lastInput is re-delivered after a restart under ExitRetry.
	lastInput *port.Input[I]
}

// start launches one child incarnation: fresh region and semaphores, init
// state written, binary re-executed with the transport descriptors.
func (s *supervisor[I, O]) start(ctx context.Context) (*incarnation[I, O], error) {
	name := s.agent.Name()
	lay := layoutFor(s.agent.Shared())

	region, err := shm.CreateRegion("agentwire-"+name, lay.total())
	if err != nil {
		return nil, err
	}
	rem := &Remote[I, O]{region: region, lay: lay}
	sems := []**shm.Sem{&rem.inFree, &rem.inUsed, &rem.outFree, &rem.outUsed}
	inits := []uint{1, 0, 1, 0}
	for i, sp := range sems {
		sem, err := shm.NewSem(fmt.Sprintf("agentwire-%s-sem%d", name, i), inits[i])
		if err != nil {
			rem.Close()
			return nil, err
		}
		*sp = sem
	}

	if err := rem.writeInit(s.agent); err != nil {
		rem.Close()
		return nil, err
	}

	cmd := exec.CommandContext(ctx, s.opts.Exe, s.opts.Args...)
	cmd.Env = append(os.Environ(),
		agentEnv+"="+name,
		parentPIDEnv+"="+strconv.Itoa(os.Getpid()),
		ArgsEnv+"="+encodeArgs(s.opts.Args),
	)
	cmd.Env = append(cmd.Env, s.opts.Env...)
	cmd.ExtraFiles = append([]*os.File{
		region.File(), rem.inFree.File(), rem.inUsed.File(), rem.outFree.File(), rem.outUsed.File(),
	}, s.opts.Files...)
	// The child must not outlive the parent.
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		rem.Close()
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		rem.Close()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		rem.Close()
		return nil, fmt.Errorf("process: spawn %q: %w", name, err)
	}
	s.opts.Logger.Info("process agent started", "agent", name, "pid", cmd.Process.Pid)

	s.mu.Lock()
	s.cmd = cmd
	// A kill issued while this incarnation was starting targeted the previous
	// child; make sure this one dies too.
	select {
	case <-s.killed:
		_ = cmd.Process.Kill()
	default:
	}
	s.mu.Unlock()

	return &incarnation[I, O]{cmd: cmd, rem: rem, stdout: stdout, stderr: stderr}, nil
}

// run supervises incarnations until the agent is killed or its exit strategy
// says close.
func (s *supervisor[I, O]) run(ctx context.Context, inc *incarnation[I, O]) {
	defer close(s.done)
	log := s.opts.Logger
	name := s.agent.Name()

	for {
		exitCode := s.serve(ctx, inc)

		select {
		case <-s.killed:
			s.inner.Close()
			return
		default:
		}
		if ctx.Err() != nil {
			s.inner.Close()
			return
		}

		strategy := ExitRetry
		if es, ok := any(s.agent).(ExitStrategist); ok {
			strategy = es.ExitStrategy(exitCode)
		}
		log.Warn("process agent exited", "agent", name, "code", exitCode, "strategy", strategy)

		switch strategy {
		case ExitClose:
			s.inner.Close()
			return
		case ExitRestart:
			s.lastInput = nil
		}

		next, err := s.start(ctx)
		if err != nil {
			log.Error("process agent restart failed", "agent", name, "error", err)
			s.inner.Close()
			return
		}
		inc = next
	}
}

// serve pumps one incarnation until the child exits, then tears the
// transport down and reaps the pumps. It returns the child's exit code.
func (s *supervisor[I, O]) serve(ctx context.Context, inc *incarnation[I, O]) int {
	log := s.opts.Logger
	name := s.agent.Name()

	pumpCtx, cancel := context.WithCancel(ctx)
	g, pumpCtx := errgroup.WithContext(pumpCtx)

	g.Go(func() error {
		// Re-deliver the input that was in flight when the previous
		// incarnation died.
		if s.lastInput != nil {
			if err := inc.rem.sendInput(*s.lastInput); err != nil {
				return nil
			}
		}
		for {
			in, err := s.inner.Next(pumpCtx)
			if err != nil {
				return nil
			}
			s.lastInput = &in
			if err := inc.rem.sendInput(in); err != nil {
				return nil
			}
		}
	})
	g.Go(func() error {
		for {
			out, err := inc.rem.recvOutput()
			if err != nil {
				return nil
			}
			if err := s.inner.Send(pumpCtx, out); err != nil {
				return nil
			}
		}
	})

	// The pipes must be drained before Wait closes them.
	var logWG sync.WaitGroup
	logWG.Add(2)
	go func() { defer logWG.Done(); pipeLogs(log, name, "stdout", inc.stdout) }()
	go func() { defer logWG.Done(); pipeLogs(log, name, "stderr", inc.stderr) }()
	logWG.Wait()

	err := inc.cmd.Wait()
	cancel()
	if cerr := inc.rem.Close(); cerr != nil {
		log.Warn("process transport close", "agent", name, "error", cerr)
	}
	_ = g.Wait()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	default:
		log.Error("process agent wait failed", "agent", name, "error", err)
		return -1
	}
}

// kill SIGKILLs the current child and blocks until the supervisor finished
// tearing down. Safe to call more than once.
func (s *supervisor[I, O]) kill() {
	s.killOnce.Do(func() { close(s.killed) })
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	<-s.done
}

// pipeLogs forwards one child stream into the logger, line by line.
func pipeLogs(log logging.Logger, name, stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Info("child", "agent", name, "stream", stream, "line", sc.Text())
	}
}
