package wiretest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// EnvTestID names the test whose body runs in the child process.
const EnvTestID = "AGENTWIRE_TEST_ID"

// Options configures Fork.
type Options struct {
	// Timeout bounds the child's run time.
	Timeout time.Duration

	// Env is extra environment for the child, in "KEY=VALUE" form.
	Env []string
}

// Fork reports whether the caller is the forked child. In the parent it
// re-executes the test binary restricted to exactly this test, waits for it
// and fails the test on a non-zero exit status, then returns false. In the
// child it returns true and the caller runs the test body.
func Fork(t *testing.T, optFns ...func(o *Options)) bool {
	t.Helper()

	if os.Getenv(EnvTestID) == t.Name() {
		return true
	}

	opts := Options{
		Timeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	args := append(filterArgs(os.Args[1:]), "-test.run="+runPattern(t.Name()))

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, os.Args[0], args...)
	cmd.Env = append(os.Environ(), EnvTestID+"="+t.Name())
	cmd.Env = append(cmd.Env, opts.Env...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() != nil {
		t.Fatalf("forked test %q timed out after %v\n%s", t.Name(), opts.Timeout, out.String())
	}
	if err != nil {
		t.Fatalf("forked test %q failed: %v\n%s", t.Name(), err, out.String())
	}
	return false
}

// runPattern anchors every element of a (possibly nested) test name.
func runPattern(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = "^" + p + "$"
	}
	return strings.Join(parts, "/")
}

// filterArgs strips test flags that would conflict with the child's own run
// selection and deadline.
func filterArgs(args []string) []string {
	denied := map[string]bool{
		"-test.run":     true,
		"-test.timeout": true,
		"-test.count":   true,
	}
	var kept []string
	skip := false
	for _, arg := range args {
		if skip {
			skip = false
			continue
		}
		name, _, hasValue := strings.Cut(arg, "=")
		if denied[name] {
			// The separated form carries its value in the next argument.
			skip = !hasValue
			continue
		}
		kept = append(kept, arg)
	}
	return kept
}
