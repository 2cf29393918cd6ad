// Package exec provides abstractions for spawning handler subprocesses.
package exec

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/cockroachdb/errors"
)

// Spec describes one subprocess invocation.
type Spec struct {
	// Name is the executable to run.
	Name string

	// Args are the arguments, excluding the executable name.
	Args []string

	// Stdin is written to the process's standard input. May be nil.
	Stdin io.Reader

	// Env is the complete environment for the process. Nil inherits the
	// parent environment.
	Env []string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string
}

// Result contains the captured outcome of a subprocess invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes subprocesses with full output capture.
type CommandRunner interface {
	// Run executes the spec and returns the captured result. A nonzero
	// exit code is reported through Result.ExitCode, not through the
	// error; the error is non-nil only when the process could not be
	// started or was torn down abnormally.
	Run(ctx context.Context, spec Spec) (*Result, error)
}

// commandRunner implements CommandRunner over os/exec.
type commandRunner struct{}

// NewCommandRunner creates a CommandRunner.
//
//nolint:ireturn // constructor returns the interface consumed by the engine
func NewCommandRunner() CommandRunner {
	return &commandRunner{}
}

// Run executes the spec and captures stdout, stderr, and the exit code.
func (*commandRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	//nolint:gosec // command and args come from handler definitions
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Stdin = spec.Stdin
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()

		return result, nil
	}

	if err != nil {
		return result, errors.Wrapf(err, "executing %s", spec.Name)
	}

	return result, nil
}
