package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// generalFailureExit is the exit code for script faults that carry no
// explicit status.
const generalFailureExit = 1

// RunScriptFile is the child-side entry point of script isolation. It
// interprets the script at path with an embedded shell interpreter and
// returns the exit code the child process must terminate with.
//
// A termination request inside the script ("exit N") surfaces from the
// interpreter as a typed interp.ExitStatus signal rather than terminating
// anything; this boundary is the only place that maps it to a real process
// exit code. Handler-authored statements therefore keep their exit semantics
// without ever reaching the dispatcher's own process-termination path.
func RunScriptFile(
	ctx context.Context,
	path string,
	stdin io.Reader,
	stdout, stderr io.Writer,
	env []string,
) int {
	src, err := os.ReadFile(path) //nolint:gosec // path is an engine-owned temp file
	if err != nil {
		fmt.Fprintf(stderr, "velcro: reading script: %v\n", err)

		return generalFailureExit
	}

	file, err := syntax.NewParser().Parse(bytes.NewReader(src), "handler-script")
	if err != nil {
		fmt.Fprintf(stderr, "velcro: parsing script: %v\n", err)

		return generalFailureExit
	}

	runner, err := interp.New(
		interp.StdIO(stdin, stdout, stderr),
		interp.Env(expand.ListEnviron(env...)),
	)
	if err != nil {
		fmt.Fprintf(stderr, "velcro: creating interpreter: %v\n", err)

		return generalFailureExit
	}

	runErr := runner.Run(ctx, file)
	if runErr == nil {
		return ExitCodeAllow
	}

	var status interp.ExitStatus
	if errors.As(runErr, &status) {
		return int(status)
	}

	fmt.Fprintf(stderr, "velcro: script failed: %v\n", runErr)

	return generalFailureExit
}
