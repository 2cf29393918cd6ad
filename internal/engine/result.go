// Package engine executes handlers and classifies their raw outcomes into
// normalized results.
package engine

import "time"

// State is the terminal state of one handler invocation.
type State string

const (
	// StatePending is the initial state before dispatch.
	StatePending State = "pending"

	// StateSkipped means the matcher rejected the handler. Terminal,
	// counts as success, no side effects beyond logging.
	StateSkipped State = "skipped"

	// StateRunning means the handler is executing.
	StateRunning State = "running"

	// StateSuccess means the handler completed and allowed the action.
	StateSuccess State = "success"

	// StateFailure means the handler failed without blocking.
	StateFailure State = "failure"

	// StateBlocked means the handler deliberately vetoed the action.
	StateBlocked State = "blocked"

	// StateError means the invocation itself faulted (spawn failure,
	// panic, unknown type). Never blocking.
	StateError State = "error"
)

// Terminal returns true for a terminal state.
func (s State) Terminal() bool {
	return s != StatePending && s != StateRunning
}

// Result is the normalized outcome of one handler invocation.
//
// Invariant: Blocked == true implies Success == false. Err and a blocking
// reason are never both the primary cause: a deliberate veto is reported via
// Blocked+Reason, a fault via Err.
type Result struct {
	// HandlerName is the name of the executed handler.
	HandlerName string `json:"handler_name"`

	// State is the terminal invocation state.
	State State `json:"state"`

	// Success is false for blocked, failed, and errored invocations.
	Success bool `json:"success"`

	// Blocked is true when the handler vetoed the in-flight action.
	Blocked bool `json:"blocked"`

	// Stdout is the captured standard output (or function output).
	Stdout string `json:"stdout,omitempty"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr,omitempty"`

	// ExitCode is the subprocess exit code; nil for in-process handlers
	// and spawn failures.
	ExitCode *int `json:"exit_code,omitempty"`

	// Response is the parsed structured JSON response, if stdout carried
	// one.
	Response map[string]any `json:"response,omitempty"`

	// Reason is the user-facing veto reason for blocked invocations.
	Reason string `json:"reason,omitempty"`

	// Err is the captured error message for errored invocations.
	Err string `json:"error,omitempty"`

	// Duration is the wall-clock execution time. Recorded on every path,
	// including exceptional ones.
	Duration time.Duration `json:"duration"`
}

// newResult creates a pending result for a handler.
func newResult(handlerName string) *Result {
	return &Result{
		HandlerName: handlerName,
		State:       StatePending,
	}
}

// intPtr returns a pointer to the given exit code.
func intPtr(code int) *int {
	return &code
}
