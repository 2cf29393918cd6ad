package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/velcrohq/velcro/internal/exec"
	"github.com/velcrohq/velcro/internal/matcher"
	"github.com/velcrohq/velcro/internal/modules"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
	"github.com/velcrohq/velcro/pkg/logger"
)

// scriptExecCommand is the hidden subcommand used to run script handlers in
// a disposable child process.
const scriptExecCommand = "script-exec"

// Engine executes a single handler invocation per call, polymorphic over the
// handler-type variants.
type Engine struct {
	runner    exec.CommandRunner
	tempFiles exec.TempFileManager
	funcs     *FuncRegistry
	modules   *modules.Resolver
	matcher   *matcher.Matcher
	logger    logger.Logger

	// selfPath is the running binary, re-execed for script isolation.
	selfPath string

	// projectDir is exported to subprocess handlers.
	projectDir string

	// now is swapped in tests to control time.
	now func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithRunner sets a custom command runner.
func WithRunner(runner exec.CommandRunner) Option {
	return func(e *Engine) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// WithTempFiles sets a custom temp file manager.
func WithTempFiles(manager exec.TempFileManager) Option {
	return func(e *Engine) {
		if manager != nil {
			e.tempFiles = manager
		}
	}
}

// WithSelfPath sets the binary path used for script isolation.
func WithSelfPath(path string) Option {
	return func(e *Engine) {
		if path != "" {
			e.selfPath = path
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// New creates an Engine.
func New(
	funcs *FuncRegistry,
	moduleResolver *modules.Resolver,
	match *matcher.Matcher,
	projectDir string,
	log logger.Logger,
	opts ...Option,
) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	e := &Engine{
		runner:     exec.NewCommandRunner(),
		tempFiles:  exec.NewTempFileManager(),
		funcs:      funcs,
		modules:    moduleResolver,
		matcher:    match,
		logger:     log,
		projectDir: projectDir,
		now:        time.Now,
	}

	if self, err := os.Executable(); err == nil {
		e.selfPath = self
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs one handler against one event and returns the normalized
// result. It never returns an error and never panics: every fault is folded
// into the result so sibling handlers are unaffected. Duration is recorded
// on every path.
func (e *Engine) Execute(ctx context.Context, h *config.Handler, evt *hook.Event) (res *Result) {
	res = newResult(h.Name)
	start := e.now()

	defer func() {
		if r := recover(); r != nil {
			res.State = StateError
			res.Success = false
			res.Blocked = false
			res.Err = fmt.Sprintf("handler panicked: %v", r)
		}

		res.Duration = e.now().Sub(start)
	}()

	if !e.matcher.Matches(h.Matcher, evt) {
		res.State = StateSkipped
		res.Success = true

		e.logger.Debug("handler skipped by matcher",
			"handler", h.Name,
			"matcher", h.Matcher,
			"tool", evt.ToolName,
		)

		return res
	}

	res.State = StateRunning

	e.logger.Info("executing handler",
		"handler", h.Name,
		"type", h.Type,
		"event", evt.HookEventName,
	)

	if err := e.modules.Verify(h.Packages, h.Name); err != nil {
		e.fail(res, err.Error())

		return res
	}

	switch h.Type {
	case config.HandlerTypeCommand:
		e.runCommand(ctx, h, evt, res)
	case config.HandlerTypeExternal:
		e.runExternal(ctx, h, evt, res)
	case config.HandlerTypeScript:
		e.runScript(ctx, h, evt, res)
	case config.HandlerTypeFunction:
		e.runFunction(ctx, h, evt, res)
	default:
		e.fail(res, fmt.Sprintf("Unknown handler type: %s", h.Type))
	}

	return res
}

// fail marks the result as a non-blocking execution error.
func (e *Engine) fail(res *Result, msg string) {
	res.State = StateError
	res.Success = false
	res.Blocked = false
	res.Err = msg

	e.logger.Error("handler execution error",
		"handler", res.HandlerName,
		"error", msg,
	)
}

// environ builds the subprocess environment: parent env, event metadata,
// module allow-list, then handler-declared variables.
func (e *Engine) environ(h *config.Handler, evt *hook.Event) []string {
	env := os.Environ()
	env = append(env, evt.Environ(e.projectDir)...)

	if paths := e.modules.AllowedPaths(); len(paths) > 0 {
		env = append(env, "VELCRO_PACKAGE_PATH="+strings.Join(paths, ":"))
	}

	for k, v := range h.Env {
		env = append(env, k+"="+v)
	}

	return env
}

// runSubprocess executes a spec with the event JSON on stdin and classifies
// the outcome through the common exit-code+JSON protocol.
func (e *Engine) runSubprocess(
	ctx context.Context,
	spec exec.Spec,
	evt *hook.Event,
	res *Result,
) {
	payload, err := evt.EncodeJSON()
	if err != nil {
		e.fail(res, fmt.Sprintf("encoding event payload: %v", err))

		return
	}

	spec.Stdin = bytes.NewReader(payload)

	out, err := e.runner.Run(ctx, spec)
	if err != nil {
		// Spawn failure: local, non-blocking, never retried.
		e.fail(res, err.Error())

		return
	}

	classify(res, out.ExitCode, out.Stdout, out.Stderr)

	e.logger.Info("handler finished",
		"handler", res.HandlerName,
		"state", string(res.State),
		"exit_code", out.ExitCode,
	)
}

// runCommand spawns a shell with the handler's command string.
func (e *Engine) runCommand(ctx context.Context, h *config.Handler, evt *hook.Event, res *Result) {
	e.runSubprocess(ctx, exec.Spec{
		Name: "sh",
		Args: []string{"-c", h.Command},
		Env:  e.environ(h, evt),
		Dir:  evt.CWD,
	}, evt, res)
}

// runExternal spawns the handler's executable with its declared arguments.
func (e *Engine) runExternal(ctx context.Context, h *config.Handler, evt *hook.Event, res *Result) {
	e.runSubprocess(ctx, exec.Spec{
		Name: h.Path,
		Args: h.Args,
		Env:  e.environ(h, evt),
		Dir:  evt.CWD,
	}, evt, res)
}

// runScript executes handler-authored shell statements in a disposable child
// process: the running binary is re-execed with the hidden script-exec
// subcommand, which interprets the script and owns the "exit" boundary. A
// termination request inside the script can therefore never take down the
// dispatcher.
func (e *Engine) runScript(ctx context.Context, h *config.Handler, evt *hook.Event, res *Result) {
	if e.selfPath == "" {
		e.fail(res, "script isolation unavailable: executable path unknown")

		return
	}

	scriptPath, cleanup, err := e.tempFiles.Create("velcro-script-*.sh", h.Code)
	if err != nil {
		e.fail(res, err.Error())

		return
	}
	defer cleanup()

	e.runSubprocess(ctx, exec.Spec{
		Name: e.selfPath,
		Args: []string{scriptExecCommand, "--script", scriptPath},
		Env:  e.environ(h, evt),
		Dir:  evt.CWD,
	}, evt, res)
}

// runFunction invokes a registered in-process function handler. The return
// value, not an exit code, determines the outcome; a panic or error is
// reported as a non-blocking failure.
func (e *Engine) runFunction(ctx context.Context, h *config.Handler, evt *hook.Event, res *Result) {
	fn, ok := e.funcs.Lookup(h.Code)
	if !ok {
		e.fail(res, fmt.Sprintf("function %q is not registered", h.Code))

		return
	}

	resp, err := e.callFunc(ctx, fn, evt)
	if err != nil {
		e.fail(res, err.Error())

		return
	}

	if resp == nil {
		resp = &FuncResponse{}
	}

	switch {
	case resp.Blocked || resp.Status == StatusBlocked:
		res.State = StateBlocked
		res.Success = false
		res.Blocked = true
		res.Reason = resp.Reason

		if res.Reason == "" {
			res.Reason = resp.Message
		}
	case resp.Status == StatusError:
		e.fail(res, firstNonEmpty(resp.Message, "function handler reported an error"))
	default:
		res.State = StateSuccess
		res.Success = true
		res.Stdout = firstNonEmpty(resp.Output, resp.Message)
	}
}

// callFunc invokes fn with panic recovery.
func (*Engine) callFunc(
	ctx context.Context,
	fn HandlerFunc,
	evt *hook.Event,
) (resp *FuncResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("function handler panicked: %v", r)
		}
	}()

	return fn(ctx, evt)
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
