package engine_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/internal/matcher"
	"github.com/velcrohq/velcro/internal/modules"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
)

// newEngine builds an engine with no allow-listed packages and the given
// function registry.
func newEngine(funcs *engine.FuncRegistry) *engine.Engine {
	if funcs == nil {
		funcs = engine.NewFuncRegistry()
	}

	return engine.New(
		funcs,
		modules.NewResolver(nil, nil),
		matcher.New(nil),
		"/tmp/project",
		nil,
	)
}

// commandHandler builds a shell command handler attached to PreToolUse.
func commandHandler(name, command string) *config.Handler {
	return &config.Handler{
		Name:    name,
		Hooks:   []hook.EventName{hook.EventPreToolUse},
		Type:    config.HandlerTypeCommand,
		Command: command,
	}
}

var _ = Describe("Engine", func() {
	var (
		ctx context.Context
		evt *hook.Event
	)

	BeforeEach(func() {
		ctx = context.Background()
		evt = &hook.Event{
			HookEventName: hook.EventPreToolUse,
			SessionID:     "sess-1",
			CWD:           GinkgoT().TempDir(),
			ToolName:      "Bash",
			ToolInput:     map[string]any{"command": "ls"},
		}
	})

	Describe("exit-code and JSON classification", func() {
		It("treats exit 0 with plain output as success", func() {
			res := newEngine(nil).Execute(ctx, commandHandler("ok", `printf 'all good'`), evt)

			Expect(res.State).To(Equal(engine.StateSuccess))
			Expect(res.Success).To(BeTrue())
			Expect(res.Blocked).To(BeFalse())
			Expect(res.Stdout).To(Equal("all good"))
			Expect(res.ExitCode).To(HaveValue(Equal(0)))
		})

		It("lets exit code 2 win over a JSON approve", func() {
			res := newEngine(nil).Execute(ctx,
				commandHandler("veto", `printf '{"decision":"approve"}'; exit 2`), evt)

			Expect(res.State).To(Equal(engine.StateBlocked))
			Expect(res.Success).To(BeFalse())
			Expect(res.Blocked).To(BeTrue())
			Expect(res.ExitCode).To(HaveValue(Equal(2)))
			Expect(res.Response).To(HaveKeyWithValue("decision", "approve"))
		})

		It("blocks on a JSON block decision despite exit 0", func() {
			res := newEngine(nil).Execute(ctx,
				commandHandler("policy",
					`printf '{"decision":"block","reason":"Policy violation"}'`), evt)

			Expect(res.State).To(Equal(engine.StateBlocked))
			Expect(res.Success).To(BeFalse())
			Expect(res.Blocked).To(BeTrue())
			Expect(res.ExitCode).To(HaveValue(Equal(0)))
			Expect(res.Reason).To(Equal("Policy violation"))
			Expect(res.Response).To(HaveKeyWithValue("decision", "block"))
		})

		It("lets a JSON approve override a nonzero non-blocking exit code", func() {
			res := newEngine(nil).Execute(ctx,
				commandHandler("lenient",
					`printf '{"decision":"approve"}'; exit 1`), evt)

			Expect(res.State).To(Equal(engine.StateSuccess))
			Expect(res.Success).To(BeTrue())
			Expect(res.Blocked).To(BeFalse())
			Expect(res.ExitCode).To(HaveValue(Equal(1)))
			Expect(res.Response).To(HaveKeyWithValue("decision", "approve"))
		})

		It("keeps a JSON block over a nonzero exit code", func() {
			res := newEngine(nil).Execute(ctx,
				commandHandler("strict",
					`printf '{"decision":"block","reason":"Denied"}'; exit 7`), evt)

			Expect(res.State).To(Equal(engine.StateBlocked))
			Expect(res.Blocked).To(BeTrue())
			Expect(res.ExitCode).To(HaveValue(Equal(7)))
			Expect(res.Reason).To(Equal("Denied"))
		})

		It("treats other nonzero exit codes as non-blocking failures", func() {
			res := newEngine(nil).Execute(ctx, commandHandler("flaky", `exit 7`), evt)

			Expect(res.State).To(Equal(engine.StateFailure))
			Expect(res.Success).To(BeFalse())
			Expect(res.Blocked).To(BeFalse())
			Expect(res.ExitCode).To(HaveValue(Equal(7)))
		})

		It("treats malformed JSON as ordinary text output", func() {
			res := newEngine(nil).Execute(ctx,
				commandHandler("chatty", `printf '{not json at all'`), evt)

			Expect(res.State).To(Equal(engine.StateSuccess))
			Expect(res.Success).To(BeTrue())
			Expect(res.Response).To(BeNil())
			Expect(res.Stdout).To(Equal("{not json at all"))
		})

		It("falls back to stderr for the blocking reason", func() {
			res := newEngine(nil).Execute(ctx,
				commandHandler("stderr-veto", `echo 'no way' >&2; exit 2`), evt)

			Expect(res.Blocked).To(BeTrue())
			Expect(res.Reason).To(Equal("no way"))
		})

		It("pipes the event JSON to handler stdin", func() {
			res := newEngine(nil).Execute(ctx, commandHandler("echoer", `cat`), evt)

			Expect(res.Success).To(BeTrue())
			Expect(res.Stdout).To(ContainSubstring(`"hook_event_name":"PreToolUse"`))
			Expect(res.Stdout).To(ContainSubstring(`"session_id":"sess-1"`))
		})
	})

	Describe("matcher gating", func() {
		It("skips handlers whose matcher rejects the tool", func() {
			h := commandHandler("writes-only", `exit 2`)
			h.Matcher = "Write|Edit"

			res := newEngine(nil).Execute(ctx, h, evt)

			Expect(res.State).To(Equal(engine.StateSkipped))
			Expect(res.Success).To(BeTrue())
			Expect(res.Blocked).To(BeFalse())
			Expect(res.ExitCode).To(BeNil())
		})
	})

	Describe("unknown handler types", func() {
		It("reports an execution error without panicking", func() {
			h := commandHandler("mystery", "true")
			h.Type = config.HandlerType("telepathy")

			res := newEngine(nil).Execute(ctx, h, evt)

			Expect(res.State).To(Equal(engine.StateError))
			Expect(res.Success).To(BeFalse())
			Expect(res.Blocked).To(BeFalse())
			Expect(res.Err).To(ContainSubstring("Unknown handler type"))
		})
	})

	Describe("spawn failures", func() {
		It("captures the error without blocking", func() {
			h := &config.Handler{
				Name:  "ghost",
				Hooks: []hook.EventName{hook.EventPreToolUse},
				Type:  config.HandlerTypeExternal,
				Path:  "/nonexistent/binary/path",
			}

			res := newEngine(nil).Execute(ctx, h, evt)

			Expect(res.State).To(Equal(engine.StateError))
			Expect(res.Success).To(BeFalse())
			Expect(res.Blocked).To(BeFalse())
			Expect(res.Err).NotTo(BeEmpty())
		})
	})

	Describe("required packages", func() {
		It("fails fast when a required package is not allow-listed", func() {
			h := commandHandler("needs-pkg", "true")
			h.Packages = []string{"left-pad"}

			res := newEngine(nil).Execute(ctx, h, evt)

			Expect(res.State).To(Equal(engine.StateError))
			Expect(res.Err).To(ContainSubstring("left-pad"))
		})
	})

	Describe("duration accounting", func() {
		It("records a duration on the error path too", func() {
			h := commandHandler("mystery", "true")
			h.Type = config.HandlerType("telepathy")

			res := newEngine(nil).Execute(ctx, h, evt)

			Expect(res.Duration).To(BeNumerically(">=", 0))
		})
	})
})
