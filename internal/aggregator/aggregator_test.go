package aggregator_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/velcrohq/velcro/internal/aggregator"
	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
)

// fakeExecutor returns canned results per handler name, optionally delaying
// some handlers to shuffle completion order.
type fakeExecutor struct {
	results map[string]*engine.Result
	delays  map[string]time.Duration
}

func (f *fakeExecutor) Execute(_ context.Context, h *config.Handler, _ *hook.Event) *engine.Result {
	if d, ok := f.delays[h.Name]; ok {
		time.Sleep(d)
	}

	if res, ok := f.results[h.Name]; ok {
		return res
	}

	return &engine.Result{HandlerName: h.Name, State: engine.StateSuccess, Success: true}
}

// fakeStats records which handler names were reported.
type fakeStats struct {
	mu       sync.Mutex
	recorded []string
}

func (f *fakeStats) Record(handlerName string, _ *engine.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recorded = append(f.recorded, handlerName)
}

func (f *fakeStats) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.recorded...)
}

func namedHandlers(names ...string) []*config.Handler {
	handlers := make([]*config.Handler, len(names))
	for i, name := range names {
		handlers[i] = &config.Handler{
			Name:    name,
			Hooks:   []hook.EventName{hook.EventPreToolUse},
			Type:    config.HandlerTypeCommand,
			Command: "true",
		}
	}

	return handlers
}

var _ = Describe("Aggregator", func() {
	var (
		ctx context.Context
		evt *hook.Event
	)

	BeforeEach(func() {
		ctx = context.Background()
		evt = &hook.Event{
			HookEventName: hook.EventPreToolUse,
			SessionID:     "sess-agg",
			ToolName:      "Bash",
		}
	})

	It("settles all handlers even when one errors", func() {
		exec := &fakeExecutor{results: map[string]*engine.Result{
			"a": {HandlerName: "a", State: engine.StateSuccess, Success: true, Stdout: "a ok"},
			"b": {HandlerName: "b", State: engine.StateError, Err: "spawn failed"},
			"c": {HandlerName: "c", State: engine.StateSuccess, Success: true, Stdout: "c ok"},
		}}

		decision := aggregator.New(exec, nil, 4, nil).Run(ctx, namedHandlers("a", "b", "c"), evt)

		Expect(decision.Results).To(HaveLen(3))
		Expect(decision.Blocked).To(BeFalse())
		Expect(decision.Results[1].Err).To(Equal("spawn failed"))
		Expect(decision.Output).To(Equal("a ok\nc ok"))
	})

	It("merges in resolution order regardless of completion order", func() {
		exec := &fakeExecutor{
			results: map[string]*engine.Result{
				"slow": {HandlerName: "slow", State: engine.StateSuccess, Success: true, Stdout: "first"},
				"fast": {HandlerName: "fast", State: engine.StateSuccess, Success: true, Stdout: "second"},
			},
			delays: map[string]time.Duration{"slow": 30 * time.Millisecond},
		}

		decision := aggregator.New(exec, nil, 4, nil).Run(ctx, namedHandlers("slow", "fast"), evt)

		Expect(decision.Output).To(Equal("first\nsecond"))
		Expect(decision.Results[0].HandlerName).To(Equal("slow"))
		Expect(decision.Results[1].HandlerName).To(Equal("fast"))
	})

	It("takes the reason from the first blocking handler in resolution order", func() {
		exec := &fakeExecutor{
			results: map[string]*engine.Result{
				"early": {HandlerName: "early", State: engine.StateBlocked, Blocked: true, Reason: "early veto"},
				"late":  {HandlerName: "late", State: engine.StateBlocked, Blocked: true, Reason: "late veto"},
			},
			delays: map[string]time.Duration{"early": 20 * time.Millisecond},
		}

		decision := aggregator.New(exec, nil, 4, nil).Run(ctx, namedHandlers("early", "late"), evt)

		Expect(decision.Blocked).To(BeTrue())
		Expect(decision.Reason).To(Equal("early veto"))
	})

	It("falls back to stderr when the blocking result has no reason", func() {
		exec := &fakeExecutor{results: map[string]*engine.Result{
			"veto": {HandlerName: "veto", State: engine.StateBlocked, Blocked: true, Stderr: "  denied \n"},
		}}

		decision := aggregator.New(exec, nil, 1, nil).Run(ctx, namedHandlers("veto"), evt)

		Expect(decision.Reason).To(Equal("denied"))
	})

	It("collects structured responses in resolution order", func() {
		exec := &fakeExecutor{results: map[string]*engine.Result{
			"a": {HandlerName: "a", State: engine.StateSuccess, Success: true,
				Response: map[string]any{"n": float64(1)}},
			"b": {HandlerName: "b", State: engine.StateBlocked, Blocked: true,
				Response: map[string]any{"n": float64(2)}},
		}}

		decision := aggregator.New(exec, nil, 4, nil).Run(ctx, namedHandlers("a", "b"), evt)

		Expect(decision.Responses).To(HaveLen(2))
		Expect(decision.Responses[0]).To(HaveKeyWithValue("n", float64(1)))
		Expect(decision.Responses[1]).To(HaveKeyWithValue("n", float64(2)))
	})

	It("reports non-skipped results to the stats sink", func() {
		exec := &fakeExecutor{results: map[string]*engine.Result{
			"ran":     {HandlerName: "ran", State: engine.StateSuccess, Success: true},
			"skipped": {HandlerName: "skipped", State: engine.StateSkipped, Success: true},
			"failed":  {HandlerName: "failed", State: engine.StateFailure},
		}}
		sink := &fakeStats{}

		aggregator.New(exec, sink, 4, nil).Run(ctx, namedHandlers("ran", "skipped", "failed"), evt)

		Expect(sink.names()).To(ConsistOf("ran", "failed"))
	})

	It("returns an empty decision for no handlers", func() {
		decision := aggregator.New(&fakeExecutor{}, nil, 4, nil).Run(ctx, nil, evt)

		Expect(decision.Blocked).To(BeFalse())
		Expect(decision.Reason).To(BeEmpty())
		Expect(decision.Output).To(BeEmpty())
		Expect(decision.Results).To(BeEmpty())
	})

	It("completes under a concurrency cap of one", func() {
		exec := &fakeExecutor{
			delays: map[string]time.Duration{
				"a": 5 * time.Millisecond,
				"b": 5 * time.Millisecond,
				"c": 5 * time.Millisecond,
			},
		}

		decision := aggregator.New(exec, nil, 1, nil).Run(ctx, namedHandlers("a", "b", "c"), evt)

		Expect(decision.Results).To(HaveLen(3))
		for _, res := range decision.Results {
			Expect(res.Success).To(BeTrue())
		}
	})
})
