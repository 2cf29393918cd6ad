// Package aggregator fans handler execution out concurrently and merges the
// settled results into a single decision.
package aggregator

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
	"github.com/velcrohq/velcro/pkg/logger"
)

// ioWorkerMultiplier sizes the default fan-out cap relative to CPU count;
// handler execution is I/O bound.
const ioWorkerMultiplier = 2

// outputSeparator joins successful handler outputs in the merged decision.
const outputSeparator = "\n"

// Executor runs one handler invocation. Satisfied by *engine.Engine.
type Executor interface {
	Execute(ctx context.Context, h *config.Handler, evt *hook.Event) *engine.Result
}

// StatsSink records per-invocation statistics. Satisfied by *stats.Recorder.
type StatsSink interface {
	Record(handlerName string, result *engine.Result)
}

// Decision is the merged outcome of one event's handler executions.
type Decision struct {
	// Blocked is true when any handler vetoed the action.
	Blocked bool

	// Reason is the user-facing reason from the first blocking handler in
	// resolution order.
	Reason string

	// Output concatenates successful, non-empty textual outputs in
	// resolution order.
	Output string

	// Results holds every invocation result, one per resolved handler, in
	// resolution order. Partial results are never dropped.
	Results []*engine.Result

	// Responses collects all structured JSON responses, blocking and
	// non-blocking alike, in resolution order.
	Responses []map[string]any
}

// Aggregator executes resolved handlers concurrently and merges results
// deterministically.
type Aggregator struct {
	executor Executor
	stats    StatsSink
	sem      *semaphore.Weighted
	logger   logger.Logger
}

// New creates an Aggregator. maxConcurrent caps in-flight handler
// invocations per event; zero means NumCPU*2.
func New(executor Executor, stats StatsSink, maxConcurrent int, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU() * ioWorkerMultiplier
	}

	return &Aggregator{
		executor: executor,
		stats:    stats,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   log,
	}
}

// Run executes every resolved handler and merges the settled results. All
// handlers run to completion: a failure or veto in one never short-circuits
// the others, and merge order is always resolution order regardless of
// completion order.
func (a *Aggregator) Run(ctx context.Context, handlers []*config.Handler, evt *hook.Event) *Decision {
	results := make([]*engine.Result, len(handlers))

	var wg sync.WaitGroup

	for i, h := range handlers {
		wg.Add(1)

		go func(slot int, h *config.Handler) {
			defer wg.Done()

			// The semaphore only caps concurrency; acquisition uses a
			// background context because dispatched work always settles
			// (cancellation of in-flight handlers is unsupported).
			_ = a.sem.Acquire(context.Background(), 1)
			defer a.sem.Release(1)

			result := a.executor.Execute(ctx, h, evt)
			results[slot] = result

			a.record(h.Name, result)
		}(i, h)
	}

	wg.Wait()

	return a.merge(results)
}

// record forwards a settled result to the stats sink. Skipped invocations
// have no side effects beyond logging.
func (a *Aggregator) record(handlerName string, result *engine.Result) {
	if a.stats == nil || result.State == engine.StateSkipped {
		return
	}

	a.stats.Record(handlerName, result)
}

// merge folds settled results into one decision.
func (a *Aggregator) merge(results []*engine.Result) *Decision {
	decision := &Decision{
		Results: results,
	}

	var outputs []string

	for _, res := range results {
		if res == nil {
			continue
		}

		if res.Blocked && !decision.Blocked {
			// First blocking result in resolution order supplies the
			// user-facing reason, even if a later handler also blocked.
			decision.Blocked = true
			decision.Reason = firstNonEmpty(res.Reason, strings.TrimSpace(res.Stderr))
		}

		if res.Success && res.State != engine.StateSkipped {
			if out := strings.TrimSpace(res.Stdout); out != "" {
				outputs = append(outputs, out)
			}
		}

		if res.Response != nil {
			decision.Responses = append(decision.Responses, res.Response)
		}
	}

	decision.Output = strings.Join(outputs, outputSeparator)

	a.logger.Info("aggregated decision",
		"handlers", len(results),
		"blocked", decision.Blocked,
	)

	return decision
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
