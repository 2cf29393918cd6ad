// Package stats provides durable, write-through per-handler execution
// counters.
package stats

import (
	"sync"
	"time"

	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/pkg/logger"
)

// percent converts a ratio to a percentage.
const percent = 100

// HandlerStats holds the counters for one handler name. Created on first
// execution, updated after every execution, deleted only by explicit
// operator reset.
type HandlerStats struct {
	// Executions is the total invocation count.
	Executions int `json:"executions"`

	// Failures counts invocations with success=false.
	Failures int `json:"failures"`

	// TotalDuration is the cumulative wall-clock execution time.
	TotalDuration time.Duration `json:"total_duration"`

	// AvgDuration is TotalDuration / Executions.
	AvgDuration time.Duration `json:"avg_duration"`

	// SuccessRate is (Executions-Failures)/Executions*100.
	SuccessRate float64 `json:"success_rate"`

	// LastExecution is when the handler last ran.
	LastExecution time.Time `json:"last_execution"`

	// LastError is the most recent error message, if any.
	LastError string `json:"last_error,omitempty"`
}

// Recorder owns and persists the per-handler stats map. Every update is
// written through synchronously: correctness over throughput, since update
// volume is bounded by handler count times event rate.
type Recorder struct {
	mu     sync.Mutex
	stats  map[string]*HandlerStats
	file   string
	logger logger.Logger

	// now is swapped in tests to control time.
	now func() time.Time
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) RecorderOption {
	return func(r *Recorder) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder creates a Recorder persisting to the given file. An empty file
// path keeps the recorder memory-only.
func NewRecorder(file string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		stats:  make(map[string]*HandlerStats),
		file:   file,
		logger: logger.NewNoOpLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Record updates the counters for a handler from a settled result and
// persists the whole map synchronously.
func (r *Recorder) Record(handlerName string, result *engine.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.stats[handlerName]
	if !ok {
		entry = &HandlerStats{}
		r.stats[handlerName] = entry
	}

	entry.Executions++

	if !result.Success {
		entry.Failures++
	}

	entry.TotalDuration += result.Duration
	entry.AvgDuration = entry.TotalDuration / time.Duration(entry.Executions)
	entry.SuccessRate = float64(entry.Executions-entry.Failures) /
		float64(entry.Executions) * percent
	entry.LastExecution = r.now()

	if msg := firstError(result); msg != "" {
		entry.LastError = msg
	}

	if err := r.saveLocked(); err != nil {
		r.logger.Error("failed to persist handler stats",
			"handler", handlerName,
			"error", err.Error(),
		)
	}
}

// firstError extracts the primary cause message from a result: a fault's
// error message, or a veto's reason.
func firstError(result *engine.Result) string {
	if result.Err != "" {
		return result.Err
	}

	if result.Blocked {
		return result.Reason
	}

	return ""
}

// Get returns a copy of the stats for one handler name.
func (r *Recorder) Get(handlerName string) (HandlerStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.stats[handlerName]
	if !ok {
		return HandlerStats{}, false
	}

	return *entry, true
}

// All returns a copy of the full stats map.
func (r *Recorder) All() map[string]HandlerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]HandlerStats, len(r.stats))
	for name, entry := range r.stats {
		out[name] = *entry
	}

	return out
}

// Reset clears all counters (explicit operator reset) and persists the empty
// map.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = make(map[string]*HandlerStats)

	return r.saveLocked()
}
