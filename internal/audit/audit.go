// Package audit appends execution records to a JSONL audit log. The audit
// trail sits outside the dispatch core: a write failure is logged and never
// affects the decision.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/velcrohq/velcro/internal/aggregator"
	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
	"github.com/velcrohq/velcro/pkg/logger"
)

// File permission constants.
const (
	// auditFilePermissions is the permission mode for the audit log file.
	auditFilePermissions = 0o600

	// auditDirPermissions is the permission mode for the audit directory.
	auditDirPermissions = 0o700
)

// Entry is one dispatched event in the audit log.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Timestamp is when the dispatch completed.
	Timestamp time.Time `json:"timestamp"`

	// HookEvent is the dispatched event name.
	HookEvent hook.EventName `json:"hook_event"`

	// SessionID is the host session identifier.
	SessionID string `json:"session_id,omitempty"`

	// ToolName is the tool involved, for tool-bearing events.
	ToolName string `json:"tool_name,omitempty"`

	// CWD is the working directory at event time.
	CWD string `json:"cwd,omitempty"`

	// Blocked records the aggregate decision.
	Blocked bool `json:"blocked"`

	// Reason is the blocking reason, when blocked.
	Reason string `json:"reason,omitempty"`

	// Handlers holds one outcome per executed handler, in resolution
	// order.
	Handlers []HandlerOutcome `json:"handlers"`
}

// HandlerOutcome is the audit view of one handler invocation.
type HandlerOutcome struct {
	Name       string       `json:"name"`
	State      engine.State `json:"state"`
	Success    bool         `json:"success"`
	Blocked    bool         `json:"blocked"`
	ExitCode   *int         `json:"exit_code,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
}

// Log appends dispatch records to a JSONL file.
type Log struct {
	mu     sync.Mutex
	file   string
	logger logger.Logger

	// now is swapped in tests to control time.
	now func() time.Time
}

// LogOption configures the Log.
type LogOption func(*Log)

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) LogOption {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLog creates a Log appending to the given file. An empty path disables
// auditing.
func NewLog(file string, log logger.Logger, opts ...LogOption) *Log {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	l := &Log{
		file:   file,
		logger: log,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Append writes one entry for a dispatched event and its merged decision.
func (l *Log) Append(evt *hook.Event, decision *aggregator.Decision) error {
	if l.file == "" {
		return nil
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		HookEvent: evt.HookEventName,
		SessionID: evt.SessionID,
		ToolName:  evt.ToolName,
		CWD:       evt.CWD,
		Blocked:   decision.Blocked,
		Reason:    decision.Reason,
		Handlers:  outcomes(decision.Results),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshaling audit entry")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := config.ExpandPath(l.file)

	if err := os.MkdirAll(filepath.Dir(path), auditDirPermissions); err != nil {
		return errors.Wrap(err, "creating audit directory")
	}

	//nolint:gosec // path comes from config
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFilePermissions)
	if err != nil {
		return errors.Wrap(err, "opening audit log")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "appending audit entry")
	}

	return nil
}

// outcomes converts invocation results to their audit form.
func outcomes(results []*engine.Result) []HandlerOutcome {
	out := make([]HandlerOutcome, 0, len(results))

	for _, res := range results {
		if res == nil {
			continue
		}

		out = append(out, HandlerOutcome{
			Name:       res.HandlerName,
			State:      res.State,
			Success:    res.Success,
			Blocked:    res.Blocked,
			ExitCode:   res.ExitCode,
			DurationMS: res.Duration.Milliseconds(),
			Error:      res.Err,
		})
	}

	return out
}
