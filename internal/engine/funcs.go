package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/velcrohq/velcro/pkg/hook"
)

// FuncResponse statuses recognized by the function strategy.
const (
	// StatusBlocked marks a deliberate veto.
	StatusBlocked = "blocked"

	// StatusError marks a handler-reported fault.
	StatusError = "error"
)

// FuncResponse is the structured return value of a function handler. The
// return value, not an exit code, determines the outcome.
type FuncResponse struct {
	// Blocked vetoes the in-flight action.
	Blocked bool

	// Status may be "blocked" or "error" as an alternative to the flags.
	Status string

	// Reason is the user-facing veto reason.
	Reason string

	// Message is a plain diagnostic message.
	Message string

	// Output is textual output included in the aggregate result.
	Output string
}

// HandlerFunc is a function handler. It runs in-process; a panic is
// recovered by the engine and reported as a non-blocking failure.
type HandlerFunc func(ctx context.Context, evt *hook.Event) (*FuncResponse, error)

// FuncRegistry maps registered function names to function handlers. Handler
// definitions of type "function" name a registered entry in their payload.
type FuncRegistry struct {
	mu    sync.RWMutex
	funcs map[string]HandlerFunc
}

// NewFuncRegistry creates an empty FuncRegistry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{
		funcs: make(map[string]HandlerFunc),
	}
}

// Register adds a function under a name. Last registration wins.
func (r *FuncRegistry) Register(name string, fn HandlerFunc) {
	if name == "" || fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.funcs[name] = fn
}

// Lookup returns the function registered under a name.
func (r *FuncRegistry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]

	return fn, ok
}

// Names returns all registered names, sorted.
func (r *FuncRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
