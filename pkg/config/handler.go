// Package config provides the configuration schema for Velcro: handler
// definitions, project overrides, and dispatcher settings.
package config

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/velcrohq/velcro/pkg/hook"
)

var (
	// ErrMissingName is returned when a handler has no name.
	ErrMissingName = errors.New("handler name is required")

	// ErrMissingHooks is returned when a handler declares no hook events.
	ErrMissingHooks = errors.New("handler must attach to at least one hook event")

	// ErrUnknownHandlerType is returned for an unrecognized handler type.
	ErrUnknownHandlerType = errors.New("unknown handler type")

	// ErrMissingPayload is returned when the payload required by the
	// handler's type is empty.
	ErrMissingPayload = errors.New("handler payload is missing")

	// ErrConflictingPayload is returned when more than one payload field
	// is populated.
	ErrConflictingPayload = errors.New("handler has conflicting payload fields")
)

// HandlerType selects the execution strategy for a handler.
type HandlerType string

const (
	// HandlerTypeScript runs handler-authored shell statements in a
	// disposable child process.
	HandlerTypeScript HandlerType = "script"

	// HandlerTypeFunction invokes a Go function registered in-process.
	HandlerTypeFunction HandlerType = "function"

	// HandlerTypeCommand spawns a shell with the handler's command string.
	HandlerTypeCommand HandlerType = "command"

	// HandlerTypeExternal spawns an arbitrary executable with declared
	// arguments and environment.
	HandlerTypeExternal HandlerType = "external"
)

// IsValid returns true for a recognized handler type.
func (t HandlerType) IsValid() bool {
	switch t {
	case HandlerTypeScript, HandlerTypeFunction, HandlerTypeCommand, HandlerTypeExternal:
		return true
	default:
		return false
	}
}

// Handler is a user-defined unit of logic bound to one or more hook events.
// Definitions are owned by the configuration layer; the dispatch core only
// reads them.
type Handler struct {
	// Name uniquely identifies the handler.
	Name string `json:"name" koanf:"name" toml:"name"`

	// Hooks lists the hook events this handler attaches to.
	Hooks []hook.EventName `json:"hooks" koanf:"hooks" toml:"hooks"`

	// Type selects the execution strategy.
	Type HandlerType `json:"type" koanf:"type" toml:"type"`

	// Code is the payload for script handlers (shell statements) and
	// function handlers (registered function name).
	Code string `json:"code,omitempty" koanf:"code" toml:"code,omitempty"`

	// Command is the payload for command handlers.
	Command string `json:"command,omitempty" koanf:"command" toml:"command,omitempty"`

	// Path is the executable path for external handlers.
	Path string `json:"path,omitempty" koanf:"path" toml:"path,omitempty"`

	// Args are extra arguments for external handlers.
	Args []string `json:"args,omitempty" koanf:"args" toml:"args,omitempty"`

	// Env is extra environment for command/external handlers.
	Env map[string]string `json:"env,omitempty" koanf:"env" toml:"env,omitempty"`

	// Matcher narrows applicability to specific tool names. Empty or "*"
	// matches everything; otherwise interpreted as a regular expression.
	Matcher string `json:"matcher,omitempty" koanf:"matcher" toml:"matcher,omitempty"`

	// Disabled turns the handler off globally. Stored inverted so the
	// zero value of a definition is enabled.
	Disabled bool `json:"disabled,omitempty" koanf:"disabled" toml:"disabled,omitempty"`

	// Packages lists package names the handler requires; they must resolve
	// through the module allow-list before subprocess execution.
	Packages []string `json:"packages,omitempty" koanf:"packages" toml:"packages,omitempty"`

	// Timeout is carried in the definition but not enforced by any
	// execution strategy.
	Timeout time.Duration `json:"timeout,omitempty" koanf:"timeout" toml:"timeout,omitempty"`

	// Source records where the definition came from ("global", "project").
	Source string `json:"source,omitempty" koanf:"-" toml:"-"`
}

// Enabled reports the handler's own enabled flag, before any override
// layering.
func (h *Handler) Enabled() bool {
	return !h.Disabled
}

// AttachesTo returns true if the handler attaches to the given hook event.
func (h *Handler) AttachesTo(name hook.EventName) bool {
	for _, hk := range h.Hooks {
		if hk == name {
			return true
		}
	}

	return false
}

// Validate checks the definition invariant: exactly one payload field is
// populated, consistent with the declared type. A violation is a
// configuration error surfaced at the call boundary, never retried.
func (h *Handler) Validate() error {
	if h.Name == "" {
		return ErrMissingName
	}

	if len(h.Hooks) == 0 {
		return errors.Wrapf(ErrMissingHooks, "handler %q", h.Name)
	}

	for _, hk := range h.Hooks {
		if !hk.IsValid() {
			return errors.Newf("handler %q: unknown hook event %q", h.Name, hk)
		}
	}

	if !h.Type.IsValid() {
		return errors.Wrapf(ErrUnknownHandlerType, "handler %q: %q", h.Name, h.Type)
	}

	return h.validatePayload()
}

// validatePayload checks that the populated payload fields match the type.
func (h *Handler) validatePayload() error {
	hasCode := h.Code != ""
	hasCommand := h.Command != ""
	hasPath := h.Path != ""

	populated := 0
	for _, set := range []bool{hasCode, hasCommand, hasPath} {
		if set {
			populated++
		}
	}

	if populated > 1 {
		return errors.Wrapf(ErrConflictingPayload, "handler %q", h.Name)
	}

	var want bool

	switch h.Type {
	case HandlerTypeScript, HandlerTypeFunction:
		want = hasCode
	case HandlerTypeCommand:
		want = hasCommand
	case HandlerTypeExternal:
		want = hasPath
	}

	if !want {
		return errors.Wrapf(ErrMissingPayload, "handler %q (type %s)", h.Name, h.Type)
	}

	return nil
}

// Clone returns a shallow copy of the handler. Slice and map fields are
// shared; override merging replaces whole fields, never mutates them.
func (h *Handler) Clone() *Handler {
	clone := *h

	return &clone
}
