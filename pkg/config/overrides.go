package config

import "time"

// ProjectOverrides holds per-project handler adjustments, loaded from the
// nearest ancestor .velcro directory. Exclude takes precedence over include.
type ProjectOverrides struct {
	// Include lists handler names (or doublestar globs) to force-enable.
	Include []string `json:"include,omitempty" koanf:"include" toml:"include,omitempty"`

	// Exclude lists handler names (or doublestar globs) to force-disable.
	Exclude []string `json:"exclude,omitempty" koanf:"exclude" toml:"exclude,omitempty"`

	// Handlers maps handler names to partial field overrides.
	Handlers map[string]*HandlerOverride `json:"handlers,omitempty" koanf:"handlers" toml:"handlers,omitempty"`
}

// HandlerOverride is a partial handler definition merged onto the global
// definition before dispatch. Nil fields leave the definition untouched.
type HandlerOverride struct {
	// Matcher replaces the handler's matcher pattern.
	Matcher *string `json:"matcher,omitempty" koanf:"matcher" toml:"matcher,omitempty"`

	// Timeout replaces the handler's timeout value.
	Timeout *time.Duration `json:"timeout,omitempty" koanf:"timeout" toml:"timeout,omitempty"`

	// Env replaces the handler's extra environment.
	Env map[string]string `json:"env,omitempty" koanf:"env" toml:"env,omitempty"`
}

// Apply shallow-merges the override onto a handler copy and returns it. The
// input handler is never mutated.
func (o *HandlerOverride) Apply(h *Handler) *Handler {
	merged := h.Clone()

	if o.Matcher != nil {
		merged.Matcher = *o.Matcher
	}

	if o.Timeout != nil {
		merged.Timeout = *o.Timeout
	}

	if o.Env != nil {
		merged.Env = o.Env
	}

	return merged
}
