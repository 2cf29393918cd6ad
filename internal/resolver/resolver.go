// Package resolver computes the ordered list of handlers that must run for
// an event, layering session and project overrides onto the global
// definitions.
package resolver

import (
	"github.com/velcrohq/velcro/internal/overrides"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
	"github.com/velcrohq/velcro/pkg/logger"
)

// Resolver combines global handler definitions with the session and project
// override stores.
type Resolver struct {
	handlers []*config.Handler
	session  *overrides.SessionStore
	project  *overrides.ProjectStore
	logger   logger.Logger
}

// New creates a Resolver over the global definitions in definition order.
func New(
	handlers []*config.Handler,
	session *overrides.SessionStore,
	project *overrides.ProjectStore,
	log logger.Logger,
) *Resolver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Resolver{
		handlers: handlers,
		session:  session,
		project:  project,
		logger:   log,
	}
}

// Resolve returns the effective handlers for the event, in global definition
// order. The aggregator reuses this order to make output concatenation
// deterministic.
func (r *Resolver) Resolve(evt *hook.Event) []*config.Handler {
	resolved := make([]*config.Handler, 0, len(r.handlers))

	for _, h := range r.handlers {
		if !h.AttachesTo(evt.HookEventName) {
			continue
		}

		if !r.effectiveEnabled(evt.SessionID, h) {
			r.logger.Debug("handler disabled for event",
				"handler", h.Name,
				"event", evt.HookEventName,
			)

			continue
		}

		resolved = append(resolved, r.applyFieldOverride(h))
	}

	r.logger.Info("resolved handlers",
		"event", evt.HookEventName,
		"count", len(resolved),
	)

	return resolved
}

// effectiveEnabled applies the strict precedence chain:
// session override > project include/exclude > handler's own flag.
func (r *Resolver) effectiveEnabled(sessionID string, h *config.Handler) bool {
	if r.session != nil {
		switch r.session.Get(sessionID, h.Name) {
		case overrides.StateEnabled:
			return true
		case overrides.StateDisabled:
			return false
		case overrides.StateNone:
		}
	}

	if r.project != nil {
		switch r.project.Effective(h.Name) {
		case overrides.StateEnabled:
			return true
		case overrides.StateDisabled:
			return false
		case overrides.StateNone:
		}
	}

	return h.Enabled()
}

// applyFieldOverride shallow-merges a project field override onto the
// definition, returning a copy. The stored definition is never mutated.
func (r *Resolver) applyFieldOverride(h *config.Handler) *config.Handler {
	if r.project == nil {
		return h
	}

	override := r.project.FieldOverride(h.Name)
	if override == nil {
		return h
	}

	merged := override.Apply(h)
	merged.Source = "project-override"

	r.logger.Debug("applied project field override", "handler", h.Name)

	return merged
}
