// Package matcher decides whether a handler's pattern applies to an event.
package matcher

import (
	"regexp"

	"github.com/velcrohq/velcro/pkg/hook"
	"github.com/velcrohq/velcro/pkg/logger"
)

// Matcher tests handler applicability against an event's tool name.
type Matcher struct {
	logger logger.Logger
}

// New creates a Matcher.
func New(log logger.Logger) *Matcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Matcher{logger: log}
}

// universal reports whether the pattern matches unconditionally.
func universal(pattern string) bool {
	return pattern == "" || pattern == "*"
}

// Matches returns true if the pattern applies to the event.
//
// Tool-bearing events: "" and "*" match unconditionally; anything else is
// compiled as a regular expression against the tool name. An invalid
// pattern fails open (matches, with a diagnostic) so an operator typo never
// silences a handler.
//
// Events without a tool name: only ""/"*" match. A literal pattern fails
// closed, since tool-name matching is meaningless there.
func (m *Matcher) Matches(pattern string, evt *hook.Event) bool {
	if universal(pattern) {
		return true
	}

	if !evt.HasToolName() {
		return false
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		m.logger.Error("invalid matcher pattern, failing open",
			"pattern", pattern,
			"tool", evt.ToolName,
			"error", err.Error(),
		)

		return true
	}

	return re.MatchString(evt.ToolName)
}
