// Package hook provides the core event model for Velcro hook dispatch.
package hook

import (
	"encoding/json"
	"slices"

	"github.com/cockroachdb/errors"
)

// EventName is the name of a lifecycle hook event raised by the host
// tool-use loop. Values match the wire format exactly.
type EventName string

const (
	// EventPreToolUse is raised before a tool is executed.
	EventPreToolUse EventName = "PreToolUse"

	// EventPostToolUse is raised after a tool has executed.
	EventPostToolUse EventName = "PostToolUse"

	// EventUserPromptSubmit is raised when the user submits a prompt.
	EventUserPromptSubmit EventName = "UserPromptSubmit"

	// EventNotification is raised for user-facing notifications.
	EventNotification EventName = "Notification"

	// EventStop is raised when the main agent loop stops.
	EventStop EventName = "Stop"

	// EventSubagentStop is raised when a subagent stops.
	EventSubagentStop EventName = "SubagentStop"

	// EventPreCompact is raised before transcript compaction.
	EventPreCompact EventName = "PreCompact"

	// EventSessionStart is raised when a session starts.
	EventSessionStart EventName = "SessionStart"

	// EventSessionEnd is raised when a session ends.
	EventSessionEnd EventName = "SessionEnd"
)

// AllEventNames lists every known hook event name.
var AllEventNames = []EventName{
	EventPreToolUse,
	EventPostToolUse,
	EventUserPromptSubmit,
	EventNotification,
	EventStop,
	EventSubagentStop,
	EventPreCompact,
	EventSessionStart,
	EventSessionEnd,
}

// toolBearingEvents are the events that carry a tool name and tool input.
var toolBearingEvents = []EventName{
	EventPreToolUse,
	EventPostToolUse,
}

// IsValid returns true if the event name is a known hook event.
func (e EventName) IsValid() bool {
	return slices.Contains(AllEventNames, e)
}

// ToolBearing returns true if events of this name carry tool information.
func (e EventName) ToolBearing() bool {
	return slices.Contains(toolBearingEvents, e)
}

// String returns the wire representation of the event name.
func (e EventName) String() string {
	return string(e)
}

// ParseEventName parses a wire-format event name.
func ParseEventName(s string) (EventName, error) {
	name := EventName(s)
	if !name.IsValid() {
		return "", errors.Newf("unknown hook event name: %q", s)
	}

	return name, nil
}

// Event is a single hook invocation as delivered by the host on stdin.
type Event struct {
	// HookEventName identifies the lifecycle event.
	HookEventName EventName `json:"hook_event_name"`

	// SessionID is the unique identifier for the host session.
	SessionID string `json:"session_id"`

	// CWD is the working directory of the host at event time.
	CWD string `json:"cwd"`

	// TranscriptPath is the path to the session transcript file.
	TranscriptPath string `json:"transcript_path"`

	// ToolName is the tool being invoked (tool-bearing events only).
	ToolName string `json:"tool_name,omitempty"`

	// ToolInput is the tool-specific input object (tool-bearing events only).
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// ToolResponse is the tool result (PostToolUse only).
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`

	// Prompt is the submitted prompt (UserPromptSubmit only).
	Prompt string `json:"prompt,omitempty"`

	// Message is the notification text (Notification only).
	Message string `json:"message,omitempty"`

	// Trigger is what initiated compaction (PreCompact only).
	Trigger string `json:"trigger,omitempty"`

	// Source is how the session started (SessionStart only).
	Source string `json:"source,omitempty"`

	// Raw preserves the original JSON payload for pass-through to handlers.
	Raw json.RawMessage `json:"-"`
}

// HasToolName returns true if the event carries a tool name.
func (e *Event) HasToolName() bool {
	return e.ToolName != ""
}

// EncodeJSON returns the payload that is written to handler stdin. The
// original bytes are preferred so handler input is byte-identical to what the
// host sent.
func (e *Event) EncodeJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}

	return json.Marshal(e)
}

// Environ returns the event metadata environment variables exposed to
// subprocess handlers.
func (e *Event) Environ(projectDir string) []string {
	return []string{
		"VELCRO_PROJECT_DIR=" + projectDir,
		"VELCRO_SESSION_ID=" + e.SessionID,
		"VELCRO_TRANSCRIPT_PATH=" + e.TranscriptPath,
		"VELCRO_CWD=" + e.CWD,
		"VELCRO_HOOK_NAME=" + string(e.HookEventName),
	}
}
