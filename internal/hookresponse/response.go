// Package hookresponse builds the structured JSON response written to stdout
// for the host tool-use loop.
package hookresponse

import (
	"github.com/velcrohq/velcro/internal/aggregator"
	"github.com/velcrohq/velcro/pkg/hook"
)

// Permission decisions understood by the host.
const (
	decisionAllow = "allow"
	decisionDeny  = "deny"
)

// Response is the top-level JSON structure written to stdout.
type Response struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`
}

// HookSpecificOutput carries the permission decision and context back to the
// host.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
}

// Build constructs a Response from a merged decision. Returns nil when there
// is nothing to report (allowed, no output).
func Build(evt *hook.Event, decision *aggregator.Decision) *Response {
	if decision == nil || (!decision.Blocked && decision.Output == "") {
		return nil
	}

	resp := &Response{
		SystemMessage: decision.Output,
	}

	if decision.Blocked {
		resp.HookSpecificOutput = &HookSpecificOutput{
			HookEventName:            string(evt.HookEventName),
			PermissionDecision:       decisionDeny,
			PermissionDecisionReason: decision.Reason,
			AdditionalContext:        decision.Output,
		}

		return resp
	}

	resp.HookSpecificOutput = &HookSpecificOutput{
		HookEventName:      string(evt.HookEventName),
		PermissionDecision: decisionAllow,
		AdditionalContext:  decision.Output,
	}

	return resp
}
