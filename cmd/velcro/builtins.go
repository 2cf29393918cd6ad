package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/pkg/hook"
)

// sensitivePathFragments flag files whose modification the built-in guard
// vetoes.
var sensitivePathFragments = []string{".env", "secrets", "credentials", "private"}

// newFuncRegistry builds the registry of built-in function handlers.
// Function handler definitions name one of these in their code payload.
func newFuncRegistry() *engine.FuncRegistry {
	registry := engine.NewFuncRegistry()

	registry.Register("protect-sensitive-files", protectSensitiveFiles)
	registry.Register("log-tool-use", logToolUse)

	return registry
}

// protectSensitiveFiles vetoes file edits that target sensitive paths.
func protectSensitiveFiles(_ context.Context, evt *hook.Event) (*engine.FuncResponse, error) {
	if evt.HookEventName != hook.EventPreToolUse {
		return &engine.FuncResponse{}, nil
	}

	filePath, _ := evt.ToolInput["file_path"].(string)
	if filePath == "" {
		return &engine.FuncResponse{}, nil
	}

	lowered := strings.ToLower(filePath)
	for _, fragment := range sensitivePathFragments {
		if strings.Contains(lowered, fragment) {
			return &engine.FuncResponse{
				Blocked: true,
				Reason:  fmt.Sprintf("Editing sensitive file %q is not allowed", filePath),
			}, nil
		}
	}

	return &engine.FuncResponse{}, nil
}

// logToolUse reports tool usage after the fact.
func logToolUse(_ context.Context, evt *hook.Event) (*engine.FuncResponse, error) {
	if evt.HookEventName != hook.EventPostToolUse || evt.ToolName == "" {
		return &engine.FuncResponse{}, nil
	}

	return &engine.FuncResponse{
		Output: fmt.Sprintf("Tool %q completed", evt.ToolName),
	}, nil
}
