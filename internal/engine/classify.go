package engine

import (
	"encoding/json"
	"strings"
)

// Exit codes in the handler protocol. The contract is bit-exact: 0 allows,
// 2 blocks, any other nonzero value is a non-blocking failure.
const (
	// ExitCodeAllow is the success exit code.
	ExitCodeAllow = 0

	// ExitCodeBlock is the hard blocking exit code. It cannot be
	// overridden by JSON output.
	ExitCodeBlock = 2
)

// Recognized fields of a structured handler response.
const (
	decisionField = "decision"
	reasonField   = "reason"

	decisionBlock   = "block"
	decisionApprove = "approve"
)

// classify interprets a subprocess outcome (exit code plus captured output)
// into the normalized result fields.
//
// Precedence:
//  1. exit code 0 defaults to success
//  2. exit code 2 is a hard override: blocked, regardless of JSON
//  3. any other nonzero exit code is a non-blocking failure
//  4. a JSON decision on stdout may flip the outcome: "block" vetoes,
//     "approve" forces success for any exit code except 2
//
// Malformed JSON is not an error; the output is treated as ordinary text.
func classify(res *Result, exitCode int, stdout, stderr string) {
	res.ExitCode = intPtr(exitCode)
	res.Stdout = stdout
	res.Stderr = stderr
	res.Success = exitCode == ExitCodeAllow

	hardBlocked := exitCode == ExitCodeBlock
	if hardBlocked {
		res.Blocked = true
		res.Success = false
	} else if exitCode != ExitCodeAllow {
		res.Success = false
	}

	applyJSONDecision(res, stdout, hardBlocked)

	if res.Blocked && res.Reason == "" {
		res.Reason = strings.TrimSpace(stderr)
	}

	switch {
	case res.Blocked:
		res.State = StateBlocked
	case res.Success:
		res.State = StateSuccess
	default:
		res.State = StateFailure
	}
}

// applyJSONDecision parses a structured response from stdout and applies a
// recognized decision field. hardBlocked marks an exit-2 veto, which no
// "approve" can undo.
func applyJSONDecision(res *Result, stdout string, hardBlocked bool) {
	trimmed := strings.TrimSpace(stdout)
	if !strings.HasPrefix(trimmed, "{") {
		return
	}

	var response map[string]any
	if err := json.Unmarshal([]byte(trimmed), &response); err != nil {
		return
	}

	res.Response = response

	decision, _ := response[decisionField].(string)

	switch decision {
	case decisionBlock:
		res.Blocked = true
		res.Success = false

		if reason, ok := response[reasonField].(string); ok {
			res.Reason = reason
		}
	case decisionApprove:
		if hardBlocked {
			return
		}

		res.Blocked = false
		res.Success = true
	}
}
