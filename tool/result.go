// Package tool implements the tool-calling subsystem: a registry resolving
// tool names and parameters to typed results, schema validation of
// arguments, and the error-sealing boundary that guarantees backend errors
// surface as structured failures rather than success payloads.
package tool

import "fmt"

// Kind categorizes a tool failure. The taxonomy is shared with event
// payloads and the engine's error handling.
type Kind string

// Failure kinds.
const (
	KindNotFound           Kind = "not_found"
	KindPreconditionFailed Kind = "precondition_failed"
	KindConflict           Kind = "conflict"
	KindInvalidArgument    Kind = "invalid_argument"
	KindTimeout            Kind = "timeout"
	KindInternal           Kind = "internal"
)

// Result is the tagged union returned by every tool invocation. Either OK is
// true and Payload carries the tool-specific fields, or OK is false and
// Kind/Message describe the failure. A Result is never both.
type Result struct {
	OK      bool           `json:"ok"`
	Payload map[string]any `json:"payload,omitempty"`
	Kind    Kind           `json:"kind,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Ok builds a success result. The payload gains a success flag for
// downstream consumers that key on it.
func Ok(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	return Result{OK: true, Payload: payload}
}

// Failf builds a failure result with a formatted message.
func Failf(kind Kind, format string, args ...any) Result {
	return Result{OK: false, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ResultKind returns "ok" for successes and the failure kind otherwise,
// which is the value carried in tool_execution event payloads.
func (r Result) ResultKind() string {
	if r.OK {
		return "ok"
	}
	return string(r.Kind)
}

// Summary renders a short human-readable description of the result.
func (r Result) Summary() string {
	if !r.OK {
		return fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
	if n, ok := r.Payload["account_number"].(string); ok {
		return fmt.Sprintf("ok (account %s)", n)
	}
	return "ok"
}
