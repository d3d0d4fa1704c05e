// Package llm is the narrow boundary between agents and language models. An
// Adapter turns a role prompt plus a state digest into one structured
// Decision. The Client wrapper adds the deadline, caching and
// conservative-fallback behavior the engine relies on: model output is
// treated as adversarial and every structural guarantee lives outside this
// package.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Agent roles used as the first cache-key component and for provider
// prompt selection.
const (
	RoleOrchestrator = "orchestrator"
	RoleOperations   = "operations"
	RoleAdvisor      = "advisor"
)

// Task status values a decision may request.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

// ToolCall names one tool invocation the model wants performed.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// PlannedTask is one entry of an orchestrator plan.
type PlannedTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Owner        string   `json:"owner"`
	Dependencies []string `json:"dependencies,omitempty"`
	Priority     string   `json:"priority,omitempty"`
}

// Decision is the structured result of one model call. Worker roles fill
// ToolCalls/TaskStatus; the orchestrator fills Plan. The engine enforces
// that at most one tool call is honored per step regardless of how many the
// model returns.
type Decision struct {
	Reasoning       string        `json:"reasoning"`
	TaskStatus      string        `json:"task_status,omitempty"`
	ToolCalls       []ToolCall    `json:"tools_to_use,omitempty"`
	MessageToClient string        `json:"message_to_client,omitempty"`
	Plan            []PlannedTask `json:"plan,omitempty"`

	// Call metadata, set by the Client wrapper. Not part of the model
	// contract and never serialized.
	Fallback bool          `json:"-"`
	Cached   bool          `json:"-"`
	Latency  time.Duration `json:"-"`
}

// FallbackDecision is the conservative decision returned when the model
// times out or produces unparseable output: no tool, task left pending.
func FallbackDecision(reason string) Decision {
	return Decision{
		Reasoning:  reason,
		TaskStatus: StatusPending,
		Fallback:   true,
	}
}

// ParseDecision extracts the first JSON object from model output and decodes
// it. Providers call this on raw completion text; any failure makes the
// Client fall back.
func ParseDecision(text string) (Decision, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Decision{}, fmt.Errorf("no JSON object in model output")
	}
	var d Decision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return d, nil
}

// Digest is the compact, deterministic state summary handed to the adapter
// alongside the role prompt. It is JSON on the wire so provider prompts and
// the scripted adapter share one shape.
type Digest struct {
	RequestType     string   `json:"request_type"`
	ClientID        string   `json:"client_id"`
	ClientName      string   `json:"client_name,omitempty"`
	AccountType     string   `json:"account_type,omitempty"`
	TaskID          string   `json:"task_id,omitempty"`
	TaskDescription string   `json:"task_description,omitempty"`
	TaskOwner       string   `json:"task_owner,omitempty"`
	OutcomePresent  bool     `json:"outcome_present"`
	AccountNumber   string   `json:"account_number,omitempty"`
	ActiveBlockers  []string `json:"active_blockers,omitempty"`
	CompletedTasks  []string `json:"completed_tasks,omitempty"`
}

// Encode renders the digest as its canonical JSON form.
func (d Digest) Encode() string {
	b, _ := json.Marshal(d)
	return string(b)
}

// ParseDigest decodes a digest previously produced by Encode.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Digest{}, fmt.Errorf("decode digest: %w", err)
	}
	return d, nil
}
