package agent

import (
	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/llm"
	"github.com/nexhelm/agentflow/tool"
)

// Operations is the backend agent: eligibility checks, document validation,
// account creation and record retrieval.
type Operations struct {
	worker
}

// NewOperations constructs the operations agent for one workflow.
func NewOperations(env Env) *Operations {
	op := &Operations{worker: worker{
		name: core.AgentOperations,
		role: llm.RoleOperations,
		env:  env,
	}}
	op.worker.afterOk = op.recordOutcome
	return op
}

// recordOutcome captures a freshly opened account as the workflow outcome
// and announces it. The outcome is what the advisor later verifies before
// telling the client their account exists.
func (o *Operations) recordOutcome(state *core.WorkflowState, call llm.ToolCall, res tool.Result) {
	if call.Tool != "open_account" {
		return
	}
	number, _ := res.Payload["account_number"].(string)
	if number == "" {
		return
	}
	now := o.env.now()
	state.SetOutcome(map[string]any{
		"account_number": number,
		"account_type":   res.Payload["account_type"],
		"status":         res.Payload["status"],
		"created_at":     res.Payload["created_at"],
	}, now)
	state.Context["account_number"] = number
	o.env.publish(state.WorkflowID, bus.Event{
		Type:  bus.EventSuccess,
		Agent: o.name,
		Payload: map[string]any{
			"account_number": number,
			"account_type":   res.Payload["account_type"],
			"client_id":      state.Request.ClientID,
		},
	})
}
