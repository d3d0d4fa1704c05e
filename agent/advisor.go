package agent

import (
	"regexp"

	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/llm"
)

// terminalClaim matches notification content announcing a finished account.
var terminalClaim = regexp.MustCompile(`(?i)account.{0,40}(opened|created|complete)`)

// Advisor is the client-facing agent: forms, notifications and status
// updates.
type Advisor struct {
	worker
}

// NewAdvisor constructs the advisor agent for one workflow.
func NewAdvisor(env Env) *Advisor {
	a := &Advisor{worker: worker{
		name: core.AgentAdvisor,
		role: llm.RoleAdvisor,
		env:  env,
	}}
	a.worker.beforeTool = a.verifyOutcomeClaim
	return a
}

// verifyOutcomeClaim enforces the state-verification rule: a notification
// may only announce an opened account when the workflow outcome records one.
// Unverified claims are downgraded to in-progress phrasing rather than sent.
func (a *Advisor) verifyOutcomeClaim(state *core.WorkflowState, call *llm.ToolCall) {
	if call.Tool != "send_notification" {
		return
	}
	content, _ := call.Params["content"].(string)
	if !terminalClaim.MatchString(content) {
		return
	}
	if _, ok := state.Outcome["account_number"].(string); ok {
		return
	}
	if call.Params == nil {
		call.Params = map[string]any{}
	}
	call.Params["content"] = "Your " + state.Request.AccountType() +
		" request is in progress. We will send you a confirmation as soon as it is ready."
	call.Params["type"] = "status_update"
	a.env.logger().Warn("downgraded unverified outcome claim in notification",
		"agent", a.name, "workflow_id", state.WorkflowID)
}
