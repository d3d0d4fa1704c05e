package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/llm"
)

// Orchestrator plans the workflow. It runs exactly once per workflow,
// before any worker agent, and populates the task graph from the model's
// plan or from a deterministic fallback when the model is unusable. The
// structural validator in the plan package runs after it.
type Orchestrator struct {
	worker
}

// NewOrchestrator constructs the planning agent for one workflow.
func NewOrchestrator(env Env) *Orchestrator {
	return &Orchestrator{worker: worker{
		name: core.AgentOrchestrator,
		role: llm.RoleOrchestrator,
		env:  env,
	}}
}

// Step produces the task graph and moves the workflow to in_progress.
func (o *Orchestrator) Step(ctx context.Context, state *core.WorkflowState) error {
	o.enrichContext(state)

	dec := o.decide(ctx, state, orchestratorPrompt, digest(state, nil))
	source := "model"
	if dec.Fallback || len(dec.Plan) == 0 {
		dec = llm.Decision{
			Reasoning: "planned with the standard template after model fallback",
			Plan:      fallbackPlan(state.Request),
		}
		source = "fallback"
	}

	tasks := normalizePlan(dec.Plan, o.env)
	if err := state.SetTasks(tasks); err != nil {
		return fmt.Errorf("planning produced an invalid task list: %w", err)
	}
	state.Status = core.StatusInProgress
	state.Context["plan_source"] = source
	state.AppendMessage(o.name, "workflow_system",
		fmt.Sprintf("created workflow plan with %d tasks", len(tasks)), "workflow_planning", o.env.now())
	state.AppendDecision(o.name, "created workflow plan", dec.Reasoning, o.env.now())
	o.setNextHint(state)

	for _, t := range state.Tasks {
		o.publishTaskUpdate(state, t)
	}
	return nil
}

// enrichContext pulls the client profile into the workflow context so later
// turns and observers see who the workflow is about.
func (o *Orchestrator) enrichContext(state *core.WorkflowState) {
	tc := o.env.toolContext(state.WorkflowID, o.name)
	res := o.env.Registry.Invoke(tc, "get_client_info", map[string]any{
		"client_id": state.Request.ClientID,
	})
	if !res.OK {
		o.env.logger().Warn("client lookup failed during planning",
			"client_id", state.Request.ClientID, "error", res.Message)
		return
	}
	client, _ := res.Payload["client"].(map[string]any)
	state.Context["client_age"] = client["age"]
	state.Context["client_income"] = client["income"]
	state.Context["existing_accounts"] = client["existing_accounts"]
	state.Context["available_documents"] = res.Payload["available_documents"]
	if state.Request.ClientName == "" {
		if name, ok := client["name"].(string); ok {
			state.Request.ClientName = name
		}
	}
}

// normalizePlan converts model-proposed tasks into well-formed ones:
// sequential ids where missing or duplicated, known owners, known
// priorities, and dependencies restricted to ids that exist.
func normalizePlan(plan []llm.PlannedTask, env Env) []core.Task {
	tasks := make([]core.Task, 0, len(plan))
	seen := map[string]bool{}
	for i, p := range plan {
		id := strings.TrimSpace(p.ID)
		if id == "" || seen[id] {
			id = fmt.Sprintf("task_%d", i+1)
		}
		seen[id] = true

		owner := p.Owner
		if owner != core.AgentOperations && owner != core.AgentAdvisor {
			owner = core.AgentOperations
		}
		priority := core.Priority(p.Priority)
		if priority != core.PriorityHigh && priority != core.PriorityNormal && priority != core.PriorityLow {
			priority = core.PriorityNormal
		}
		tasks = append(tasks, core.Task{
			ID:           id,
			Description:  p.Description,
			Owner:        owner,
			Status:       core.TaskPending,
			Dependencies: append([]string(nil), p.Dependencies...),
			Priority:     priority,
		})
	}

	ids := map[string]bool{}
	for _, t := range tasks {
		ids[t.ID] = true
	}
	for i := range tasks {
		var deps []string
		for _, d := range tasks[i].Dependencies {
			if ids[d] && d != tasks[i].ID {
				deps = append(deps, d)
				continue
			}
			env.logger().Warn("dropping unknown plan dependency", "task", tasks[i].ID, "dependency", d)
		}
		tasks[i].Dependencies = deps
	}
	return tasks
}

// fallbackPlan is the deterministic template used when the model cannot
// produce a plan: the standard IRA opening flow, or a minimal pair of tasks
// for unrecognized request families.
func fallbackPlan(req core.Request) []llm.PlannedTask {
	if strings.Contains(strings.ToLower(req.RequestType), "ira") {
		return []llm.PlannedTask{
			{ID: "task_1", Description: "Verify IRA income eligibility and regulatory requirements", Owner: core.AgentOperations, Priority: "high"},
			{ID: "task_2", Description: "Send personalized IRA application form to client", Owner: core.AgentAdvisor, Dependencies: []string{"task_1"}, Priority: "high"},
			{ID: "task_3", Description: "Review and validate submitted IRA application for completeness", Owner: core.AgentOperations, Dependencies: []string{"task_2"}, Priority: "high"},
			{ID: "task_4", Description: "Open IRA account in system and generate account number", Owner: core.AgentOperations, Dependencies: []string{"task_3"}, Priority: "high"},
			{ID: "task_5", Description: "Notify client of successful account opening and next steps", Owner: core.AgentAdvisor, Dependencies: []string{"task_4"}, Priority: "high"},
		}
	}
	return []llm.PlannedTask{
		{ID: "task_1", Description: "Analyze and process " + req.RequestType + " request", Owner: core.AgentOperations, Priority: "high"},
		{ID: "task_2", Description: "Confirm completion of " + req.RequestType + " with the client", Owner: core.AgentAdvisor, Dependencies: []string{"task_1"}, Priority: "normal"},
	}
}
