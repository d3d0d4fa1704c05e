package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/llm"
	"github.com/nexhelm/agentflow/tool"
)

// worker holds the shared step machinery of the operations and advisor
// agents. The hooks let each role adjust a tool call before it runs and
// react to a successful result without duplicating the control flow that
// enforces the one-task / one-tool / error-propagation rules.
type worker struct {
	name string
	role string
	env  Env

	// beforeTool may rewrite the chosen call (e.g. the advisor's outcome
	// verification). Optional.
	beforeTool func(state *core.WorkflowState, call *llm.ToolCall)
	// afterOk runs on a successful, semantically true result. Optional.
	afterOk func(state *core.WorkflowState, call llm.ToolCall, res tool.Result)
}

// Name returns the agent identifier used as task owner.
func (w *worker) Name() string { return w.name }

// ready returns the first pending task owned by this agent whose
// dependencies are all completed.
func (w *worker) ready(state *core.WorkflowState) *core.Task {
	for i := range state.Tasks {
		t := &state.Tasks[i]
		if t.Owner == w.name && t.Status == core.TaskPending && state.DependenciesMet(*t) {
			return t
		}
	}
	return nil
}

// digest builds the compact state summary handed to the model.
func digest(state *core.WorkflowState, task *core.Task) llm.Digest {
	d := llm.Digest{
		RequestType: state.Request.RequestType,
		ClientID:    state.Request.ClientID,
		ClientName:  state.Request.ClientName,
		AccountType: state.Request.AccountType(),
	}
	if task != nil {
		d.TaskID = task.ID
		d.TaskDescription = task.Description
		d.TaskOwner = task.Owner
	}
	if len(state.Outcome) > 0 {
		d.OutcomePresent = true
		if n, ok := state.Outcome["account_number"].(string); ok {
			d.AccountNumber = n
		}
	}
	for _, b := range state.UnresolvedBlockers() {
		d.ActiveBlockers = append(d.ActiveBlockers, b.Description)
	}
	for _, t := range state.Tasks {
		if t.Status == core.TaskCompleted {
			d.CompletedTasks = append(d.CompletedTasks, t.ID)
		}
	}
	return d
}

// decide performs the model call bracketed by llm_call events.
func (w *worker) decide(ctx context.Context, state *core.WorkflowState, prompt string, dg llm.Digest) llm.Decision {
	w.env.publish(state.WorkflowID, bus.Event{
		Type:    bus.EventLLMCall,
		Agent:   w.name,
		Payload: map[string]any{"agent": w.name, "phase": "begin"},
	})
	dec := w.env.LLM.Decide(ctx, w.role, prompt, dg.Encode())
	w.env.publish(state.WorkflowID, bus.Event{
		Type:  bus.EventLLMCall,
		Agent: w.name,
		Payload: map[string]any{
			"agent":      w.name,
			"phase":      "end",
			"latency_ms": dec.Latency.Milliseconds(),
			"cached":     dec.Cached,
			"fallback":   dec.Fallback,
		},
	})
	return dec
}

func (w *worker) publishTaskUpdate(state *core.WorkflowState, t core.Task) {
	w.env.publish(state.WorkflowID, bus.Event{
		Type:  bus.EventTaskUpdate,
		Agent: w.name,
		Payload: map[string]any{
			"task_id":      t.ID,
			"status":       string(t.Status),
			"owner":        t.Owner,
			"description":  t.Description,
			"result":       t.Result,
			"dependencies": append([]string(nil), t.Dependencies...),
		},
	})
}

// Step advances at most one task. Domain failures become blockers; only
// internal inconsistencies surface as errors.
func (w *worker) Step(ctx context.Context, state *core.WorkflowState) error {
	task := w.ready(state)
	if task == nil {
		state.AppendDecision(w.name, "no ready task", "routed without a ready task; yielding", w.env.now())
		return nil
	}
	taskID := task.ID

	dec := w.decide(ctx, state, w.prompt(), digest(state, task))
	if dec.Fallback {
		w.handleFallback(state, taskID, dec)
		return nil
	}
	if dec.TaskStatus == llm.StatusPending {
		// The model declined to act. Leave the task pending; the router
		// will retry within the step budget.
		state.AppendDecision(w.name, "deferred "+taskID, dec.Reasoning, w.env.now())
		return nil
	}

	now := w.env.now()
	if err := state.MarkTask(taskID, core.TaskInProgress, "", now); err != nil {
		return err
	}
	w.publishTaskUpdate(state, *state.Task(taskID))

	if len(dec.ToolCalls) > 1 {
		w.env.logger().Warn("model requested multiple tools, invoking only the first",
			"agent", w.name, "requested", len(dec.ToolCalls))
		w.env.publish(state.WorkflowID, bus.Event{
			Type:  bus.EventLog,
			Agent: w.name,
			Payload: map[string]any{
				"level":   "warn",
				"message": fmt.Sprintf("model requested %d tools; only the first is invoked", len(dec.ToolCalls)),
			},
		})
	}

	var (
		res     tool.Result
		invoked bool
		call    llm.ToolCall
	)
	if len(dec.ToolCalls) > 0 {
		call = dec.ToolCalls[0]
		if w.beforeTool != nil {
			w.beforeTool(state, &call)
		}
		tc := w.env.toolContext(state.WorkflowID, w.name)
		res = w.env.Registry.Invoke(tc, call.Tool, call.Params)
		invoked = true

		if reason, bad := failureReason(res); bad {
			w.failTask(state, taskID, call.Tool, reason)
			state.AppendDecision(w.name, "tool "+call.Tool+" failed", dec.Reasoning, w.env.now())
			return nil
		}
		if w.afterOk != nil {
			w.afterOk(state, call, res)
		}
	}

	if dec.TaskStatus == llm.StatusFailed {
		w.failTask(state, taskID, "agent decision", dec.Reasoning)
		state.AppendDecision(w.name, "reported failure", dec.Reasoning, w.env.now())
		return nil
	}

	result := dec.Reasoning
	if invoked {
		result = resultSummary(call.Tool, res)
	}
	if err := state.MarkTask(taskID, core.TaskCompleted, result, w.env.now()); err != nil {
		return err
	}

	if dec.MessageToClient != "" {
		state.AppendMessage(w.name, "client", dec.MessageToClient, "client_communication", w.env.now())
		w.env.publish(state.WorkflowID, bus.Event{
			Type:    bus.EventAgentMessage,
			Agent:   w.name,
			Payload: map[string]any{"to": "client", "content": dec.MessageToClient},
		})
	}
	state.AppendDecision(w.name, "completed "+taskID, dec.Reasoning, w.env.now())
	w.publishTaskUpdate(state, *state.Task(taskID))
	w.setNextHint(state)
	return nil
}

func (w *worker) prompt() string {
	if w.role == llm.RoleAdvisor {
		return advisorPrompt
	}
	return operationsPrompt
}

// handleFallback implements the bounded fallback policy: the first fallback
// on a task leaves it pending so the router retries within the step budget;
// a second consecutive fallback fails the task and records a blocker so the
// workflow cannot burn its budget on a dead model.
func (w *worker) handleFallback(state *core.WorkflowState, taskID string, dec llm.Decision) {
	key := "llm_fallbacks_" + taskID
	count, _ := state.Context[key].(int)
	count++
	state.Context[key] = count

	state.AppendDecision(w.name, "model fallback on "+taskID, dec.Reasoning, w.env.now())
	if count < 2 {
		return
	}
	now := w.env.now()
	if err := state.MarkTask(taskID, core.TaskInProgress, "", now); err == nil {
		_ = state.MarkTask(taskID, core.TaskFailed, "model unavailable", w.env.now())
	}
	state.AddBlocker("model unavailable for task "+taskID, w.name, w.env.now())
	state.ClearNextActions()
	w.publishTaskUpdate(state, *state.Task(taskID))
}

// failTask applies the error-propagation rule: mark the task failed, record
// a blocker, move the workflow to blocked and drop routing hints.
func (w *worker) failTask(state *core.WorkflowState, taskID, source, reason string) {
	msg := source + " failed: " + reason
	_ = state.MarkTask(taskID, core.TaskFailed, msg, w.env.now())
	state.AddBlocker(msg, w.name, w.env.now())
	state.ClearNextActions()
	w.publishTaskUpdate(state, *state.Task(taskID))
	w.env.publish(state.WorkflowID, bus.Event{
		Type:    bus.EventAgentMessage,
		Agent:   w.name,
		Payload: map[string]any{"to": "workflow_system", "content": msg},
	})
}

// setNextHint leaves a short-lived routing hint for the supervisor.
func (w *worker) setNextHint(state *core.WorkflowState) {
	state.ClearNextActions()
	for _, t := range state.ReadyTasks() {
		state.NextAction = []core.NextAction{{
			Agent:    t.Owner,
			Action:   t.Description,
			Priority: t.Priority,
		}}
		return
	}
}

// failureReason inspects a result for the two shapes that must stop a step:
// a structured failure or a success payload carrying a semantic falsity
// (eligible: false, valid: false).
func failureReason(res tool.Result) (string, bool) {
	if !res.OK {
		return res.Message, true
	}
	if v, ok := res.Payload["eligible"].(bool); ok && !v {
		reason, _ := res.Payload["reason"].(string)
		if reason == "" {
			reason = "client is not eligible"
		}
		return reason, true
	}
	if v, ok := res.Payload["valid"].(bool); ok && !v {
		if errs, ok := res.Payload["errors"].([]any); ok && len(errs) > 0 {
			parts := make([]string, 0, len(errs))
			for _, e := range errs {
				parts = append(parts, fmt.Sprint(e))
			}
			return strings.Join(parts, "; "), true
		}
		return "document is not valid", true
	}
	return "", false
}

// resultSummary produces the short task result recorded on completion.
func resultSummary(toolName string, res tool.Result) string {
	if n, ok := res.Payload["account_number"].(string); ok {
		return "opened account " + n
	}
	if sent, ok := res.Payload["sent"].(bool); ok && sent {
		return "notification sent"
	}
	if v, ok := res.Payload["valid"].(bool); ok && v {
		return "document valid"
	}
	if v, ok := res.Payload["eligible"].(bool); ok && v {
		reason, _ := res.Payload["reason"].(string)
		return strings.TrimSpace("eligible: " + reason)
	}
	return "completed via " + toolName
}
