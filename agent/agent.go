// Package agent implements the role-specialized decision units that advance
// a workflow: the orchestrator plans the task graph, the operations agent
// executes backend tasks and the advisor handles client-facing tasks.
//
// Agents follow a strict contract: one Step works on at most one task,
// invokes at most one tool, and translates any tool failure or semantically
// false result into a blocker plus a failed task. The language model behind
// the llm.Client is treated as adversarial — every guarantee is enforced in
// code, not in prompts.
package agent

import (
	"context"
	"time"

	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/llm"
	"github.com/nexhelm/agentflow/logging"
	"github.com/nexhelm/agentflow/tool"
)

// Agent advances a workflow by at most one task per Step. A returned error
// is an internal failure; domain failures are recorded as blockers on the
// state instead.
type Agent interface {
	Name() string
	Step(ctx context.Context, state *core.WorkflowState) error
}

// Env bundles the per-workflow collaborators agents need. The engine builds
// one Env per workflow; the bus inside it is that workflow's bus.
type Env struct {
	Registry *tool.Registry
	LLM      *llm.Client
	Bus      *bus.Bus
	Clock    core.Clock
	Logger   logging.Logger
}

func (e Env) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now()
	}
	return time.Now().UTC()
}

func (e Env) logger() logging.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.NoOpLogger{}
}

func (e Env) publish(workflowID string, ev bus.Event) {
	if e.Bus == nil {
		return
	}
	ev.WorkflowID = workflowID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.Bus.Publish(ev)
}

// toolContext binds a registry invocation to this workflow and agent.
func (e Env) toolContext(workflowID, agentName string) *tool.Context {
	publish := func(ev bus.Event) {}
	if e.Bus != nil {
		publish = e.Bus.Publish
	}
	return &tool.Context{
		WorkflowID: workflowID,
		Agent:      agentName,
		Clock:      e.Clock,
		Logger:     e.Logger,
		Publish:    publish,
	}
}
