package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/nexhelm/agentflow/core"
)

// Route is the supervisor's verdict: either the workflow is done or a named
// agent should take the next turn.
type Route struct {
	Done bool
	Next string
	// Reason is a short human-readable explanation carried on routing
	// events.
	Reason string
}

// route decides who acts next. It is pure apart from the terminal markings
// the decision procedure requires: failing a workflow with no planned tasks,
// promoting an all-terminal task list to completed/failed, and recording a
// dependency deadlock as a blocker.
//
// Decision order:
//  1. Terminal workflow status: done.
//  2. Every task terminal: mark completed (outcome present or all tasks
//     completed or skipped) or failed, done. An empty task list fails.
//  3. Compute the ready set.
//  4. Ready set empty while a task is in progress: invariant violation.
//  5. Ready set empty, nothing in progress, tasks still pending: dependency
//     deadlock, record blocker, done.
//  6. Highest-priority ready task (ties: lowest id) names the next agent.
func route(state *core.WorkflowState, now time.Time) (Route, error) {
	if state.Status.Terminal() {
		return Route{Done: true, Reason: "workflow status " + string(state.Status)}, nil
	}

	if len(state.Tasks) == 0 {
		state.Status = core.StatusFailed
		state.UpdatedAt = now
		return Route{Done: true, Reason: "no tasks planned"}, nil
	}

	allTerminal := true
	allCompleted := true
	for _, t := range state.Tasks {
		if !t.Status.Terminal() {
			allTerminal = false
		}
		if t.Status != core.TaskCompleted && t.Status != core.TaskSkipped {
			allCompleted = false
		}
	}
	if allTerminal {
		if len(state.Outcome) > 0 || allCompleted {
			state.Status = core.StatusCompleted
			state.UpdatedAt = now
			return Route{Done: true, Reason: "all tasks terminal, workflow completed"}, nil
		}
		state.Status = core.StatusFailed
		state.UpdatedAt = now
		return Route{Done: true, Reason: "all tasks terminal without outcome, workflow failed"}, nil
	}

	ready := state.ReadyTasks()
	if len(ready) == 0 {
		if state.InProgress() != nil {
			return Route{}, fmt.Errorf("ready set empty while task %s is in progress", state.InProgress().ID)
		}
		state.AddBlocker("dependency deadlock: pending tasks exist but none are ready", "supervisor", now)
		return Route{Done: true, Reason: "dependency deadlock"}, nil
	}

	sort.SliceStable(ready, func(i, j int) bool { return core.LessTask(ready[i], ready[j]) })
	next := ready[0]
	return Route{
		Next:   next.Owner,
		Reason: fmt.Sprintf("task %s ready for %s", next.ID, next.Owner),
	}, nil
}
