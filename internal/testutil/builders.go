// Package testutil provides small builders shared by package tests.
package testutil

import (
	"time"

	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
)

// Clock is a mutable fixed clock for deterministic tests.
type Clock struct {
	T time.Time
}

// NewClock starts at a stable instant.
func NewClock() *Clock {
	return &Clock{T: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

// Now implements core.Clock.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// StateBuilder assembles workflow states for unit tests.
type StateBuilder struct {
	state *core.WorkflowState
}

// NewState starts a builder for an in-progress IRA workflow.
func NewState(workflowID string) *StateBuilder {
	st := core.NewWorkflowState(workflowID, core.Request{
		RequestType: "open_roth_ira",
		ClientID:    "test_client_complete",
		Initiator:   "sarah_advisor",
	}, NewClock().Now())
	st.Status = core.StatusInProgress
	return &StateBuilder{state: st}
}

// WithRequest replaces the request.
func (b *StateBuilder) WithRequest(req core.Request) *StateBuilder {
	b.state.Request = req
	return b
}

// WithTask appends a task.
func (b *StateBuilder) WithTask(id, description, owner string, status core.TaskStatus, deps ...string) *StateBuilder {
	b.state.Tasks = append(b.state.Tasks, core.Task{
		ID:           id,
		Description:  description,
		Owner:        owner,
		Status:       status,
		Dependencies: deps,
		Priority:     core.PriorityNormal,
	})
	return b
}

// Build returns the assembled state.
func (b *StateBuilder) Build() *core.WorkflowState { return b.state }

// Collect drains a subscription into a slice, returning when the stream
// closes.
func Collect(sub *bus.Subscription) []bus.Event {
	var events []bus.Event
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	return events
}

// TypesOf projects event types in order.
func TypesOf(events []bus.Event) []bus.EventType {
	out := make([]bus.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
