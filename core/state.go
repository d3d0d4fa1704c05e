package core

import (
	"fmt"
	"time"
)

// Status enumerates workflow-level states.
type Status string

// Workflow states. A workflow is blocked whenever any blocker is unresolved
// and completed only when every task is completed or skipped.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the workflow will make no further progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusBlocked
}

// Message is an observational inter-agent note. Messages never gate
// execution; they exist for audit and display.
type Message struct {
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
}

// Decision is the audit record each agent turn appends.
type Decision struct {
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
	Decision  string    `json:"decision"`
	Reasoning string    `json:"reasoning"`
}

// Blocker records an impediment. Any unresolved blocker forces the workflow
// into StatusBlocked.
type Blocker struct {
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Resolved    bool      `json:"resolved"`
}

// NextAction is a short-lived routing hint an agent may leave for the
// supervisor. Hints are advisory only: the router does not read them and
// recomputes readiness from the task graph.
type NextAction struct {
	Agent    string   `json:"agent"`
	Action   string   `json:"action"`
	Priority Priority `json:"priority"`
}

// WorkflowState is the single shared document of a workflow. Exactly one
// instance exists per workflow and it is mutated only by the executor
// goroutine that owns it. Tasks, messages, decisions and blockers grow
// monotonically; tasks are the only entries mutated in place.
type WorkflowState struct {
	WorkflowID string         `json:"workflow_id"`
	Request    Request        `json:"request"`
	Status     Status         `json:"status"`
	Context    map[string]any `json:"context"`
	Tasks      []Task         `json:"tasks"`
	Messages   []Message      `json:"messages"`
	Decisions  []Decision     `json:"decisions"`
	Blockers   []Blocker      `json:"blockers"`
	NextAction []NextAction   `json:"next_actions,omitempty"`
	Outcome    map[string]any `json:"outcome,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewWorkflowState creates a pending state document for a request.
func NewWorkflowState(workflowID string, req Request, now time.Time) *WorkflowState {
	return &WorkflowState{
		WorkflowID: workflowID,
		Request:    req,
		Status:     StatusPending,
		Context:    map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Task returns a pointer to the task with the given id, or nil.
func (s *WorkflowState) Task(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// SetTasks installs the planned task list, validating ids are unique and
// owners are known. Dependency acyclicity is checked by the plan package.
func (s *WorkflowState) SetTasks(tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
	}
	s.Tasks = tasks
	return nil
}

// DependenciesMet reports whether every dependency of t is completed.
func (s *WorkflowState) DependenciesMet(t Task) bool {
	for _, dep := range t.Dependencies {
		d := s.Task(dep)
		if d == nil || d.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// ReadyTasks returns pending tasks whose dependencies are all completed, in
// task-list order.
func (s *WorkflowState) ReadyTasks() []Task {
	var ready []Task
	for _, t := range s.Tasks {
		if t.Status == TaskPending && s.DependenciesMet(t) {
			ready = append(ready, t)
		}
	}
	return ready
}

// InProgress returns the task currently in progress, or nil. The executor is
// single-threaded per workflow so at most one exists.
func (s *WorkflowState) InProgress() *Task {
	for i := range s.Tasks {
		if s.Tasks[i].Status == TaskInProgress {
			return &s.Tasks[i]
		}
	}
	return nil
}

// MarkTask transitions a task, enforcing the legal transition set. The
// result string is recorded on terminal transitions.
func (s *WorkflowState) MarkTask(id string, to TaskStatus, result string, now time.Time) error {
	t := s.Task(id)
	if t == nil {
		return fmt.Errorf("unknown task %s", id)
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("illegal task transition %s: %s -> %s", id, t.Status, to)
	}
	t.Status = to
	if to.Terminal() && result != "" {
		t.Result = result
	}
	s.UpdatedAt = now
	return nil
}

// AddBlocker appends an unresolved blocker and moves the workflow to
// StatusBlocked.
func (s *WorkflowState) AddBlocker(description, createdBy string, now time.Time) {
	s.Blockers = append(s.Blockers, Blocker{
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	})
	s.Status = StatusBlocked
	s.UpdatedAt = now
}

// UnresolvedBlockers returns all blockers that have not been resolved.
func (s *WorkflowState) UnresolvedBlockers() []Blocker {
	var out []Blocker
	for _, b := range s.Blockers {
		if !b.Resolved {
			out = append(out, b)
		}
	}
	return out
}

// AppendMessage records an inter-agent message.
func (s *WorkflowState) AppendMessage(from, to, content, typ string, now time.Time) {
	s.Messages = append(s.Messages, Message{
		FromAgent: from,
		ToAgent:   to,
		Timestamp: now,
		Content:   content,
		Type:      typ,
	})
	s.UpdatedAt = now
}

// AppendDecision records an agent decision.
func (s *WorkflowState) AppendDecision(agent, decision, reasoning string, now time.Time) {
	s.Decisions = append(s.Decisions, Decision{
		Agent:     agent,
		Timestamp: now,
		Decision:  decision,
		Reasoning: reasoning,
	})
	s.UpdatedAt = now
}

// SetOutcome merges key/value pairs into the workflow outcome.
func (s *WorkflowState) SetOutcome(kv map[string]any, now time.Time) {
	if s.Outcome == nil {
		s.Outcome = map[string]any{}
	}
	for k, v := range kv {
		s.Outcome[k] = v
	}
	s.UpdatedAt = now
}

// ClearNextActions drops any routing hints.
func (s *WorkflowState) ClearNextActions() { s.NextAction = nil }

// Clone returns a deep copy safe for observers while the executor keeps
// mutating the original.
func (s *WorkflowState) Clone() *WorkflowState {
	c := *s
	c.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		c.Context[k] = v
	}
	c.Tasks = make([]Task, len(s.Tasks))
	copy(c.Tasks, s.Tasks)
	for i := range c.Tasks {
		deps := make([]string, len(s.Tasks[i].Dependencies))
		copy(deps, s.Tasks[i].Dependencies)
		c.Tasks[i].Dependencies = deps
	}
	c.Messages = append([]Message(nil), s.Messages...)
	c.Decisions = append([]Decision(nil), s.Decisions...)
	c.Blockers = append([]Blocker(nil), s.Blockers...)
	c.NextAction = append([]NextAction(nil), s.NextAction...)
	if s.Outcome != nil {
		c.Outcome = make(map[string]any, len(s.Outcome))
		for k, v := range s.Outcome {
			c.Outcome[k] = v
		}
	}
	return &c
}
