package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(t *testing.T) *WorkflowState {
	t.Helper()
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	st := NewWorkflowState("wf-1", Request{
		RequestType: "open_roth_ira",
		ClientID:    "client-1",
		CreatedAt:   now,
	}, now)
	require.NoError(t, st.SetTasks([]Task{
		{ID: "task_1", Description: "verify eligibility", Owner: AgentOperations, Status: TaskPending, Priority: PriorityHigh},
		{ID: "task_2", Description: "send form", Owner: AgentAdvisor, Status: TaskPending, Dependencies: []string{"task_1"}, Priority: PriorityHigh},
		{ID: "task_3", Description: "open account", Owner: AgentOperations, Status: TaskPending, Dependencies: []string{"task_2"}, Priority: PriorityNormal},
	}))
	return st
}

func TestTaskTransitions(t *testing.T) {
	assert.True(t, CanTransition(TaskPending, TaskInProgress))
	assert.True(t, CanTransition(TaskPending, TaskSkipped))
	assert.True(t, CanTransition(TaskInProgress, TaskCompleted))
	assert.True(t, CanTransition(TaskInProgress, TaskFailed))

	assert.False(t, CanTransition(TaskPending, TaskCompleted))
	assert.False(t, CanTransition(TaskInProgress, TaskPending))
	assert.False(t, CanTransition(TaskCompleted, TaskFailed))
	assert.False(t, CanTransition(TaskSkipped, TaskInProgress))
}

func TestMarkTaskRejectsIllegalTransition(t *testing.T) {
	st := testState(t)
	now := time.Now().UTC()

	require.Error(t, st.MarkTask("task_1", TaskCompleted, "", now))
	require.NoError(t, st.MarkTask("task_1", TaskInProgress, "", now))
	require.NoError(t, st.MarkTask("task_1", TaskCompleted, "done", now))
	assert.Equal(t, "done", st.Task("task_1").Result)

	assert.Error(t, st.MarkTask("task_1", TaskInProgress, "", now))
	assert.Error(t, st.MarkTask("missing", TaskInProgress, "", now))
}

func TestSetTasksRejectsDuplicatesAndUnknownOwner(t *testing.T) {
	st := NewWorkflowState("wf", Request{RequestType: "open_roth_ira"}, time.Now())

	err := st.SetTasks([]Task{
		{ID: "task_1", Owner: AgentOperations},
		{ID: "task_1", Owner: AgentAdvisor},
	})
	assert.ErrorContains(t, err, "duplicate task id")

	err = st.SetTasks([]Task{{ID: "task_1", Owner: "intern_agent"}})
	assert.ErrorContains(t, err, "unknown owner")
}

func TestReadyTasksRespectDependencies(t *testing.T) {
	st := testState(t)
	now := time.Now().UTC()

	ready := st.ReadyTasks()
	require.Len(t, ready, 1)
	assert.Equal(t, "task_1", ready[0].ID)

	require.NoError(t, st.MarkTask("task_1", TaskInProgress, "", now))
	assert.Empty(t, st.ReadyTasks())
	require.NoError(t, st.MarkTask("task_1", TaskCompleted, "", now))

	ready = st.ReadyTasks()
	require.Len(t, ready, 1)
	assert.Equal(t, "task_2", ready[0].ID)
}

func TestBlockersForceBlockedStatus(t *testing.T) {
	st := testState(t)
	st.Status = StatusInProgress

	st.AddBlocker("account already exists", AgentOperations, time.Now())
	assert.Equal(t, StatusBlocked, st.Status)
	assert.Len(t, st.UnresolvedBlockers(), 1)

	st.Blockers[0].Resolved = true
	assert.Empty(t, st.UnresolvedBlockers())
}

func TestCloneIsDeep(t *testing.T) {
	st := testState(t)
	now := time.Now().UTC()
	st.Context["client_age"] = 35
	st.SetOutcome(map[string]any{"account_number": "ROTH_IRA-1000"}, now)
	st.AppendMessage(AgentOperations, "client", "hello", "update", now)

	clone := st.Clone()
	clone.Context["client_age"] = 99
	clone.Tasks[0].Status = TaskFailed
	clone.Tasks[0].Dependencies = append(clone.Tasks[0].Dependencies, "task_9")
	clone.Outcome["account_number"] = "CHANGED"
	clone.Messages[0].Content = "changed"

	assert.Equal(t, 35, st.Context["client_age"])
	assert.Equal(t, TaskPending, st.Tasks[0].Status)
	assert.Empty(t, st.Tasks[0].Dependencies)
	assert.Equal(t, "ROTH_IRA-1000", st.Outcome["account_number"])
	assert.Equal(t, "hello", st.Messages[0].Content)
}

func TestLessTaskOrdersByPriorityThenID(t *testing.T) {
	high := Task{ID: "task_9", Priority: PriorityHigh}
	normal := Task{ID: "task_1", Priority: PriorityNormal}
	low := Task{ID: "task_2", Priority: PriorityLow}

	assert.True(t, LessTask(high, normal))
	assert.True(t, LessTask(normal, low))
	// Numeric id ordering, not lexicographic: task_2 before task_10.
	assert.True(t, LessTask(Task{ID: "task_2", Priority: PriorityHigh}, Task{ID: "task_10", Priority: PriorityHigh}))
	assert.True(t, LessTask(Task{ID: "task_2", Priority: PriorityHigh}, high))
}

func TestRequestAccountType(t *testing.T) {
	assert.Equal(t, "roth_ira", Request{RequestType: "open_roth_ira"}.AccountType())
	assert.Equal(t, "traditional_ira", Request{RequestType: "open_traditional_ira"}.AccountType())
	assert.Equal(t, "account_review", Request{RequestType: "account_review"}.AccountType())
}
