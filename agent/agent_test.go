package agent

import (
	"context"
	"testing"

	"github.com/nexhelm/agentflow/backend"
	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/internal/testutil"
	"github.com/nexhelm/agentflow/llm"
	"github.com/nexhelm/agentflow/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env      Env
	set      *backend.Set
	adapter  *llm.ScriptedAdapter
	bus      *bus.Bus
	sub      *bus.Subscription
	clock    *testutil.Clock
	registry *tool.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock()
	set := backend.DemoSet(clock)
	registry := tool.DefaultRegistry(set)
	adapter := llm.NewScriptedAdapter()
	b := bus.New("wf-1", func(o *bus.Options) { o.BufferSize = 256 })
	return &fixture{
		env: Env{
			Registry: registry,
			LLM:      llm.NewClient(adapter),
			Bus:      b,
			Clock:    clock,
		},
		set:      set,
		adapter:  adapter,
		bus:      b,
		sub:      b.Subscribe(),
		clock:    clock,
		registry: registry,
	}
}

func (f *fixture) events() []bus.Event {
	f.bus.Close()
	return testutil.Collect(f.sub)
}

func opsState(desc string) *core.WorkflowState {
	return testutil.NewState("wf-1").
		WithTask("task_1", desc, core.AgentOperations, core.TaskPending).
		Build()
}

func TestOperationsCompletesEligibilityTask(t *testing.T) {
	f := newFixture(t)
	st := opsState("Verify IRA income eligibility and regulatory requirements")

	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	task := st.Task("task_1")
	assert.Equal(t, core.TaskCompleted, task.Status)
	assert.Contains(t, task.Result, "eligible")
	assert.Equal(t, core.StatusInProgress, st.Status)
	require.Len(t, st.Decisions, 1)
	assert.Empty(t, st.UnresolvedBlockers())
}

func TestStepMutatesExactlyOneTask(t *testing.T) {
	f := newFixture(t)
	st := testutil.NewState("wf-1").
		WithTask("task_1", "Verify IRA income eligibility", core.AgentOperations, core.TaskPending).
		WithTask("task_2", "Validate submitted IRA application", core.AgentOperations, core.TaskPending).
		Build()

	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	assert.Equal(t, core.TaskCompleted, st.Task("task_1").Status)
	assert.Equal(t, core.TaskPending, st.Task("task_2").Status)
}

func TestToolFailureBecomesBlocker(t *testing.T) {
	f := newFixture(t)
	// The demo client gets an account up front so open_account conflicts.
	existing, err := f.set.Accounts.Open("test_client_complete", "roth_ira")
	require.NoError(t, err)

	st := opsState("Open IRA account in system and generate account number")
	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	task := st.Task("task_1")
	assert.Equal(t, core.TaskFailed, task.Status)
	assert.Equal(t, core.StatusBlocked, st.Status)
	assert.Empty(t, st.NextAction)
	blockers := st.UnresolvedBlockers()
	require.Len(t, blockers, 1)
	assert.Contains(t, blockers[0].Description, existing.AccountNumber)
	assert.Empty(t, st.Outcome)
}

func TestSemanticFalsityBecomesBlocker(t *testing.T) {
	f := newFixture(t)
	f.set.Documents.Update("test_client_complete", "tax_return", backend.Document{"income": 500000})

	st := opsState("Verify IRA income eligibility and regulatory requirements")
	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	assert.Equal(t, core.TaskFailed, st.Task("task_1").Status)
	assert.Equal(t, core.StatusBlocked, st.Status)
	require.Len(t, st.UnresolvedBlockers(), 1)
	assert.Contains(t, st.UnresolvedBlockers()[0].Description, "limit")
}

func TestOnlyFirstToolIsInvoked(t *testing.T) {
	f := newFixture(t)
	f.adapter.Stub(llm.RoleOperations, "eligibility", llm.Decision{
		TaskStatus: llm.StatusCompleted,
		ToolCalls: []llm.ToolCall{
			{Tool: "check_eligibility", Params: map[string]any{"client_id": "test_client_complete", "product_type": "roth_ira"}},
			{Tool: "open_account", Params: map[string]any{"client_id": "test_client_complete", "account_type": "roth_ira"}},
		},
	})

	st := opsState("Verify IRA income eligibility")
	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	var toolEvents, warnings int
	for _, ev := range f.events() {
		switch ev.Type {
		case bus.EventToolExecution:
			toolEvents++
		case bus.EventLog:
			warnings++
		}
	}
	assert.Equal(t, 1, toolEvents, "exactly one tool call reaches the registry")
	assert.Equal(t, 1, warnings, "a warning event flags the extra tool requests")
	assert.Empty(t, f.set.Accounts.All(), "the second tool must not run")
}

func TestOpenAccountRecordsOutcomeAndSuccessEvent(t *testing.T) {
	f := newFixture(t)
	st := opsState("Open IRA account in system and generate account number")

	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	require.NotEmpty(t, st.Outcome)
	number := st.Outcome["account_number"].(string)
	assert.Regexp(t, `^ROTH_IRA-\d+$`, number)
	assert.Contains(t, st.Task("task_1").Result, number)

	var success bool
	for _, ev := range f.events() {
		if ev.Type == bus.EventSuccess {
			success = true
			assert.Equal(t, number, ev.Payload["account_number"])
		}
	}
	assert.True(t, success)
}

func TestAdvisorDowngradesUnverifiedOutcomeClaim(t *testing.T) {
	f := newFixture(t)
	st := testutil.NewState("wf-1").
		WithTask("task_1", "Notify client of successful account opening", core.AgentAdvisor, core.TaskPending).
		Build()

	require.NoError(t, NewAdvisor(f.env).Step(context.Background(), st))

	log := f.set.Notifier.Log()
	require.Len(t, log, 1)
	assert.NotContains(t, log[0].Content, "created")
	assert.Contains(t, log[0].Content, "in progress")
	assert.Equal(t, "status_update", log[0].Type)
	assert.Equal(t, core.TaskCompleted, st.Task("task_1").Status)
}

func TestAdvisorSendsVerifiedOutcomeClaim(t *testing.T) {
	f := newFixture(t)
	st := testutil.NewState("wf-1").
		WithTask("task_1", "Notify client of successful account opening", core.AgentAdvisor, core.TaskPending).
		Build()
	st.SetOutcome(map[string]any{"account_number": "ROTH_IRA-1000"}, f.clock.Now())

	require.NoError(t, NewAdvisor(f.env).Step(context.Background(), st))

	log := f.set.Notifier.Log()
	require.Len(t, log, 1)
	assert.Contains(t, log[0].Content, "created")
	assert.Equal(t, "account_opened", log[0].Type)
}

func TestFirstFallbackLeavesTaskPending(t *testing.T) {
	f := newFixture(t)
	f.adapter.FailNext(1)
	st := opsState("Verify IRA income eligibility")

	require.NoError(t, NewOperations(f.env).Step(context.Background(), st))

	assert.Equal(t, core.TaskPending, st.Task("task_1").Status)
	assert.Empty(t, st.UnresolvedBlockers())
	require.NotEmpty(t, st.Decisions)
	assert.Contains(t, st.Decisions[0].Decision, "fallback")
}

func TestSecondConsecutiveFallbackFailsTask(t *testing.T) {
	f := newFixture(t)
	f.adapter.FailNext(2)
	st := opsState("Verify IRA income eligibility")
	ops := NewOperations(f.env)

	require.NoError(t, ops.Step(context.Background(), st))
	require.NoError(t, ops.Step(context.Background(), st))

	assert.Equal(t, core.TaskFailed, st.Task("task_1").Status)
	assert.Equal(t, core.StatusBlocked, st.Status)
	require.Len(t, st.UnresolvedBlockers(), 1)
	assert.Contains(t, st.UnresolvedBlockers()[0].Description, "model unavailable")
}

func TestOrchestratorPlansAndEnrichesContext(t *testing.T) {
	f := newFixture(t)
	st := testutil.NewState("wf-1").Build()
	st.Status = core.StatusPending

	require.NoError(t, NewOrchestrator(f.env).Step(context.Background(), st))

	require.Len(t, st.Tasks, 5)
	assert.Equal(t, core.StatusInProgress, st.Status)
	assert.Equal(t, "model", st.Context["plan_source"])
	assert.Equal(t, 35, st.Context["client_age"])
	assert.Equal(t, "Test Client Complete", st.Request.ClientName)
	for _, task := range st.Tasks {
		assert.Equal(t, core.TaskPending, task.Status)
	}
}

func TestOrchestratorFallsBackToTemplatePlan(t *testing.T) {
	f := newFixture(t)
	f.adapter.FailNext(1)
	st := testutil.NewState("wf-1").Build()

	require.NoError(t, NewOrchestrator(f.env).Step(context.Background(), st))

	require.Len(t, st.Tasks, 5)
	assert.Equal(t, "fallback", st.Context["plan_source"])
	assert.Regexp(t, `(?i)open.*account`, st.Tasks[3].Description)
}

func TestOrchestratorNormalizesMalformedPlans(t *testing.T) {
	f := newFixture(t)
	f.adapter.Stub(llm.RoleOrchestrator, "ira", llm.Decision{
		Plan: []llm.PlannedTask{
			{ID: "", Description: "Verify eligibility", Owner: "compliance_bot", Priority: "urgent"},
			{ID: "task_2", Description: "Open account", Owner: core.AgentOperations, Dependencies: []string{"task_2", "task_99"}},
		},
	})
	st := testutil.NewState("wf-1").Build()

	require.NoError(t, NewOrchestrator(f.env).Step(context.Background(), st))

	require.Len(t, st.Tasks, 2)
	assert.Equal(t, "task_1", st.Tasks[0].ID)
	assert.Equal(t, core.AgentOperations, st.Tasks[0].Owner)
	assert.Equal(t, core.PriorityNormal, st.Tasks[0].Priority)
	// Self and unknown dependencies are dropped.
	assert.Empty(t, st.Tasks[1].Dependencies)
}
