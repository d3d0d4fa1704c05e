// Package engine drives workflows to a terminal state. It owns the executor
// loop (bounded by a step budget), routes turns among the agents via the
// supervisor decision procedure, and wires each workflow to its own event
// bus and goroutine. Multiple workflows run in parallel, fully independent;
// the tool backends are the only shared state.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexhelm/agentflow/agent"
	"github.com/nexhelm/agentflow/backend"
	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/llm"
	"github.com/nexhelm/agentflow/logging"
	"github.com/nexhelm/agentflow/plan"
	"github.com/nexhelm/agentflow/store"
	"github.com/nexhelm/agentflow/tool"
)

// Config defines tuning parameters for workflow execution.
type Config struct {
	// MaxSteps bounds agent invocations per workflow, planning included.
	// It is the backstop against runaway model behavior.
	MaxSteps int
	// EventBufferSize sets each subscriber's channel buffer.
	EventBufferSize int
	// DropLogs lets the bus drop log events under back-pressure instead of
	// blocking the executor.
	DropLogs bool
}

// DefaultConfig provides the defaults used by New: a 50-step budget sized
// for plans of up to half a dozen tasks with generous headroom.
var DefaultConfig = Config{
	MaxSteps:        50,
	EventBufferSize: 100,
}

// Options configure an Engine via functional options. Every dependency has
// an in-memory default so New() alone yields a runnable engine on demo
// fixtures and the scripted adapter.
type Options struct {
	Config    Config
	Logger    logging.Logger
	Clock     core.Clock
	Backends  *backend.Set
	Registry  *tool.Registry
	Adapter   llm.Adapter
	LLM       *llm.Client
	Store     *store.InMemoryStore
	Validator *plan.Validator
}

// WithConfig overrides the engine configuration.
func WithConfig(cfg Config) func(o *Options) { return func(o *Options) { o.Config = cfg } }

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) { return func(o *Options) { o.Logger = l } }

// WithClock injects the time source.
func WithClock(c core.Clock) func(o *Options) { return func(o *Options) { o.Clock = c } }

// WithBackends injects the simulated backend set.
func WithBackends(b *backend.Set) func(o *Options) { return func(o *Options) { o.Backends = b } }

// WithRegistry injects the tool registry.
func WithRegistry(r *tool.Registry) func(o *Options) { return func(o *Options) { o.Registry = r } }

// WithAdapter sets the model adapter; it is wrapped in an llm.Client with
// default timeout unless WithLLM provides one directly.
func WithAdapter(a llm.Adapter) func(o *Options) { return func(o *Options) { o.Adapter = a } }

// WithLLM injects a fully configured llm.Client (timeout, cache).
func WithLLM(c *llm.Client) func(o *Options) { return func(o *Options) { o.LLM = c } }

// WithStore injects the workflow state store.
func WithStore(s *store.InMemoryStore) func(o *Options) { return func(o *Options) { o.Store = s } }

// WithValidator injects the structural task validator.
func WithValidator(v *plan.Validator) func(o *Options) { return func(o *Options) { o.Validator = v } }

// Engine creates and executes workflows. Safe for concurrent use.
type Engine struct {
	cfg       Config
	logger    logging.Logger
	clock     core.Clock
	registry  *tool.Registry
	llm       *llm.Client
	store     *store.InMemoryStore
	validator *plan.Validator

	mu     sync.Mutex
	active map[string]*handle
}

type handle struct {
	bus    *bus.Bus
	cancel context.CancelFunc
}

// New constructs an engine. Unset dependencies default to demo fixtures,
// the standard tool registry, the scripted adapter and in-memory storage.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{Config: DefaultConfig}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Backends == nil {
		opts.Backends = backend.DemoSet(opts.Clock)
	}
	if opts.Registry == nil {
		opts.Registry = tool.DefaultRegistry(opts.Backends)
	}
	if opts.LLM == nil {
		adapter := opts.Adapter
		if adapter == nil {
			adapter = llm.NewScriptedAdapter()
		}
		opts.LLM = llm.NewClient(adapter, llm.WithLogger(opts.Logger))
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore(opts.Clock)
	}
	if opts.Validator == nil {
		opts.Validator = plan.New()
	}
	if opts.Config.MaxSteps <= 0 {
		opts.Config.MaxSteps = DefaultConfig.MaxSteps
	}
	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}
	return &Engine{
		cfg:       opts.Config,
		logger:    opts.Logger,
		clock:     opts.Clock,
		registry:  opts.Registry,
		llm:       opts.LLM,
		store:     opts.Store,
		validator: opts.Validator,
		active:    make(map[string]*handle),
	}
}

// Start creates a workflow for the request and begins executing it on its
// own goroutine. The returned subscription streams the workflow's events in
// publication order and closes on termination.
func (e *Engine) Start(ctx context.Context, req core.Request) (string, *bus.Subscription, error) {
	if req.RequestType == "" {
		return "", nil, fmt.Errorf("request type is required")
	}
	if req.ClientID == "" {
		return "", nil, fmt.Errorf("client id is required")
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = e.clock.Now()
	}

	state := e.store.Create(req)
	b := bus.New(state.WorkflowID, func(o *bus.Options) {
		o.BufferSize = e.cfg.EventBufferSize
		o.DropLogs = e.cfg.DropLogs
	})
	sub := b.Subscribe()

	wfCtx, cancel := context.WithCancel(ctx)
	h := &handle{bus: b, cancel: cancel}
	e.mu.Lock()
	e.active[state.WorkflowID] = h
	e.mu.Unlock()

	go e.run(wfCtx, state, b, h)

	return state.WorkflowID, sub, nil
}

// Subscribe attaches another subscriber to a running workflow's event
// stream. Events published before the subscription are not replayed.
func (e *Engine) Subscribe(workflowID string) (*bus.Subscription, error) {
	e.mu.Lock()
	h, ok := e.active[workflowID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("workflow %s is not running", workflowID)
	}
	return h.bus.Subscribe(), nil
}

// Cancel requests cooperative termination. The workflow observes the signal
// at its next suspension point, fails with a "cancelled" blocker and closes
// its subscriptions. Cancelling an unknown or finished workflow errors.
func (e *Engine) Cancel(workflowID string) error {
	e.mu.Lock()
	h, ok := e.active[workflowID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("workflow %s is not running", workflowID)
	}
	h.cancel()
	return nil
}

// Snapshot returns a deep copy of a workflow's state document.
func (e *Engine) Snapshot(workflowID string) (*core.WorkflowState, error) {
	return e.store.Snapshot(workflowID)
}

// Run executes a workflow synchronously: it starts the workflow, drains its
// event stream and returns the final state. Convenience for tests and batch
// callers that do not need streaming.
func (e *Engine) Run(ctx context.Context, req core.Request) (*core.WorkflowState, error) {
	id, sub, err := e.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	for range sub.Events() {
	}
	return e.store.Snapshot(id)
}

// run is the executor loop: plan, validate, then route-and-step until a
// terminal state or the step budget is exhausted.
func (e *Engine) run(ctx context.Context, state *core.WorkflowState, b *bus.Bus, h *handle) {
	defer func() {
		e.mu.Lock()
		delete(e.active, state.WorkflowID)
		e.mu.Unlock()
		b.Close()
		h.cancel()
	}()

	logger := e.logger
	env := agent.Env{
		Registry: e.registry,
		LLM:      e.llm,
		Bus:      b,
		Clock:    e.clock,
		Logger:   logger,
	}
	orchestrator := agent.NewOrchestrator(env)
	agents := map[string]agent.Agent{
		core.AgentOperations: agent.NewOperations(env),
		core.AgentAdvisor:    agent.NewAdvisor(env),
	}

	e.publish(b, state, bus.Event{
		Type:    bus.EventWorkflowStart,
		Payload: map[string]any{"request": requestPayload(state.Request)},
	})

	steps := 1 // planning counts against the budget
	if err := orchestrator.Step(ctx, state); err != nil {
		e.fail(b, state, core.AgentOrchestrator, err)
		return
	}
	if err := e.validator.Apply(state); err != nil {
		e.fail(b, state, "validator", err)
		return
	}
	e.store.Save(state)

	for steps < e.cfg.MaxSteps {
		if ctx.Err() != nil {
			e.cancelled(b, state)
			return
		}

		rt, err := route(state, e.clock.Now())
		e.publish(b, state, bus.Event{
			Type:    bus.EventRouting,
			Payload: map[string]any{"done": rt.Done, "next": rt.Next, "reason": rt.Reason},
		})
		if err != nil {
			e.fail(b, state, "supervisor", err)
			return
		}
		if rt.Done {
			break
		}

		ag, ok := agents[rt.Next]
		if !ok {
			e.fail(b, state, "supervisor", fmt.Errorf("routed to unknown agent %q", rt.Next))
			return
		}
		steps++
		if err := ag.Step(ctx, state); err != nil {
			e.fail(b, state, rt.Next, err)
			return
		}
		e.store.Save(state)
	}

	if !state.Status.Terminal() {
		state.AddBlocker(fmt.Sprintf("step budget of %d exhausted", e.cfg.MaxSteps), "executor", e.clock.Now())
		state.Status = core.StatusFailed
	}
	e.finish(b, state)
}

// cancelled applies the cancellation contract: failed status, a "cancelled"
// blocker, then normal termination publishing.
func (e *Engine) cancelled(b *bus.Bus, state *core.WorkflowState) {
	state.AddBlocker("cancelled", "executor", e.clock.Now())
	state.Status = core.StatusFailed
	e.finish(b, state)
}

// fail handles internal errors: they are always reported, never swallowed,
// and terminate the workflow as failed.
func (e *Engine) fail(b *bus.Bus, state *core.WorkflowState, source string, err error) {
	e.logger.Error("workflow internal error", "workflow_id", state.WorkflowID, "source", source, "error", err.Error())
	e.publish(b, state, bus.Event{
		Type:    bus.EventError,
		Agent:   source,
		Payload: map[string]any{"message": err.Error(), "recoverable": false},
	})
	state.AddBlocker("internal error: "+err.Error(), source, e.clock.Now())
	state.Status = core.StatusFailed
	e.finish(b, state)
}

// finish publishes workflow_complete and persists the final document. A
// non-completed workflow never exposes an outcome: anything recorded before
// the failure moves into the context for audit.
func (e *Engine) finish(b *bus.Bus, state *core.WorkflowState) {
	if state.Status != core.StatusCompleted && len(state.Outcome) > 0 {
		for k, v := range state.Outcome {
			state.Context["aborted_outcome_"+k] = v
		}
		state.Outcome = nil
	}

	completed := 0
	for _, t := range state.Tasks {
		if t.Status == core.TaskCompleted {
			completed++
		}
	}
	var blockers []any
	for _, bl := range state.UnresolvedBlockers() {
		blockers = append(blockers, bl.Description)
	}
	state.UpdatedAt = e.clock.Now()
	e.store.Save(state)

	e.publish(b, state, bus.Event{
		Type: bus.EventWorkflowComplete,
		Payload: map[string]any{
			"status":          string(state.Status),
			"outcome":         state.Outcome,
			"tasks_completed": completed,
			"total_tasks":     len(state.Tasks),
			"blockers":        blockers,
		},
	})
}

func (e *Engine) publish(b *bus.Bus, state *core.WorkflowState, ev bus.Event) {
	ev.WorkflowID = state.WorkflowID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.clock.Now()
	}
	b.Publish(ev)
}

func requestPayload(req core.Request) map[string]any {
	return map[string]any{
		"request_type": req.RequestType,
		"client_id":    req.ClientID,
		"client_name":  req.ClientName,
		"initiator":    req.Initiator,
	}
}
