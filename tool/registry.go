package tool

import (
	"time"

	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
	"github.com/nexhelm/agentflow/internal/util"
	"github.com/nexhelm/agentflow/logging"
)

// Context carries per-invocation identity and services into tool handlers.
// It binds a process-wide registry call to the workflow that issued it so
// handlers can publish events and use the injected clock.
type Context struct {
	WorkflowID string
	Agent      string
	Clock      core.Clock
	Logger     logging.Logger
	Publish    func(bus.Event)
}

func (c *Context) now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now()
	}
	return time.Now().UTC()
}

func (c *Context) publish(ev bus.Event) {
	if c.Publish == nil {
		return
	}
	ev.WorkflowID = c.WorkflowID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now()
	}
	c.Publish(ev)
}

func (c *Context) logger() logging.Logger {
	if c.Logger == nil {
		return logging.NoOpLogger{}
	}
	return c.Logger
}

// Handler executes a tool against its backend. Handlers return a Result and
// never panic; argument validation has already run.
type Handler func(tc *Context, params map[string]any) Result

// Definition describes one registered tool.
type Definition struct {
	// Name is the unique tool identifier (snake_case).
	Name string
	// Description is shown to models choosing a tool.
	Description string
	// Parameters is a minimal JSON-schema-like map validated before the
	// handler runs.
	Parameters map[string]any
	// Agents restricts which agents may invoke the tool. Empty means any.
	Agents []string
	// Handler performs the call.
	Handler Handler
}

// Registry resolves tool invocations. It is immutable after construction
// and safe for concurrent use by parallel workflows.
type Registry struct {
	tools map[string]Definition
	order []string
}

// NewRegistry builds a registry from tool definitions.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{tools: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.tools[d.Name]; !dup {
			r.order = append(r.order, d.Name)
		}
		r.tools[d.Name] = d
	}
	return r
}

// Definitions returns all registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// DefinitionsFor returns the tools the given agent is authorized to invoke.
func (r *Registry) DefinitionsFor(agent string) []Definition {
	var out []Definition
	for _, name := range r.order {
		d := r.tools[name]
		if authorized(d, agent) {
			out = append(out, d)
		}
	}
	return out
}

func authorized(d Definition, agent string) bool {
	if len(d.Agents) == 0 {
		return true
	}
	for _, a := range d.Agents {
		if a == agent {
			return true
		}
	}
	return false
}

// Invoke resolves a tool by name, validates parameters, runs the handler and
// seals the result so no backend error hides inside a success payload. One
// tool_execution event is published per invocation, regardless of outcome.
func (r *Registry) Invoke(tc *Context, name string, params map[string]any) Result {
	start := tc.now()
	res := r.invoke(tc, name, params)

	payload := map[string]any{
		"agent":          tc.Agent,
		"tool":           name,
		"params":         params,
		"result_kind":    res.ResultKind(),
		"result_summary": res.Summary(),
	}
	result := map[string]any{"kind": res.ResultKind()}
	if res.OK {
		result["payload"] = res.Payload
	} else {
		result["message"] = res.Message
	}
	payload["result"] = result
	tc.publish(bus.Event{Type: bus.EventToolExecution, Agent: tc.Agent, Payload: payload})

	var err error
	if !res.OK {
		err = &Error{Tool: name, Kind: res.Kind, Message: res.Message}
	}
	tc.logger().Debug("tool.invoke", "tool", name, "agent", tc.Agent, "kind", res.ResultKind())
	if lw, ok := tc.Logger.(*logging.WorkflowLogger); ok {
		lw.LogToolCall(name, tc.Agent, tc.now().Sub(start), res.OK, err)
	}
	return res
}

func (r *Registry) invoke(tc *Context, name string, params map[string]any) Result {
	def, ok := r.tools[name]
	if !ok {
		return Failf(KindNotFound, "unknown tool %q", name)
	}
	if !authorized(def, tc.Agent) {
		return Failf(KindInvalidArgument, "tool %q is not available to %s", name, tc.Agent)
	}
	if params == nil {
		params = map[string]any{}
	}
	if def.Parameters != nil {
		if err := util.ValidateParameters(params, def.Parameters); err != nil {
			return Failf(KindInvalidArgument, "invalid parameters for %s: %v", name, err)
		}
	}
	return seal(def.Handler(tc, params))
}

// seal enforces the registry boundary rule: a nested backend error can never
// travel inside a success payload. Success results carrying an error field
// are re-tagged as failures.
func seal(res Result) Result {
	if !res.OK {
		return res
	}
	errVal, present := res.Payload["error"]
	if !present {
		return res
	}
	kind := KindInternal
	if k, ok := res.Payload["error_kind"].(string); ok && k != "" {
		kind = Kind(k)
	}
	msg, _ := errVal.(string)
	if msg == "" {
		msg = "backend reported an error"
	}
	return Failf(kind, "%s", msg)
}

// Error is the error form of a failed invocation, for callers that want to
// wrap results in Go error flow.
type Error struct {
	Tool    string `json:"tool"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return "tool error [" + string(e.Kind) + "] in " + e.Tool + ": " + e.Message
}
