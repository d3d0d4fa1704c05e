// Package agentflow is a multi-agent workflow engine for financial service
// requests. A high-level request ("open a Roth IRA for client X") is turned
// into a dependency-ordered task graph by an orchestrator agent, validated
// against structural domain rules, and executed by role-specialized agents
// that invoke tools against simulated backend systems. Every decision, tool
// call and state mutation is streamed to subscribers through a typed event
// bus.
//
// The top-level entry point is the engine package:
//
//	eng := engine.New(
//	    engine.WithAdapter(adapter),
//	    engine.WithRegistry(registry),
//	)
//	id, sub, err := eng.Start(ctx, core.Request{
//	    RequestType: "open_roth_ira",
//	    ClientID:    "john_smith_123",
//	})
//
// Subpackages:
//   - core: the shared workflow state document and domain types
//   - store: in-memory workflow state store
//   - bus: typed per-workflow event bus with back-pressure semantics
//   - backend: simulated CRM, document store, account system and notifier
//   - tool: tool registry with structured results and error sealing
//   - llm: the LLM adapter boundary (providers under llm/anthropic, llm/openai)
//   - agent: orchestrator, operations and advisor agents
//   - plan: structural task validator
//   - engine: supervisor routing and the executor loop
//   - audit: CSV audit sink for created accounts
package agentflow

// Version is the current agentflow release.
const Version = "0.3.0"
