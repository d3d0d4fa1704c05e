// Package core defines the shared domain model of the workflow engine: the
// request, the single mutable WorkflowState document, tasks with their
// dependency and status semantics, and the append-only audit records
// (messages, decisions, blockers) that agents write as they work.
//
// A WorkflowState is owned exclusively by the executor goroutine of its
// workflow; no synchronization is built into the document itself. Observers
// receive deep copies via Clone.
package core
