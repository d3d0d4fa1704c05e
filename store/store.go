// Package store houses the in-memory workflow state store. State documents
// live in a process local map for the lifetime of the process; nothing is
// persisted. The live document belongs to the executor goroutine of its
// workflow — observers only ever receive clones.
package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nexhelm/agentflow/core"
)

// InMemoryStore is a volatile workflow state store. It is safe for
// concurrent access across workflows; each Snapshot is a deep copy so
// callers cannot mutate live state.
type InMemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*core.WorkflowState
	clock     core.Clock
}

// NewInMemoryStore constructs an empty in-memory workflow store.
func NewInMemoryStore(clock core.Clock) *InMemoryStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &InMemoryStore{workflows: make(map[string]*core.WorkflowState), clock: clock}
}

// Create allocates a new pending workflow state for the request and returns
// the live document. Ownership passes to the calling executor; the store
// keeps its own clone, refreshed by Save, so Snapshot never races the
// executor's mutations.
func (s *InMemoryStore) Create(req core.Request) *core.WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	st := core.NewWorkflowState(id, req, s.clock.Now())
	s.workflows[id] = st.Clone()
	return st
}

// Snapshot returns a deep copy of the workflow state for observability.
func (s *InMemoryStore) Snapshot(workflowID string) (*core.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", workflowID)
	}
	return st.Clone(), nil
}

// Save replaces the stored document with a clone of the given state. The
// executor calls this after every step so snapshots trail the live document
// by at most one agent turn.
func (s *InMemoryStore) Save(st *core.WorkflowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[st.WorkflowID] = st.Clone()
}

// Delete removes a workflow document, releasing its memory.
func (s *InMemoryStore) Delete(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, workflowID)
}
