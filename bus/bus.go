// Package bus implements the typed per-workflow event channel that carries
// structured events from the executor and its collaborators to zero or more
// subscribers.
//
// Delivery guarantees:
//   - Events are delivered to each subscriber in publication order.
//   - Critical events (workflow_start, task_update, tool_execution,
//     workflow_complete, error) are never dropped; a slow subscriber blocks
//     the publisher once its buffer fills.
//   - Log events may be dropped under back-pressure when the bus is
//     configured with DropLogs.
//   - Publishing with no subscribers is legal; events are discarded.
//   - Close delivers end-of-stream to every subscriber by closing their
//     channels. A subscription is bounded to a single workflow.
package bus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType tags an event. The set is closed; consumers may switch
// exhaustively over it.
type EventType string

// Event types published by the engine and its collaborators.
const (
	EventWorkflowStart    EventType = "workflow_start"
	EventAgentMessage     EventType = "agent_message"
	EventLLMCall          EventType = "llm_call"
	EventToolExecution    EventType = "tool_execution"
	EventRouting          EventType = "routing"
	EventTaskUpdate       EventType = "task_update"
	EventSuccess          EventType = "success"
	EventNotification     EventType = "notification"
	EventLog              EventType = "log"
	EventError            EventType = "error"
	EventWorkflowComplete EventType = "workflow_complete"
)

// critical events are never dropped regardless of back-pressure policy.
var critical = map[EventType]bool{
	EventWorkflowStart:    true,
	EventTaskUpdate:       true,
	EventToolExecution:    true,
	EventWorkflowComplete: true,
	EventError:            true,
}

// Critical reports whether events of this type may never be dropped.
func (t EventType) Critical() bool { return critical[t] }

// Event is the envelope published on the bus. Payload contents are
// type-specific and set by the publishing component.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	WorkflowID string         `json:"workflow_id"`
	Agent      string         `json:"agent,omitempty"`
	Payload    map[string]any `json:"payload"`
	Timestamp  time.Time      `json:"-"`
}

// MarshalJSON serializes the envelope with a millisecond epoch timestamp,
// the convention expected by streaming consumers.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		TimestampMS int64 `json:"timestamp_ms"`
	}{alias(e), e.Timestamp.UnixMilli()})
}

// Options configure a Bus.
type Options struct {
	// BufferSize is the per-subscriber channel buffer. Once full, critical
	// events block the publisher; droppable events follow DropLogs.
	BufferSize int
	// DropLogs drops log events instead of blocking when a subscriber
	// buffer is full.
	DropLogs bool
}

// Bus is the per-workflow publish/subscribe fabric. Within one workflow the
// executor goroutine is the only publisher, so event order on every
// subscription equals the executor's instruction order.
type Bus struct {
	workflowID string
	opts       Options

	mu      sync.Mutex
	subs    []*Subscription
	closed  bool
	dropped int
}

// New creates a bus for a single workflow.
func New(workflowID string, optFns ...func(o *Options)) *Bus {
	opts := Options{BufferSize: 100}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	return &Bus{workflowID: workflowID, opts: opts}
}

// Subscription is one subscriber's ordered view of a workflow's events. The
// channel is closed when the workflow terminates or the subscription is
// cancelled.
type Subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Events returns the receive channel. Range over it until it closes.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Cancel detaches the subscription before end-of-stream. Idempotent. The
// event channel is closed by the bus shortly after.
func (s *Subscription) Cancel() { s.once.Do(func() { close(s.done) }) }

func (s *Subscription) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed bus returns
// a subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, b.opts.BufferSize), done: make(chan struct{})}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Publish delivers an event to every live subscriber in order. It blocks
// when a subscriber's buffer is full unless the event is droppable under the
// configured policy; a blocked send is released if the subscriber cancels.
// Publishing after Close is a no-op.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.WorkflowID == "" {
		ev.WorkflowID = b.workflowID
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.reapLocked()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if b.opts.DropLogs && ev.Type == EventLog {
			select {
			case sub.ch <- ev:
			default:
				b.mu.Lock()
				b.dropped++
				b.mu.Unlock()
			}
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}

// reapLocked removes cancelled subscriptions and closes their channels. Only
// the publisher side closes event channels, so a blocked consumer never
// races a close.
func (b *Bus) reapLocked() {
	live := b.subs[:0]
	for _, sub := range b.subs {
		if sub.cancelled() {
			close(sub.ch)
			continue
		}
		live = append(live, sub)
	}
	b.subs = live
}

// Dropped reports how many droppable events were discarded under
// back-pressure.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close marks the bus closed and closes every subscriber channel, signaling
// end-of-stream. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
