package backend

import (
	"sync"
	"time"

	"github.com/nexhelm/agentflow/core"
)

// Notification is one entry in the notification sink's append-only log.
type Notification struct {
	ClientID  string    `json:"client_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier simulates the outbound notification system as an append-only
// log. The tool layer publishes a notification event for every successful
// append.
type Notifier struct {
	mu    sync.Mutex
	log   []Notification
	clock core.Clock
}

// NewNotifier constructs an empty notification sink.
func NewNotifier(clock core.Clock) *Notifier {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Notifier{clock: clock}
}

// Send appends a notification and returns the recorded entry.
func (n *Notifier) Send(clientID, typ, content string) Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry := Notification{
		ClientID:  clientID,
		Type:      typ,
		Content:   content,
		Timestamp: n.clock.Now(),
	}
	n.log = append(n.log, entry)
	return entry
}

// Log returns a copy of all notifications sent so far.
func (n *Notifier) Log() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.log...)
}
