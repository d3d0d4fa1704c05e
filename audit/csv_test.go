package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/nexhelm/agentflow/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkRecordsAccountCreations(t *testing.T) {
	var out strings.Builder
	sink := NewCSVSink(&out, true)

	b := bus.New("wf-1")
	sub := b.Subscribe()
	done := make(chan error, 1)
	go func() { done <- sink.Consume(sub) }()

	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	b.Publish(bus.Event{Type: bus.EventWorkflowStart, Timestamp: ts})
	b.Publish(bus.Event{
		Type:      bus.EventSuccess,
		Timestamp: ts,
		Payload: map[string]any{
			"account_number": "ROTH_IRA-1000",
			"account_type":   "roth_ira",
			"client_id":      "c1",
		},
	})
	b.Publish(bus.Event{Type: bus.EventWorkflowComplete, Timestamp: ts})
	b.Close()
	require.NoError(t, <-done)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,client_id,account_type,account_number,workflow_id", lines[0])
	assert.Contains(t, lines[1], ",c1,roth_ira,ROTH_IRA-1000,wf-1")
}

func TestCSVSinkIgnoresOtherEvents(t *testing.T) {
	var out strings.Builder
	sink := NewCSVSink(&out, false)

	b := bus.New("wf-1")
	sub := b.Subscribe()
	done := make(chan error, 1)
	go func() { done <- sink.Consume(sub) }()

	b.Publish(bus.Event{Type: bus.EventSuccess, Payload: map[string]any{"note": "no account"}})
	b.Publish(bus.Event{Type: bus.EventNotification, Payload: map[string]any{"client_id": "c1"}})
	b.Close()
	require.NoError(t, <-done)

	assert.Empty(t, out.String())
}
