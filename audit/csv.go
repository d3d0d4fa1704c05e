// Package audit provides optional event-bus subscribers that record
// workflow activity outside the engine. The CSV sink captures successful
// account creations in a spreadsheet-friendly log.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/nexhelm/agentflow/bus"
)

// CSVSink appends one row per created account:
//
//	timestamp,client_id,account_type,account_number,workflow_id
//
// Attach it to a workflow's event stream with Consume. A single sink may
// consume streams from many workflows concurrently.
type CSVSink struct {
	mu     sync.Mutex
	w      *csv.Writer
	header bool
}

// NewCSVSink writes CSV rows to w. Set header to emit a column header row
// before the first record.
func NewCSVSink(w io.Writer, header bool) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w), header: header}
}

// Consume drains a subscription, recording every success event that carries
// an account number. It returns when the stream ends and flushes the
// writer. Run it on its own goroutine for live workflows.
func (s *CSVSink) Consume(sub *bus.Subscription) error {
	for ev := range sub.Events() {
		if ev.Type != bus.EventSuccess {
			continue
		}
		number, _ := ev.Payload["account_number"].(string)
		if number == "" {
			continue
		}
		clientID, _ := ev.Payload["client_id"].(string)
		accountType := fmt.Sprint(ev.Payload["account_type"])
		if err := s.write([]string{
			strconv.FormatInt(ev.Timestamp.UnixMilli(), 10),
			clientID,
			accountType,
			number,
			ev.WorkflowID,
		}); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) write(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.header {
		s.header = false
		if err := s.w.Write([]string{"timestamp", "client_id", "account_type", "account_number", "workflow_id"}); err != nil {
			return err
		}
	}
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}
