package logging

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowLoggerAttachesContext(t *testing.T) {
	var out strings.Builder
	l := NewWorkflowLogger(&Config{Level: slog.LevelDebug, Format: "json", Output: &out})

	l.WithComponent("router").WithWorkflow("wf-1").Info("routing decision", "next", "operations_agent")

	line := out.String()
	assert.Contains(t, line, `"component":"router"`)
	assert.Contains(t, line, `"workflow_id":"wf-1"`)
	assert.Contains(t, line, `"next":"operations_agent"`)
}

func TestWorkflowLoggerLevelFiltering(t *testing.T) {
	var out strings.Builder
	l := NewWorkflowLogger(&Config{Level: slog.LevelWarn, Format: "text", Output: &out})

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "visible")
}

func TestLogToolCall(t *testing.T) {
	var out strings.Builder
	l := NewWorkflowLogger(&Config{Level: slog.LevelDebug, Format: "json", Output: &out})

	l.LogToolCall("open_account", "operations_agent", 5*time.Millisecond, true, nil)
	assert.Contains(t, out.String(), "Tool execution completed")
	assert.Contains(t, out.String(), `"tool_name":"open_account"`)
}

func TestNoOpLoggerDiscards(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
}

func TestSlogAdapter(t *testing.T) {
	var out strings.Builder
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(&out, nil)))
	l.Info("hello", "k", "v")
	assert.Contains(t, out.String(), `"k":"v"`)
}
