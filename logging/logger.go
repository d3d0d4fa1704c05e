// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. WorkflowLogger adds contextual helpers (workflow,
// component) and domain specific helpers for tool and LLM calls.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface used across the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// WorkflowLogger wraps slog.Logger with workflow and component context plus
// helpers for the two call sites everything else hangs off: tool execution
// and model inference. Cheap to copy via With* methods.
type WorkflowLogger struct {
	logger     *slog.Logger
	component  string
	workflowID string
}

// Config configures construction of a WorkflowLogger.
type Config struct {
	Level  slog.Level
	Format string // json or text
	Output io.Writer
}

// NewWorkflowLogger builds a WorkflowLogger. A nil config yields JSON output
// at info level on stdout.
func NewWorkflowLogger(cfg *Config) *WorkflowLogger {
	if cfg == nil {
		cfg = &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &WorkflowLogger{logger: slog.New(handler)}
}

// WithComponent sets the logical component (agent, router, bus, backend).
func (l *WorkflowLogger) WithComponent(c string) *WorkflowLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithWorkflow attaches a workflow identifier to every entry.
func (l *WorkflowLogger) WithWorkflow(id string) *WorkflowLogger {
	nl := *l
	nl.workflowID = id
	return &nl
}

// Debug logs at debug level.
func (l *WorkflowLogger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, l.kv(args)...)
}

// Info logs at info level.
func (l *WorkflowLogger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, l.kv(args)...)
}

// Warn logs at warn level.
func (l *WorkflowLogger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, l.kv(args)...)
}

// Error logs at error level.
func (l *WorkflowLogger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, l.kv(args)...)
}

func (l *WorkflowLogger) kv(args []any) []any {
	out := make([]any, 0, len(args)+4)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.workflowID != "" {
		out = append(out, "workflow_id", l.workflowID)
	}
	return append(out, args...)
}

// LogToolCall records execution details for a tool invocation.
func (l *WorkflowLogger) LogToolCall(tool, agent string, dur time.Duration, success bool, err error) {
	args := []any{"tool_name", tool, "agent", agent, "duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
		l.Error("Tool execution failed", args...)
		return
	}
	l.Info("Tool execution completed", args...)
}

// LogLLMCall records model call latency, cache state and success.
func (l *WorkflowLogger) LogLLMCall(role string, dur time.Duration, cached, success bool) {
	args := []any{"role", role, "duration", dur, "cached", cached, "success", success}
	if !success {
		l.Error("LLM call failed", args...)
		return
	}
	l.Info("LLM call completed", args...)
}
