// Package storage persists an audit trail of tool invocations. Writes are
// asynchronous and never block or fail an invocation.
package storage

import (
	"time"

	"go.uber.org/zap"
)

// EventWriter is the interface for writing invocation events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *InvocationEvent)
	Close()
}

// InvocationEvent records one dispatcher invocation.
type InvocationEvent struct {
	RequestID   string
	Timestamp   time.Time
	ToolID      string
	CanonicalOp string
	Environment string
	Backend     string
	Destructive bool
	DryRun      bool
	Truncated   bool
	ResultBytes int32
	ErrorKind   string // empty on success
	LatencyMs   float32
}

// LogWriter is a fallback EventWriter for local development and for
// deployments without a ClickHouse DSN.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *InvocationEvent) {
	w.logger.Info("tool_invocation",
		zap.String("request_id", event.RequestID),
		zap.String("tool_id", event.ToolID),
		zap.String("canonical_op", event.CanonicalOp),
		zap.String("environment", event.Environment),
		zap.String("backend", event.Backend),
		zap.Bool("destructive", event.Destructive),
		zap.Bool("dry_run", event.DryRun),
		zap.Bool("truncated", event.Truncated),
		zap.String("error_kind", event.ErrorKind),
		zap.Float32("latency_ms", event.LatencyMs),
	)
}

func (w *LogWriter) Close() {}
