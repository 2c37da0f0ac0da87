package sdb

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/smartdb-io/smartdb-core/logging"
)

// eventLogger is the destination for structured database events.
// Swapped atomically so event emission never takes a lock.
var eventLogger atomic.Pointer[logging.Logger]

// SetEventLogger installs the logger used for structured database
// events. Passing nil silences event emission. Safe to call at any
// time, including while operations are in flight.
func SetEventLogger(l *logging.Logger) {
	eventLogger.Store(l)
}

// emitError logs a database failure as a structured event, tagging it
// with the operation context carried by ctx when present.
func emitError(ctx context.Context, event string, err *Error) {
	l := eventLogger.Load()
	if l == nil || err == nil {
		return
	}
	attrs := []any{
		"event", event,
		"kind", err.Kind.String(),
		"retryable", err.Retryable,
		"message", err.Message,
	}
	if err.Code != 0 {
		attrs = append(attrs, "code", err.Code)
	}
	if oc, ok := OperationFromContext(ctx); ok {
		attrs = append(attrs, "trace_id", oc.TraceID, "operation", oc.Operation)
	}
	l.LogAttrs(ctx, slog.LevelError, "database error", argsToAttrs(attrs)...)
}

// emitEvent logs an informational database event with the given
// key/value pairs, tagging it with the operation context when present.
func emitEvent(ctx context.Context, level slog.Level, event, msg string, args ...any) {
	l := eventLogger.Load()
	if l == nil {
		return
	}
	attrs := append([]any{"event", event}, args...)
	if oc, ok := OperationFromContext(ctx); ok {
		attrs = append(attrs, "trace_id", oc.TraceID, "operation", oc.Operation)
	}
	l.LogAttrs(ctx, level, msg, argsToAttrs(attrs)...)
}

// argsToAttrs converts alternating key/value pairs to slog attributes.
func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
