package sdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// OperationContext identifies one logical database operation for
// structured event emission. It travels on the context.Context passed
// to the operation.
type OperationContext struct {
	// TraceID correlates every event of one operation chain.
	TraceID string

	// Operation names the logical step, e.g. "pool.acquire" or
	// "user.create".
	Operation string
}

type opCtxKey struct{}

var traceCounter atomic.Uint64

// NewTraceID returns a process-unique trace identifier of the form
// "<microseconds-since-epoch>-<counter>".
func NewTraceID() string {
	return fmt.Sprintf("%d-%d",
		time.Now().UnixMicro(), traceCounter.Add(1))
}

// WithOperation returns a context carrying an OperationContext for the
// named operation. A fresh trace id is generated unless ctx already
// carries one, in which case the chain's id is preserved and only the
// operation name changes.
func WithOperation(ctx context.Context, operation string) context.Context {
	oc := OperationContext{Operation: operation}
	if parent, ok := OperationFromContext(ctx); ok {
		oc.TraceID = parent.TraceID
	} else {
		oc.TraceID = NewTraceID()
	}
	return context.WithValue(ctx, opCtxKey{}, oc)
}

// WithNewTrace returns a context carrying an OperationContext with a
// freshly generated trace id, starting a new chain even when ctx
// already carries one.
func WithNewTrace(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, opCtxKey{}, OperationContext{
		TraceID:   NewTraceID(),
		Operation: operation,
	})
}

// OperationFromContext extracts the OperationContext from ctx.
func OperationFromContext(ctx context.Context) (OperationContext, bool) {
	oc, ok := ctx.Value(opCtxKey{}).(OperationContext)
	return oc, ok
}
