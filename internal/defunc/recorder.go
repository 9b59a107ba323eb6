package defunc

import (
	"context"
	"time"
)

// Call outcome values passed to Recorder.RecordCall.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPanic   = "panic"
)

// Recorder receives measurements from the engine. Implementations must be safe
// for concurrent use and must not call back into the engine.
type Recorder interface {
	// RecordCall records one completed (or panicked) intercepted call.
	RecordCall(ctx context.Context, typeName, operation, scope string, depth int, status string, duration time.Duration)

	// RecordInstanceTracked records a newly tracked live instance.
	RecordInstanceTracked(ctx context.Context, typeName string)

	// RecordInstanceReleased records a released instance; stale is true when its
	// age exceeded the threshold.
	RecordInstanceReleased(ctx context.Context, typeName string, stale bool)
}

type recorders []Recorder

func (rs recorders) RecordCall(ctx context.Context, typeName, operation, scope string, depth int, status string, duration time.Duration) {
	for _, r := range rs {
		r.RecordCall(ctx, typeName, operation, scope, depth, status, duration)
	}
}

func (rs recorders) RecordInstanceTracked(ctx context.Context, typeName string) {
	for _, r := range rs {
		r.RecordInstanceTracked(ctx, typeName)
	}
}

func (rs recorders) RecordInstanceReleased(ctx context.Context, typeName string, stale bool) {
	for _, r := range rs {
		r.RecordInstanceReleased(ctx, typeName, stale)
	}
}
