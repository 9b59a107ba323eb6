package defunc

import "context"

type depthKey struct{}

// DepthFromContext returns the trace depth carried by ctx, or 0.
func DepthFromContext(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// depthTracker counts open traced calls in step units.
// In shared mode it is a single counter guarded by Engine.mu; in context mode
// the depth travels with the call's context and the counter is unused.
type depthTracker struct {
	mode    string
	step    int
	current int
}

// enter returns the depth for the enter line and the context to pass to the
// wrapped operation.
func (d *depthTracker) enter(ctx context.Context) (int, context.Context) {
	if d.mode == DepthModeContext {
		i := DepthFromContext(ctx)
		return i, context.WithValue(ctx, depthKey{}, i+d.step)
	}
	i := d.current
	d.current += d.step
	return i, ctx
}

func (d *depthTracker) exit() {
	if d.mode == DepthModeContext {
		return
	}
	d.current -= d.step
	if d.current < 0 {
		d.current = 0
	}
}
