// Package defunc traces calls to watched operations and audits the lifetime of
// tracked instances.
//
// # Tracing
//
// A Type declares which of its operations are watched, per scope. Operations
// are registered through Type.Define, which returns either the original Op or
// a wrapper that emits an enter line, calls the original and emits an exit line:
//
//	e, _ := defunc.New(defunc.DefaultConfig())
//	random := e.Declare("Random").WatchStatic("random")
//	op := random.DefineStatic("random", func(ctx context.Context, _ any, _ ...any) (any, error) {
//	    return 5, nil
//	})
//	op(ctx, nil)
//	// enter random: []
//	// exit random: 5 (object count has changed by +0)
//
// Nested traced calls are indented by the configured step. An empty watch set
// traces nothing unless Config.TraceAll is set. Subtypes without their own
// watch set or sink use their parent's.
//
// # Auditing
//
// Track records an instance's creation time; Release (usually deferred) or a
// garbage collector cleanup registered by TrackFinalized drops it again. An
// instance released after more than Config.StaleThreshold produces a
// "Collecting ..." line on its type's sink.
//
// # Concurrency
//
// An Engine is safe for concurrent use. In the default shared depth mode all
// goroutines share one depth counter; DepthModeContext carries depth in the
// call's context instead.
package defunc
