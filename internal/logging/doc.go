// Package logging provides structured logging utilities for defunc.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Consistent attribute naming for instrumented types and operations
//   - Logger adapter interface so the trace engine does not depend on slog directly
//   - A no-op logger for callers that do not want diagnostics
//
// # Usage Patterns
//
// Create a logger scoped to an instrumented type:
//
//	logger := logging.WithType(slog.Default(), "Random")
//	logger.Debug("operation intercepted",
//	    logging.Operation("random"),
//	    logging.Scope("static"))
//
// Trace lines themselves are not log records; they go to a Sink. Diagnostics about
// the instrumentation (skipped operations, sink write failures) go through this package.
package logging
