package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyType       = "type"
	KeyOperation  = "operation"
	KeyScope      = "scope"
	KeyDepth      = "depth"
	KeyInstanceID = "instance_id"
	KeyElapsed    = "elapsed"
	KeyComponent  = "component"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyLine       = "line"
)

// WithType returns a logger with the type attribute set.
func WithType(logger *slog.Logger, typeName string) *slog.Logger {
	return logger.With(slog.String(KeyType, typeName))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Type returns a slog attribute for the instrumented type name.
func Type(name string) slog.Attr {
	return slog.String(KeyType, name)
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Scope returns a slog attribute for the operation scope (static or instance).
func Scope(scope string) slog.Attr {
	return slog.String(KeyScope, scope)
}

// Depth returns a slog attribute for the call depth.
func Depth(depth int) slog.Attr {
	return slog.Int(KeyDepth, depth)
}

// InstanceID returns a slog attribute for a tracked instance identity.
func InstanceID(id uint64) slog.Attr {
	return slog.Uint64(KeyInstanceID, id)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// Nop returns a logger that discards all output.
// Use this when a logger is required but logging is disabled.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel parses a log level string case-insensitively.
// Valid values: "debug", "info", "warn", "warning", "error".
// Returns slog.LevelInfo if the string is not recognized.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
