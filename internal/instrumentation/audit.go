package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/defunc/internal/logging"
)

// CallRecord captures one intercepted call for audit logging.
type CallRecord struct {
	Type      string
	Operation string
	Scope     string
	Depth     int
	Status    string
	Duration  time.Duration
}

// Failed reports whether the call returned an error or panicked.
func (cr *CallRecord) Failed() bool {
	return cr.Status == StatusError || cr.Status == StatusPanic
}

// LogAttrs returns slog attributes for structured logging.
func (cr *CallRecord) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		logging.Type(cr.Type),
		logging.Operation(cr.Operation),
		logging.Scope(cr.Scope),
		logging.Depth(cr.Depth),
		logging.Status(cr.Status),
		slog.Duration("duration", cr.Duration),
	}
	return attrs
}

// AuditLogger writes a structured log record per intercepted call.
// It satisfies the engine's Recorder interface and can be installed next to Metrics.
type AuditLogger struct {
	logger           *slog.Logger
	level            slog.Level
	includeInstances bool
	enabled          bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// Calls are logged at info level; instance events are not logged.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		level:   slog.LevelInfo,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	al := NewAuditLogger(logger)
	al.level = logging.ParseLevel(config.LogLevel)
	al.includeInstances = config.IncludeInstances
	al.enabled = config.Enabled
	return al
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogCall logs a call record. Failed calls are logged at warn level.
func (al *AuditLogger) LogCall(ctx context.Context, cr *CallRecord) {
	if !al.enabled {
		return
	}

	attrs := cr.LogAttrs()
	if cr.Failed() {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "call_failed", attrs...)
		return
	}
	al.logger.LogAttrs(ctx, al.level, "call_traced", attrs...)
}

// RecordCall logs an intercepted call.
func (al *AuditLogger) RecordCall(ctx context.Context, typeName, operation, scope string, depth int, status string, duration time.Duration) {
	al.LogCall(ctx, &CallRecord{
		Type:      typeName,
		Operation: operation,
		Scope:     scope,
		Depth:     depth,
		Status:    status,
		Duration:  duration,
	})
}

// RecordInstanceTracked logs a tracked construction when instance logging is on.
func (al *AuditLogger) RecordInstanceTracked(ctx context.Context, typeName string) {
	if !al.enabled || !al.includeInstances {
		return
	}
	al.logger.LogAttrs(ctx, al.level, "instance_tracked", logging.Type(typeName))
}

// RecordInstanceReleased logs a release. Stale releases are always logged at warn level.
func (al *AuditLogger) RecordInstanceReleased(ctx context.Context, typeName string, stale bool) {
	if !al.enabled {
		return
	}
	if stale {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "instance_stale", logging.Type(typeName))
		return
	}
	if al.includeInstances {
		al.logger.LogAttrs(ctx, al.level, "instance_released", logging.Type(typeName))
	}
}
