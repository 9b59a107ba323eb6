package instrumentation

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/defunc/internal/defunc"
)

// Config holds the configuration for OpenTelemetry metrics.
type Config struct {
	// ServiceName is the name of the service (default: defunc)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string

	// Enabled determines if instrumentation is active (default: true)
	// Set to false via INSTRUMENTATION_ENABLED=false to disable metrics
	Enabled bool

	// MetricsExporter specifies the metrics exporter type
	// Options: "prometheus", "otlp", "stdout" (default: "prometheus")
	MetricsExporter string

	// OTLPEndpoint is the OTLP collector endpoint
	// Example: "localhost:4318" (without protocol prefix)
	OTLPEndpoint string

	// OTLPInsecure controls whether to use insecure HTTP for OTLP export.
	// When false (default), uses TLS.
	OTLPInsecure bool

	// ExportInterval is the period of the OTLP and stdout periodic readers.
	ExportInterval time.Duration

	// PrometheusEndpoint is the path the metrics server serves Prometheus metrics on (default: "/metrics")
	PrometheusEndpoint string

	// DetailedLabels adds the operation name to call metrics.
	// When false (default), call metrics are labelled by type, scope and status only.
	// Operation names are unbounded for trace-all types, so keep this off unless
	// watch sets are small.
	DetailedLabels bool

	// AuditLogging configures the per-call audit log.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: false)
	Enabled bool

	// IncludeInstances also logs instance tracking and release events.
	// Every tracked construction produces a record, so this is noisy.
	IncludeInstances bool

	// LogLevel sets the slog level for audit log messages (default: INFO).
	// Options: "debug", "info", "warn", "error"
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults based on environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "defunc"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:            getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		ExportInterval:     getEnvDurationOrDefault("OTEL_METRIC_EXPORT_INTERVAL", DefaultMetricInterval),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:          getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", false),
			IncludeInstances: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_INSTANCES", false),
			LogLevel:         getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validMetricsExporters := map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	if c.MetricsExporter != "" && !validMetricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	if c.ExportInterval < 0 {
		return fmt.Errorf("export interval must not be negative, got %s", c.ExportInterval)
	}

	if c.PrometheusEndpoint != "" && !strings.HasPrefix(c.PrometheusEndpoint, "/") {
		return fmt.Errorf("prometheus endpoint must start with '/', got %q", c.PrometheusEndpoint)
	}

	return nil
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the boolean value of an environment variable or a default value.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the duration value of an environment variable or a default value.
// Bare integers are read as milliseconds, matching the OTEL_METRIC_EXPORT_INTERVAL convention.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Constants for metric label values.
const (
	// Status values. Call outcomes come from the engine.
	StatusSuccess = defunc.StatusSuccess
	StatusError   = defunc.StatusError
	StatusPanic   = defunc.StatusPanic
	StatusUnknown = "unknown"

	// Scope values
	ScopeStatic   = "static"
	ScopeInstance = "instance"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"

	// Metric recording intervals
	DefaultMetricInterval = 10 * time.Second
)
