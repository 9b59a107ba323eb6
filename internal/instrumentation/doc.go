// Package instrumentation provides OpenTelemetry metrics for the defunc
// tracing engine.
//
// Metrics implements the engine's Recorder interface, so installing it with
// defunc.WithRecorder turns every intercepted call and every tracked instance
// into metric data points:
//
//   - defunc_calls_total: Counter of intercepted calls by type, scope and status
//     (plus operation when detailed labels are on)
//   - defunc_call_duration_seconds: Histogram of call durations
//   - defunc_call_depth: Histogram of the depth at which calls start
//   - defunc_live_instances: Up/down counter of tracked instances still alive
//   - defunc_stale_instances_total: Counter of instances released past the threshold
//
// AuditLogger is a second Recorder that writes one slog record per call.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for metrics
//   - OTEL_METRIC_EXPORT_INTERVAL: Periodic export interval for otlp and stdout
//   - OTEL_SERVICE_NAME: Service name (default: defunc)
//   - METRICS_DETAILED_LABELS: Add the operation label to call metrics
//   - AUDIT_LOGGING_ENABLED: Log every intercepted call (default: false)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	engine, err := defunc.New(defunc.DefaultConfig(),
//		defunc.WithRecorder(provider.Metrics()))
package instrumentation
