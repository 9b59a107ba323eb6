package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrType      = "type"
	attrOperation = "operation"
	attrScope     = "scope"
	attrStatus    = "status"
)

// Metrics provides methods for recording call and instance metrics.
// It satisfies the engine's Recorder interface.
type Metrics struct {
	// Call metrics
	callsTotal   metric.Int64Counter
	callDuration metric.Float64Histogram
	callDepth    metric.Int64Histogram

	// Instance metrics
	liveInstances  metric.Int64UpDownCounter
	staleInstances metric.Int64Counter

	// Configuration
	// detailedLabels controls whether the operation label is included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.callsTotal, err = meter.Int64Counter(
		"defunc_calls_total",
		metric.WithDescription("Total number of intercepted calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create defunc_calls_total counter: %w", err)
	}

	m.callDuration, err = meter.Float64Histogram(
		"defunc_call_duration_seconds",
		metric.WithDescription("Intercepted call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create defunc_call_duration_seconds histogram: %w", err)
	}

	m.callDepth, err = meter.Int64Histogram(
		"defunc_call_depth",
		metric.WithDescription("Nesting depth at which intercepted calls start"),
		metric.WithUnit("{space}"),
		metric.WithExplicitBucketBoundaries(0, 2, 4, 8, 16, 32, 64),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create defunc_call_depth histogram: %w", err)
	}

	m.liveInstances, err = meter.Int64UpDownCounter(
		"defunc_live_instances",
		metric.WithDescription("Number of tracked instances currently alive"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create defunc_live_instances gauge: %w", err)
	}

	m.staleInstances, err = meter.Int64Counter(
		"defunc_stale_instances_total",
		metric.WithDescription("Total number of instances released after the staleness threshold"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create defunc_stale_instances_total counter: %w", err)
	}

	return m, nil
}

// RecordCall records an intercepted call.
//
// Parameters:
//   - typeName: declared type name (normalized with TypeLabel)
//   - operation: operation name (only included if detailedLabels is true)
//   - scope: "static" or "instance"
//   - depth: depth of the enter line
//   - status: "success", "error" or "panic"
//   - duration: time spent in the call, nested calls included
func (m *Metrics) RecordCall(ctx context.Context, typeName, operation, scope string, depth int, status string, duration time.Duration) {
	if m.callsTotal == nil || m.callDuration == nil || m.callDepth == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrType, TypeLabel(typeName)),
		attribute.String(attrScope, scope),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && operation != "" {
		attrs = append(attrs, attribute.String(attrOperation, operation))
	}

	m.callsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.callDepth.Record(ctx, int64(depth), metric.WithAttributes(attribute.String(attrType, TypeLabel(typeName))))
}

// RecordInstanceTracked increments the live instance gauge for typeName.
func (m *Metrics) RecordInstanceTracked(ctx context.Context, typeName string) {
	if m.liveInstances == nil {
		return // Instrumentation not initialized
	}

	m.liveInstances.Add(ctx, 1, metric.WithAttributes(attribute.String(attrType, TypeLabel(typeName))))
}

// RecordInstanceReleased decrements the live instance gauge and counts stale releases.
func (m *Metrics) RecordInstanceReleased(ctx context.Context, typeName string, stale bool) {
	if m.liveInstances == nil || m.staleInstances == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrType, TypeLabel(typeName)))
	m.liveInstances.Add(ctx, -1, attrs)
	if stale {
		m.staleInstances.Add(ctx, 1, attrs)
	}
}
