// Package server provides the HTTP endpoint that exposes defunc's metrics.
//
// MetricsServer serves the instrumentation provider's Prometheus registry on
// /metrics (or the configured path) and a liveness check on /healthz, on a
// port separate from anything the traced application itself listens on.
package server
