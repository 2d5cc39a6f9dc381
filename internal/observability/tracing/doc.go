// Package tracing provides the OpenTelemetry tracer used by the dispatcher and
// an HTTP middleware for the worker's operational endpoints.
package tracing
