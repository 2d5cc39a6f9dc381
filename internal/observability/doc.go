// Package observability groups the logging and tracing helpers shared by the
// notification engine. Dispatch metrics live next to the code that records
// them in usecase/notify.
//
// Subpackages:
//   - logging: slog JSON logger, CRITICAL level, notification correlation fields
//   - tracing: OpenTelemetry tracer and HTTP middleware
package observability
