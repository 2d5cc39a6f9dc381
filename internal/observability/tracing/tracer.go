package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by the notification engine.
const TracerName = "fixzit-notify"

// GetTracer returns the tracer from the currently installed global provider.
//
// It is resolved on every call so a provider installed after package
// initialization, such as an in-memory exporter in tests, is picked up.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "notify.dispatch")
//	defer span.End()
func GetTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
