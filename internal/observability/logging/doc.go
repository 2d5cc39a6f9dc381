// Package logging provides slog helpers shared by the notification worker.
//
// Key features:
//   - JSON and text output formats selected at startup
//   - LOG_LEVEL driven minimum level
//   - a CRITICAL level above ERROR for tenant-isolation violations
//   - context-carried loggers and notification correlation fields
//
// Example usage:
//
//	logger := logging.NewLogger()
//	log := logging.WithNotification(logger, n.OrgID, n.ID)
//	log.Info("dispatch started")
//	logging.Critical(ctx, log, "record dropped: missing org id")
package logging
