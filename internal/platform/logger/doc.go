// Package logger provides structured logging for the service.
//
// Loggers are plain *slog.Logger values writing JSON. Request and task scoped
// loggers travel through context.Context via WithLogger and FromContext, and
// records emitted inside an OpenTelemetry span carry its trace and span IDs.
package logger
