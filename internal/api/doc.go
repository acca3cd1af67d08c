// Package api provides the HTTP handlers of the review engine. Handlers
// decode and validate requests, call the engine, calibration and scheduling
// services, and map service errors to status codes and safe messages.
package api
