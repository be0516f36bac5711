// Package logging is the structured, context-aware logger shared by the
// server and its services. SlogLogger backs it with log/slog.
package logging

import "context"

// Logger takes alternating key/value args after the message:
//
//	log.Info(ctx, "object stored", "object_id", id, "version", v)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
