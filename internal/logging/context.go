package logging

import (
	"context"
	"log/slog"

	"drip/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType names the event so log consumers can filter without parsing messages.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID identifies a recording session.
	FieldSessionID = "session_id"
	// FieldJobID identifies a transcode job.
	FieldJobID = "job_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

var contextIDs = []struct {
	key string
	get func(context.Context) (string, bool)
}{
	{FieldSessionID, services.SessionIDFromContext},
	{FieldJobID, services.JobIDFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the session, job and request ids carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, id := range contextIDs {
		if value, ok := id.get(ctx); ok {
			fields = append(fields, slog.String(id.key, value))
		}
	}
	return fields
}

// WithContext returns logger with the ids from ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
