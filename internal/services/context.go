package services

import "context"

type contextKey int

const (
	sessionIDKey contextKey = iota
	jobIDKey
	requestIDKey
)

// WithSessionID tags ctx with a recording session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withID(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the recording session id, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	return idFrom(ctx, sessionIDKey)
}

// WithJobID tags ctx with a transcode job id.
func WithJobID(ctx context.Context, id string) context.Context {
	return withID(ctx, jobIDKey, id)
}

// JobIDFromContext returns the transcode job id, if any.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return idFrom(ctx, jobIDKey)
}

// WithRequestID tags ctx with the control API request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the control API request id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return idFrom(ctx, requestIDKey)
}

func withID(ctx context.Context, key contextKey, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(key).(string)
	return id, ok && id != ""
}
