package requestctx

import (
	"context"
	"log/slog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	actorKey     ctxKey = "actor"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithActor tags the context with the authenticated tenant and user for logging.
func WithActor(ctx context.Context, tenantID, userID string) context.Context {
	return context.WithValue(ctx, actorKey, [2]string{tenantID, userID})
}

// Logger returns the default logger annotated with whatever request metadata ctx carries.
func Logger(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id := GetRequestID(ctx); id != "" {
		logger = logger.With("requestId", id)
	}
	if actor, ok := ctx.Value(actorKey).([2]string); ok {
		logger = logger.With("tenantId", actor[0], "userId", actor[1])
	}
	return logger
}
