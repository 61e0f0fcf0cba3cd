package trace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

var sweepIDKey contextKey

// NewSweepID generates a fresh sweep run ID.
func NewSweepID() string {
	return uuid.NewString()
}

// FromContext returns the sweep run ID stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sweepIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContext stores a sweep run ID in ctx.
func WithContext(ctx context.Context, sweepID string) context.Context {
	return context.WithValue(ctx, sweepIDKey, sweepID)
}
