package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/pkg/trace"
)

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// WithSweep annotates the logger with the sweep run ID carried in ctx so the
// log lines of one sweep can be correlated.
func WithSweep(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sweepID := trace.FromContext(ctx)
	if sweepID != "" {
		return logger.With(zap.String("sweep_id", sweepID))
	}
	return logger
}
