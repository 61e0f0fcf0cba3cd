package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sweepLockKey = "sweep:lock"

// SweepLock is a Redis lease that keeps overlapping sweep invocations from
// running at once. A scheduler tick that cannot acquire the lease skips its
// sweep; the lease expires on its own if the holder dies mid-sweep.
type SweepLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSweepLock(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SweepLock {
	return &SweepLock{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire tries to take the sweep lease for the given run ID. Returns true if
// this invocation may run. When Redis is unavailable the sweep is allowed to
// proceed; upserts are idempotent, so an unguarded overlap degrades to extra
// work rather than corruption.
func (l *SweepLock) Acquire(ctx context.Context, sweepID string) bool {
	ok, err := l.rdb.SetNX(ctx, sweepLockKey, sweepID, l.ttl).Result()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("Redis sweep lock check failed, allowing sweep",
				zap.String("sweep_id", sweepID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && l.logger != nil {
		l.logger.Info("Sweep lock held by another invocation, skipping",
			zap.String("sweep_id", sweepID),
		)
	}
	return ok
}

// Release drops the lease if this run still holds it.
func (l *SweepLock) Release(ctx context.Context, sweepID string) {
	current, err := l.rdb.Get(ctx, sweepLockKey).Result()
	if err != nil || current != sweepID {
		return
	}
	l.rdb.Del(ctx, sweepLockKey)
}
