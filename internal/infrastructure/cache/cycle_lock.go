package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const cycleLockKey = "distribution:cycle:lock"

// CycleLock is a redis-backed run lock for the distribution cycle. It
// keeps overlapping scheduled runs from doing redundant work; the
// profit-log uniqueness constraint remains the correctness guard.
type CycleLock struct {
	client RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCycleLock creates a lock with the given holder TTL.
func NewCycleLock(client RedisClient, ttl time.Duration, logger *zap.Logger) *CycleLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CycleLock{client: client, ttl: ttl, logger: logger}
}

// TryLock attempts to acquire the lock. The returned release function
// deletes the key; the TTL bounds a holder that crashed without
// releasing.
func (l *CycleLock) TryLock(ctx context.Context) (func(), bool, error) {
	acquired, err := l.client.SetNX(ctx, cycleLockKey, time.Now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Del(ctx, cycleLockKey); err != nil {
			l.logger.Warn("Failed to release cycle lock, TTL will expire it", zap.Error(err))
		}
	}
	return release, true, nil
}
