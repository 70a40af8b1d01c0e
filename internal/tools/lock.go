package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Lock defaults for RedisLocker
const (
	DefaultLockExpiry = 2 * time.Minute
	DefaultLockTries  = 64
)

// UnlockFunc releases a lock taken by a Locker
type UnlockFunc func(ctx context.Context) error

// Locker serializes work on the same key across goroutines or instances
type Locker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// NoopLocker never blocks. It is used when there is no shared cache to protect.
type NoopLocker struct{}

// Lock returns immediately
func (NoopLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// RedisLocker takes distributed locks through redsync
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

// NewRedisLocker creates a locker on the same redis server as the cache
func NewRedisLocker(client *redis.Client, expiry time.Duration, tries int) *RedisLocker {
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		tries:  tries,
	}
}

// Lock blocks until the lock for key is held, the tries run out or ctx ends
func (l *RedisLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	mutex := l.rs.NewMutex(fmt.Sprintf(ExplanationLockKeyPattern, key),
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("failed to unlock %s: %w", key, err)
		}
		return nil
	}, nil
}
