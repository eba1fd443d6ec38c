// Package lock serializes work per key, typically a provider subscription id.
package lock

import (
	"context"
	"errors"
	"time"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Locker acquires an exclusive lease on key. The returned release func is safe
// to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// WithLock runs fn while holding key.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
