package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"club-directory-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker holds a lease per key across processes. While a lease is held
// it is extended every ttl/3, so ttl bounds how long a crashed holder blocks
// others rather than how long the work may take.
type RedisLocker struct {
	client       redisClient
	prefix       string
	pollInterval time.Duration
	logger       logger.ILogger
}

func NewRedisLocker(client *redis.Client, prefix string, log logger.ILogger) *RedisLocker {
	return &RedisLocker{
		client:       client,
		prefix:       prefix,
		pollInterval: 50 * time.Millisecond,
		logger:       log,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	if interval := ttl / 3; interval > 0 {
		go l.keepAlive(key, redisKey, token, ttl, interval, stop, done)
	} else {
		close(done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// The caller's context may already be done; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn(logger.ModuleLock, "Failed to release lock", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(key, redisKey, token string, ttl, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			l.logger.Warn(logger.ModuleLock, "Failed to extend lock", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		if n == 0 {
			l.logger.Error(logger.ModuleLock, "Lock lease lost before release", map[string]interface{}{"key": key})
			return
		}
	}
}
