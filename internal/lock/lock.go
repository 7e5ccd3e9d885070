// Package lock serializes transitions on a single ticket or order across
// requests and processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired reports that another holder owns the key.
var ErrNotAcquired = errors.New("lock held by another request")

// ReleaseFunc gives a lock back.
type ReleaseFunc func(context.Context) error

// Locker acquires exclusive, non-blocking leases keyed by aggregate.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// Key builds the lock key for an aggregate.
func Key(prefix, aggregate, id string) string {
	return prefix + ":" + aggregate + ":" + id
}

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker holds leases in Redis with SET NX PX.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisLocker builds a Redis-backed locker.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire tries once to take the lease; it never waits for a holder.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

// LocalLocker serializes within one process. It backs single-instance
// deployments that run without Redis.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker builds an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

// Acquire takes key if free.
func (l *LocalLocker) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrNotAcquired
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// Nop never contends. Versioned writes remain the only guard.
type Nop struct{}

// Acquire always succeeds.
func (Nop) Acquire(context.Context, string) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}
