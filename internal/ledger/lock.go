package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/resilience"
)

// Locker serializes writers of the same ledger. Lock blocks until the key is free or
// ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker serializes writers inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "lock: acquire %s", key)
	}
}

// DefaultLockTTL bounds how long a crashed writer can hold a Redis lock. A live holder
// renews its lease every third of the TTL, so a merge may run longer than this.
const DefaultLockTTL = 30 * time.Second

const lockRetryInterval = 50 * time.Millisecond

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lease to ARGV[2] ms only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serializes writers across processes with SET NX and a per-holder token.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker connects to the Redis server at url.
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "lock: parse redis url")
	}
	client := redis.NewClient(opts)
	policy := resilience.DefaultPolicy()
	policy.OnRetry = resilience.LogRetry("redis", "ping")
	if err := resilience.Do(ctx, policy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "lock: ping redis")
	}
	return NewRedisLockerWithClient(client, ttl), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, prefix: "participation:lock:", ttl: ttl}
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, eris.Wrapf(err, "lock: acquire %s", key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "lock: acquire %s", key)
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token) //nolint:errcheck
		})
	}, nil
}

// renew extends the lease on key every third of the TTL until stop is closed or the
// key no longer holds token.
func (l *RedisLocker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			zap.L().Warn("lock: renew failed", zap.String("key", key), zap.Error(err))
		case n == 0:
			zap.L().Warn("lock: lease lost before release", zap.String("key", key))
			return
		}
	}
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
