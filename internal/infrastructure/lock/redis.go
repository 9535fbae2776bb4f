package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agri-advance/internal/domain/uow"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// only the holder's token may delete the key
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// the holder pushes its own expiry forward while it works
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Redis is a distributed keyed lock (SET NX PX + token) for running several API replicas
// against one pool. A held key is re-armed every ttl/3 until release, so a slow transaction does
// not outlive it. If the holder process stalls past ttl the key expires and another replica may
// enter; the pool row version check still rejects the stale writer.
type Redis struct {
	rdb      *redis.Client
	prefix   string
	ttl      time.Duration
	retry    time.Duration
	attempts int
}

func NewRedis(rdb *redis.Client, ttl, retry time.Duration, attempts int) *Redis {
	if attempts < 1 {
		attempts = 1
	}
	return &Redis{rdb: rdb, prefix: "lock:", ttl: ttl, retry: retry, attempts: attempts}
}

var _ uow.Locker = (*Redis)(nil)

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()
	for i := 0; i < l.attempts; i++ {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			go l.keepAlive(k, token, stop)
			return l.releaser(k, token, stop), nil
		}
		if i == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: lock %s: %v", uow.ErrConcurrencyConflict, key, ctx.Err())
		case <-time.After(l.retry):
		}
	}
	return nil, fmt.Errorf("%w: lock %s held elsewhere", uow.ErrConcurrencyConflict, key)
}

// keepAlive extends the key until stop is closed or the token no longer owns it.
func (l *Redis) keepAlive(key, token string, stop <-chan struct{}) {
	every := l.ttl / 3
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err == nil && n == 0 {
			select {
			case <-stop:
			default:
				slog.Warn("lock lost before release", "key", key)
			}
			return
		}
	}
}

func (l *Redis) releaser(key, token string, stop chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = unlockScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}
}
