package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshLocker serializes credential refreshes for one advisor.
type RefreshLocker interface {
	Lock(ctx context.Context, advisorID string) (unlock func(), err error)
}

// NoopLocker is enough when a single process owns the credentials.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

var ErrLockTimeout = errors.New("timed out waiting for refresh lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes SET NX PX locks so refreshes are serialized across
// replicas. A lock left by a crashed holder expires after ttl.
type RedisLocker struct {
	rdb  *redis.Client
	ttl  time.Duration
	poll time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, poll: 50 * time.Millisecond}
}

func lockKey(advisorID string) string {
	return "calendar:refresh:" + advisorID
}

func (l *RedisLocker) Lock(ctx context.Context, advisorID string) (func(), error) {
	key := lockKey(advisorID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Background so an expired request context still releases.
				_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
