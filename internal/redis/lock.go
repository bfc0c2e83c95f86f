package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

// retryInterval is the pause between acquisition attempts while waiting.
const retryInterval = 25 * time.Millisecond

// Locker serialises work on one provider slot across api-server replicas.
type Locker interface {
	WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisSlotLocker creates a locker backed by one SET NX key per slot. A
// contended lock is retried for up to wait before ErrLockNotAcquired.
func NewRedisSlotLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(slotKey string) string {
	return "lock:slot:" + slotKey
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	key := lockKey(slotKey)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even if the caller's context is already done
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	// the section must finish before the key can expire under it
	sectionCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(sectionCtx)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(retryInterval).Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

type localLocker struct{}

// NewLocalLocker runs critical sections without coordination. It is meant
// for single process setups where the store's unique index is the only guard.
func NewLocalLocker() Locker {
	return localLocker{}
}

func (localLocker) WithSlotLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
