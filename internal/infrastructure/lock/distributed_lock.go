package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrLockFailed = errors.New("failed to acquire lock")

// DistributedLock is a redis SET NX lock with an expiry so a crashed
// holder cannot park the key forever. The value identifies the holder;
// Unlock verifies it before deleting, which keeps one client from
// releasing another client's lock after its own expired.
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts to take the lock without blocking.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock until it succeeds, the context ends, or the retry
// budget runs out.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock. The check-and-delete runs as a Lua script so
// it is atomic with respect to expiry and re-acquisition.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewAccountLock builds the per-account operation lock. Locking per
// account keeps one user's concurrent requests serialized while leaving
// unrelated accounts free to proceed.
func NewAccountLock(client *redis.Client, accountID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:account:%d", accountID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
