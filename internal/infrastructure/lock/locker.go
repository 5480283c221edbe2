package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker serializes money operations touching a set of accounts. Locks
// are always taken in ascending account-id order regardless of role, so
// two transfers in opposite directions between the same pair cannot
// deadlock.
type Locker interface {
	// Acquire blocks until every account lock is held, returning the
	// release function, or fails after its retry budget.
	Acquire(ctx context.Context, accountIDs ...int64) (release func(), err error)
}

// RedisLocker implements Locker on redis SET NX locks, one key per
// account. This is the production locker: it also fences requests that
// land on different server instances.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, accountIDs ...int64) (func(), error) {
	ids := sortedUnique(accountIDs)
	holder := uuid.NewString()

	held := make([]*DistributedLock, 0, len(ids))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// Release with a fresh context: the request context may
			// already be done, and a leaked key parks the account for
			// the full expiry.
			_ = held[i].Unlock(context.Background())
		}
	}

	for _, id := range ids {
		dl := NewAccountLock(l.client, id, holder)
		if err := dl.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			releaseHeld()
			return nil, err
		}
		held = append(held, dl)
	}
	return releaseHeld, nil
}

// LocalLocker implements Locker with in-process mutexes. It backs tests
// and single-instance deployments that run without redis.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]*sync.Mutex)}
}

func (l *LocalLocker) lockFor(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[id]; !ok {
		l.locks[id] = &sync.Mutex{}
	}
	return l.locks[id]
}

func (l *LocalLocker) Acquire(ctx context.Context, accountIDs ...int64) (func(), error) {
	ids := sortedUnique(accountIDs)
	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		m := l.lockFor(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}, nil
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
