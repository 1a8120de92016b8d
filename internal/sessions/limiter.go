package sessions

import (
	"context"
	"sync"
	"time"

	"sales-trainer/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter caps each user at one active session. owner identifies the session
// holding the slot.
type Limiter interface {
	Acquire(ctx context.Context, userID, owner string) (bool, error)
	Refresh(ctx context.Context, userID, owner string) error
	Release(ctx context.Context, userID, owner string) error
}

func leaseKey(userID string) string { return "sessions:active:" + userID }

// RedisLimiter keeps the slot as an expiring Redis lease so it is shared by
// every API instance.
type RedisLimiter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLimiter(rdb *redis.Client, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, ttl: ttl}
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID, owner string) (bool, error) {
	ok, _, err := utils.AcquireLease(ctx, l.rdb, leaseKey(userID), owner, l.ttl)
	return ok, err
}

func (l *RedisLimiter) Refresh(ctx context.Context, userID, owner string) error {
	_, err := utils.RefreshLease(ctx, l.rdb, leaseKey(userID), owner, l.ttl)
	return err
}

func (l *RedisLimiter) Release(ctx context.Context, userID, owner string) error {
	return utils.ReleaseLease(ctx, l.rdb, leaseKey(userID), owner)
}

// MemoryLimiter is a single-process Limiter.
type MemoryLimiter struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]memLease
}

type memLease struct {
	owner   string
	expires time.Time
}

func NewMemoryLimiter(ttl time.Duration) *MemoryLimiter {
	return &MemoryLimiter{ttl: ttl, now: time.Now, leases: map[string]memLease{}}
}

func (l *MemoryLimiter) Acquire(ctx context.Context, userID, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[userID]; ok && now.Before(cur.expires) && cur.owner != owner {
		return false, nil
	}
	l.leases[userID] = memLease{owner: owner, expires: now.Add(l.ttl)}
	return true, nil
}

func (l *MemoryLimiter) Refresh(ctx context.Context, userID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[userID]; ok && cur.owner == owner {
		cur.expires = l.now().Add(l.ttl)
		l.leases[userID] = cur
	}
	return nil
}

func (l *MemoryLimiter) Release(ctx context.Context, userID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[userID]; ok && cur.owner == owner {
		delete(l.leases, userID)
	}
	return nil
}
