package redis

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// unlockLua deletes a lock key only if the caller still holds it.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

//go:embed scripts/renew.lua
var renewLua string

// LockManager implements domain.LockManager and domain.LeaseManager using
// SET NX with a TTL and token-checked Lua scripts for unlock and renew.
type LockManager struct {
	c        *Client
	rdb      *redis.Client
	unlockSc *redis.Script
	renewSc  *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		c:        c,
		rdb:      c.rdb,
		unlockSc: redis.NewScript(unlockLua),
		renewSc:  redis.NewScript(renewLua),
	}
}

func (lm *LockManager) lockKey(key string) string {
	return lm.c.key("lock", key)
}

// Acquire takes the lock for ttl and returns an idempotent unlock func.
// It returns domain.ErrLockHeld if someone else holds it.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l, err := lm.AcquireLease(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return l.Release, nil
}

// AcquireLease takes the lock for ttl and returns a lease the holder must
// Renew before ttl elapses.
func (lm *LockManager) AcquireLease(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	token := uuid.NewString()
	lk := lm.lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}
	return &lease{lm: lm, key: lk, token: token, ttl: ttl}, nil
}

type lease struct {
	lm    *LockManager
	key   string
	token string
	ttl   time.Duration

	once sync.Once
}

// Renew extends the lease by its TTL. It returns domain.ErrLockHeld when the
// lease already expired and someone else may hold the lock.
func (l *lease) Renew(ctx context.Context) error {
	n, err := l.lm.renewSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis: renew %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("redis: renew %s: lease lost: %w", l.key, domain.ErrLockHeld)
	}
	return nil
}

// Release gives the lock up. Safe to call more than once.
func (l *lease) Release() {
	l.once.Do(func() {
		// The caller's context is often already cancelled here.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.lm.unlockSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token).Err()
	})
}

var (
	_ domain.LockManager  = (*LockManager)(nil)
	_ domain.LeaseManager = (*LockManager)(nil)
)
