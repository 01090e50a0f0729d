package cacheengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LockCoordinator provides advisory, token-based mutual exclusion over the KV
// store. It limits concurrent upstream re-fetches of the same key; it does
// not guarantee them. When the store is unavailable the coordinator fails
// open and hands out tokens unconditionally, because blocking cache reads on
// lock-store health would defeat the cache's purpose.
type LockCoordinator struct {
	store Store
	ttl   time.Duration
}

func NewLockCoordinator(store Store, ttl time.Duration) *LockCoordinator {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LockCoordinator{store: store, ttl: ttl}
}

// Acquire attempts to take the lock for (scope, seed) and returns the holder
// token, or "" if another holder already has it. The TTL is the safety net
// for crashed holders.
func (l *LockCoordinator) Acquire(ctx context.Context, scope, seed string) string {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, LockKey(scope, seed), token, l.ttl)
	if err != nil {
		logrus.Debugf("[CACHE] lock store unavailable, proceeding uncoordinated: %v", err)
		return token
	}
	if !ok {
		return ""
	}
	return token
}

// Release deletes the lock only if it still holds the caller's token. A
// holder that stalled past the TTL and was replaced cannot delete the new
// holder's lock. Store errors are swallowed; the TTL cleans up regardless.
func (l *LockCoordinator) Release(ctx context.Context, scope, seed, token string) bool {
	if token == "" {
		return false
	}
	ok, err := l.store.CompareAndDelete(ctx, LockKey(scope, seed), token)
	if err != nil {
		logrus.Debugf("[CACHE] lock release failed (TTL will expire it): %v", err)
		return false
	}
	return ok
}
