package cacheengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLock_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	locks := NewLockCoordinator(newMemStore(), time.Second)

	token := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.NotEmpty(t, token)

	assert.True(t, locks.Release(ctx, lockScopeImage, "poster:123", token))
	// Already gone.
	assert.False(t, locks.Release(ctx, lockScopeImage, "poster:123", token))
}

func TestLock_ContentionReturnsEmptyToken(t *testing.T) {
	ctx := context.Background()
	locks := NewLockCoordinator(newMemStore(), time.Second)

	first := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.NotEmpty(t, first)

	second := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.Empty(t, second)

	// A different seed is unaffected.
	other := locks.Acquire(ctx, lockScopeImage, "poster:456")
	assert.NotEmpty(t, other)
}

func TestLock_WrongTokenCannotRelease(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	locks := NewLockCoordinator(store, time.Second)

	t1 := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.NotEmpty(t, t1)

	assert.False(t, locks.Release(ctx, lockScopeImage, "poster:123", "some-other-token"))

	// The original holder still owns the lock.
	val, ok, err := store.Get(ctx, LockKey(lockScopeImage, "poster:123"))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, t1, val)
}

func TestLock_TTLExpiryFreesLock(t *testing.T) {
	ctx := context.Background()
	locks := NewLockCoordinator(newMemStore(), 20*time.Millisecond)

	first := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.NotEmpty(t, first)

	time.Sleep(30 * time.Millisecond)

	second := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.NotEmpty(t, second)

	// The crashed first holder's late release must not steal the new lock.
	assert.False(t, locks.Release(ctx, lockScopeImage, "poster:123", first))
	assert.True(t, locks.Release(ctx, lockScopeImage, "poster:123", second))
}

func TestLock_FailsOpenWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	locks := NewLockCoordinator(failStore{}, time.Second)

	// Every caller gets a token; coordination is lost, caching is not.
	first := locks.Acquire(ctx, lockScopeImage, "poster:123")
	second := locks.Acquire(ctx, lockScopeImage, "poster:123")
	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	// Release is best-effort and reports failure silently.
	assert.False(t, locks.Release(ctx, lockScopeImage, "poster:123", first))
}
