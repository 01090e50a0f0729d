package cacheengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_InitializesToOne(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg := NewRegistry(store, &fakeSettings{enabled: true})

	assert.Equal(t, int64(1), reg.CurrentGeneration(ctx))

	// The counter is now persisted, not just defaulted.
	val, ok, err := store.Get(ctx, keyGeneration)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", val)
}

func TestRegistry_AdvanceStrictlyIncreases(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMemStore(), &fakeSettings{enabled: true})

	first := reg.CurrentGeneration(ctx)
	next := reg.AdvanceGeneration(ctx)
	assert.Equal(t, first+1, next)
	assert.Equal(t, next, reg.CurrentGeneration(ctx))

	assert.Equal(t, next+1, reg.AdvanceGeneration(ctx))
}

func TestRegistry_FailsOpenWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(failStore{}, &fakeSettings{enabled: true})

	assert.Equal(t, int64(1), reg.CurrentGeneration(ctx))
	assert.Equal(t, int64(1), reg.AdvanceGeneration(ctx))
}

func TestRegistry_GarbageGenerationDefaultsToOne(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	_ = store.Set(ctx, keyGeneration, "not-a-number", 0)
	reg := NewRegistry(store, &fakeSettings{enabled: true})

	assert.Equal(t, int64(1), reg.CurrentGeneration(ctx))
}

func TestRegistry_EnabledMemoized(t *testing.T) {
	ctx := context.Background()
	settings := &fakeSettings{enabled: true}
	reg := NewRegistry(newMemStore(), settings)

	assert.True(t, reg.CachingEnabled(ctx, false))
	assert.True(t, reg.CachingEnabled(ctx, false))
	assert.True(t, reg.CachingEnabled(ctx, false))

	// Only the first read hit the settings store.
	assert.Equal(t, 1, settings.callCount())

	// forceRefresh bypasses the memo.
	reg.CachingEnabled(ctx, true)
	assert.Equal(t, 2, settings.callCount())
}

func TestRegistry_EnabledFailsOpenTrue(t *testing.T) {
	ctx := context.Background()
	settings := &fakeSettings{enabled: false, err: errStoreDown}
	reg := NewRegistry(newMemStore(), settings)

	assert.True(t, reg.CachingEnabled(ctx, false))
}

func TestRegistry_SetCachingEnabledLocal(t *testing.T) {
	ctx := context.Background()
	settings := &fakeSettings{enabled: true}
	reg := NewRegistry(newMemStore(), settings)

	assert.True(t, reg.CachingEnabled(ctx, false))

	// A caller that just persisted enabled=false updates the memo directly
	// and sees the new value without a settings round trip.
	reg.SetCachingEnabledLocal(false)
	assert.False(t, reg.CachingEnabled(ctx, false))
	assert.Equal(t, 1, settings.callCount())
}
