package cacheengine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// enabledMemoWindow bounds settings-store traffic: the enabled flag is read
// through a short-lived process-local memo instead of once per request.
const enabledMemoWindow = 5 * time.Second

// EnabledReader reads the externally owned "image caching enabled" setting.
// The engine never writes it.
type EnabledReader interface {
	CacheImagesEnabled(ctx context.Context) (bool, error)
}

// Registry owns the shared generation counter and the cached enabled flag.
// All instances observe the same generation through the KV store; bumping it
// is the O(1) whole-cache invalidation mechanism.
type Registry struct {
	store    Store
	settings EnabledReader

	mu        sync.Mutex
	enabled   bool
	enabledAt time.Time
}

func NewRegistry(store Store, settings EnabledReader) *Registry {
	return &Registry{store: store, settings: settings}
}

// CurrentGeneration returns the active generation, initializing it to 1 on
// first use. Store failures degrade to generation 1 rather than erroring:
// a wrong-but-valid generation only costs cache hits, never correctness.
func (r *Registry) CurrentGeneration(ctx context.Context) int64 {
	val, ok, err := r.store.Get(ctx, keyGeneration)
	if err != nil {
		logrus.Warnf("[CACHE] generation read failed, assuming 1: %v", err)
		return 1
	}
	if !ok {
		if _, err := r.store.SetNX(ctx, keyGeneration, "1", 0); err != nil {
			logrus.Warnf("[CACHE] generation init failed, assuming 1: %v", err)
			return 1
		}
		// Re-read so a racing initializer's value wins.
		val, ok, err = r.store.Get(ctx, keyGeneration)
		if err != nil || !ok {
			return 1
		}
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n < 1 {
		logrus.Warnf("[CACHE] generation key holds %q, assuming 1", val)
		return 1
	}
	return n
}

// AdvanceGeneration atomically increments the generation and returns the new
// value, logically invalidating every previously written cache entry. A store
// failure degrades to generation 1.
func (r *Registry) AdvanceGeneration(ctx context.Context) int64 {
	n, err := r.store.Incr(ctx, keyGeneration)
	if err != nil {
		logrus.Warnf("[CACHE] generation advance failed, assuming 1: %v", err)
		return 1
	}
	return n
}

// CachingEnabled reports whether image caching is on, memoized for
// enabledMemoWindow unless forceRefresh is set. A settings read failure fails
// open to enabled.
func (r *Registry) CachingEnabled(ctx context.Context, forceRefresh bool) bool {
	r.mu.Lock()
	if !forceRefresh && !r.enabledAt.IsZero() && time.Since(r.enabledAt) < enabledMemoWindow {
		v := r.enabled
		r.mu.Unlock()
		return v
	}
	r.mu.Unlock()

	v, err := r.settings.CacheImagesEnabled(ctx)
	if err != nil {
		logrus.Warnf("[CACHE] enabled-flag read failed, assuming enabled: %v", err)
		v = true
	}

	r.mu.Lock()
	r.enabled = v
	r.enabledAt = time.Now()
	r.mu.Unlock()
	return v
}

// SetCachingEnabledLocal updates only the local memo. Callers that just
// persisted the new setting themselves use this to avoid serving a stale
// read within the same request cycle.
func (r *Registry) SetCachingEnabledLocal(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.enabledAt = time.Now()
	r.mu.Unlock()
}
