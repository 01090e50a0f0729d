package cacheengine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// jsonEntry is the KV record for one structured cache value. The payload is
// stored inline; there is no filesystem component.
type jsonEntry struct {
	Endpoint   string          `json:"endpoint"`
	KeyHash    string          `json:"key_hash"`
	Payload    json.RawMessage `json:"payload"`
	FetchedAt  int64           `json:"fetched_at"`
	ExpiresAt  int64           `json:"expires_at"`
	StaleUntil int64           `json:"stale_until"`
}

// JSONPolicy sets the freshness windows for one call site. Paginated
// discovery queries use short TTLs; near-static reference data (genre lists)
// uses long ones.
type JSONPolicy struct {
	TTL   time.Duration
	Stale time.Duration
}

// JSONEngine caches JSON-serializable values entirely inside the KV store,
// keyed by a stable hash of the normalized request parameters.
type JSONEngine struct {
	store        Store
	registry     *Registry
	locks        *LockCoordinator
	defaultTTL   time.Duration
	defaultStale time.Duration
}

// FetchJSON returns the cached value for (endpoint, params) or invokes fetch
// and caches the result. credentialSeed separates entries produced with
// different upstream credentials for the same logical request. On an
// unrecoverable failure with no usable stale copy the fetcher's error is
// returned as-is.
func FetchJSON[T any](ctx context.Context, e *JSONEngine, endpoint string, params map[string]any, credentialSeed string, policy *JSONPolicy, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !e.registry.CachingEnabled(ctx, false) {
		return fetch(ctx)
	}

	ttl, stale := e.defaultTTL, e.defaultStale
	if policy != nil {
		if policy.TTL > 0 {
			ttl = policy.TTL
		}
		if policy.Stale > 0 {
			stale = policy.Stale
		}
	}

	seed, err := StableSerialize(map[string]any{
		"endpoint":   endpoint,
		"params":     params,
		"credential": Hash(credentialSeed),
	})
	if err != nil {
		// Unserializable params cannot be cached; fall through to upstream.
		logrus.Warnf("[CACHE] json seed for %s not serializable: %v", endpoint, err)
		return fetch(ctx)
	}

	gen := e.registry.CurrentGeneration(ctx)
	entryKey := JSONEntryKey(gen, seed)
	entry := e.readEntry(ctx, entryKey)
	now := nowMillis()

	if entry != nil && now < entry.ExpiresAt {
		var val T
		if err := json.Unmarshal(entry.Payload, &val); err == nil {
			return val, nil
		}
		// Corrupt payload: drop and refetch.
		_, _ = e.store.Del(ctx, entryKey)
		entry = nil
	}

	lockSeed := seed
	token := e.locks.Acquire(ctx, lockScopeAPI, lockSeed)
	if token == "" && entry != nil && now < entry.StaleUntil {
		var val T
		if err := json.Unmarshal(entry.Payload, &val); err == nil {
			return val, nil
		}
	}
	if token != "" {
		defer e.locks.Release(ctx, lockScopeAPI, lockSeed, token)
	}

	val, fetchErr := fetch(ctx)
	if fetchErr == nil {
		e.writeEntry(ctx, entryKey, endpoint, seed, val, now, ttl, stale)
		return val, nil
	}

	// The fetcher is opaque, so any failure counts as retryable-class when a
	// stale copy is still within its window.
	if entry != nil && now < entry.StaleUntil {
		var staleVal T
		if err := json.Unmarshal(entry.Payload, &staleVal); err == nil {
			logrus.Debugf("[CACHE] serving stale %s after upstream failure: %v", endpoint, fetchErr)
			return staleVal, nil
		}
	}

	return zero, fetchErr
}

func (e *JSONEngine) readEntry(ctx context.Context, entryKey string) *jsonEntry {
	raw, ok, err := e.store.Get(ctx, entryKey)
	if err != nil {
		logrus.Warnf("[CACHE] json entry read failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	var entry jsonEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logrus.Warnf("[CACHE] json entry unreadable, dropping: %v", err)
		_, _ = e.store.Del(ctx, entryKey)
		return nil
	}
	return &entry
}

func (e *JSONEngine) writeEntry(ctx context.Context, entryKey, endpoint, seed string, val any, now int64, ttl, stale time.Duration) {
	payload, err := json.Marshal(val)
	if err != nil {
		logrus.Warnf("[CACHE] json payload for %s not serializable: %v", endpoint, err)
		return
	}
	entry := jsonEntry{
		Endpoint:   endpoint,
		KeyHash:    Hash(seed),
		Payload:    payload,
		FetchedAt:  now,
		ExpiresAt:  now + ttl.Milliseconds(),
		StaleUntil: now + ttl.Milliseconds() + stale.Milliseconds(),
	}
	raw, err := json.Marshal(&entry)
	if err != nil {
		return
	}
	if err := e.store.Set(ctx, entryKey, string(raw), ttl+stale); err != nil {
		logrus.Warnf("[CACHE] json entry write failed for %s: %v", endpoint, err)
	}
}
