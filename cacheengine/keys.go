package cacheengine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key namespaces. Every generation-scoped key embeds the generation it was
// written under, so advancing the generation orphans the whole namespace at
// once instead of requiring per-entry deletes.
const (
	nsBlobMeta  = "cache:img:meta"
	nsJSONEntry = "cache:api:entry"
	nsLock      = "cache:lock"

	keyGeneration   = "cache:gen"
	keyPurgeStatus  = "cache:purge:status"
	keyLastPurgedAt = "cache:purge:last"
)

// Lock scopes used by the engines.
const (
	lockScopeImage = "img"
	lockScopeAPI   = "api"
)

// Hash returns the hex-encoded SHA-256 digest of the input. Used everywhere a
// logical cache key must become a bounded-length storage key or filename.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// StableSerialize encodes a value as canonical JSON: object keys are sorted
// recursively, nil map values are dropped, array order is preserved. Two
// logically identical parameter maps always serialize to the same string
// regardless of construction or iteration order.
func StableSerialize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("stable serialize: %w", err)
	}
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return "", fmt.Errorf("stable serialize: %w", err)
	}

	var b strings.Builder
	writeCanonical(&b, norm)
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if t[k] == nil {
				// Absent and explicitly-nil optional fields hash identically.
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			enc, _ := json.Marshal(k)
			b.Write(enc)
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	default:
		enc, _ := json.Marshal(t)
		b.Write(enc)
	}
}

// BlobMetaKey returns the KV key holding blob metadata for a cache key within
// a generation.
func BlobMetaKey(generation int64, cacheKey string) string {
	return fmt.Sprintf("%s:g%d:%s", nsBlobMeta, generation, Hash(cacheKey))
}

// JSONEntryKey returns the KV key holding a structured cache entry for a
// canonical seed within a generation.
func JSONEntryKey(generation int64, seed string) string {
	return fmt.Sprintf("%s:g%d:%s", nsJSONEntry, generation, Hash(seed))
}

// LockKey returns the KV key for an advisory lock.
func LockKey(scope, seed string) string {
	return fmt.Sprintf("%s:%s:%s", nsLock, scope, Hash(seed))
}

func blobMetaPattern(generation int64) string {
	return fmt.Sprintf("%s:g%d:*", nsBlobMeta, generation)
}

func jsonEntryPattern(generation int64) string {
	return fmt.Sprintf("%s:g%d:*", nsJSONEntry, generation)
}
