package cacheengine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// CacheStatus labels how a response was produced.
type CacheStatus string

const (
	StatusBypass      CacheStatus = "BYPASS"
	StatusHit         CacheStatus = "HIT"
	StatusMiss        CacheStatus = "MISS"
	StatusRevalidated CacheStatus = "REVALIDATED"
	StatusStale       CacheStatus = "STALE"
)

// BlobMeta is the KV-side metadata record for one cached binary object. The
// bytes themselves live on disk at RelativePath under the blob root. All
// timestamps are milliseconds since epoch.
type BlobMeta struct {
	Generation   int64  `json:"generation"`
	RelativePath string `json:"relative_path"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size_bytes"`
	FetchedAt    int64  `json:"fetched_at"`
	ExpiresAt    int64  `json:"expires_at"`
	StaleUntil   int64  `json:"stale_until"`
}

// BlobOptions overrides the engine defaults for one request.
type BlobOptions struct {
	TTL     time.Duration
	Stale   time.Duration
	Headers map[string]string
}

// BinaryResult is what the image proxy hands back to its caller: a definite
// (status, body|nil, cacheStatus) triple.
type BinaryResult struct {
	Status      int
	Body        []byte
	ContentType string
	CacheStatus CacheStatus
}

// BlobEngine caches binary payloads: content on the filesystem under a
// generation-prefixed directory, metadata in the KV store.
type BlobEngine struct {
	store        Store
	registry     *Registry
	locks        *LockCoordinator
	fetcher      BinaryFetcher
	rootDir      string
	defaultTTL   time.Duration
	defaultStale time.Duration
}

// FetchBinary serves cacheKey from cache when possible and falls back to
// upstreamURL otherwise. See BinaryResult.CacheStatus for which path ran.
func (e *BlobEngine) FetchBinary(ctx context.Context, cacheKey, upstreamURL string, opts *BlobOptions) (*BinaryResult, error) {
	ttl, stale := e.defaultTTL, e.defaultStale
	var headers map[string]string
	if opts != nil {
		if opts.TTL > 0 {
			ttl = opts.TTL
		}
		if opts.Stale > 0 {
			stale = opts.Stale
		}
		headers = opts.Headers
	}

	if !e.registry.CachingEnabled(ctx, false) {
		resp, err := e.fetcher.Fetch(ctx, upstreamURL, headers)
		if err != nil {
			return &BinaryResult{CacheStatus: StatusBypass}, err
		}
		return &BinaryResult{
			Status:      resp.Status,
			Body:        resp.Body,
			ContentType: resp.ContentType,
			CacheStatus: StatusBypass,
		}, nil
	}

	gen := e.registry.CurrentGeneration(ctx)
	metaKey := BlobMetaKey(gen, cacheKey)
	meta := e.readMeta(ctx, metaKey)
	now := nowMillis()

	if meta != nil && now < meta.ExpiresAt {
		body, err := e.readBlob(meta)
		if err == nil {
			return &BinaryResult{Status: 200, Body: body, ContentType: meta.ContentType, CacheStatus: StatusHit}, nil
		}
		// Metadata without a readable file: self-heal to a miss.
		logrus.Warnf("[CACHE] blob file missing for %s, dropping metadata: %v", meta.RelativePath, err)
		_, _ = e.store.Del(ctx, metaKey)
		meta = nil
	}

	lockSeed := fmt.Sprintf("g%d:%s", gen, cacheKey)
	token := e.locks.Acquire(ctx, lockScopeImage, lockSeed)
	if token == "" && meta != nil && now < meta.StaleUntil {
		// Someone else is revalidating; serve the stale copy instead of
		// piling onto upstream.
		if body, err := e.readBlob(meta); err == nil {
			return &BinaryResult{Status: 200, Body: body, ContentType: meta.ContentType, CacheStatus: StatusStale}, nil
		}
	}
	if token != "" {
		defer e.locks.Release(ctx, lockScopeImage, lockSeed, token)
	}

	prevExisted := meta != nil
	resp, fetchErr := e.fetcher.Fetch(ctx, upstreamURL, headers)
	if fetchErr == nil && resp.OK {
		status := StatusMiss
		if prevExisted {
			status = StatusRevalidated
		}
		if err := e.writeBlob(ctx, gen, metaKey, cacheKey, resp, now, ttl, stale); err != nil {
			// Serving the fresh body still works; only the next request pays.
			logrus.Warnf("[CACHE] blob write failed for %s: %v", cacheKey, err)
		}
		return &BinaryResult{
			Status:      resp.Status,
			Body:        resp.Body,
			ContentType: resp.ContentType,
			CacheStatus: status,
		}, nil
	}

	if meta != nil && now < meta.StaleUntil && retryableFailure(resp, fetchErr) {
		if body, err := e.readBlob(meta); err == nil {
			return &BinaryResult{Status: 200, Body: body, ContentType: meta.ContentType, CacheStatus: StatusStale}, nil
		}
	}

	status := StatusMiss
	if prevExisted {
		status = StatusRevalidated
	}
	if fetchErr != nil {
		return &BinaryResult{CacheStatus: status}, fetchErr
	}
	return &BinaryResult{Status: resp.Status, CacheStatus: status}, nil
}

func (e *BlobEngine) readMeta(ctx context.Context, metaKey string) *BlobMeta {
	raw, ok, err := e.store.Get(ctx, metaKey)
	if err != nil {
		logrus.Warnf("[CACHE] blob metadata read failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	var meta BlobMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		logrus.Warnf("[CACHE] blob metadata unreadable, dropping: %v", err)
		_, _ = e.store.Del(ctx, metaKey)
		return nil
	}
	return &meta
}

func (e *BlobEngine) readBlob(meta *BlobMeta) ([]byte, error) {
	return os.ReadFile(filepath.Join(e.rootDir, meta.RelativePath))
}

func (e *BlobEngine) writeBlob(ctx context.Context, gen int64, metaKey, cacheKey string, resp *BinaryResponse, now int64, ttl, stale time.Duration) error {
	hash := Hash(cacheKey)
	relPath := filepath.Join(fmt.Sprintf("g%d", gen), hash[:2], hash)
	absPath := filepath.Join(e.rootDir, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	// Write to a temp file in the same directory, then rename into place so
	// a concurrent reader never observes a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "."+hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename blob into place: %w", err)
	}

	meta := BlobMeta{
		Generation:   gen,
		RelativePath: relPath,
		ContentType:  resp.ContentType,
		SizeBytes:    int64(len(resp.Body)),
		FetchedAt:    now,
		ExpiresAt:    now + ttl.Milliseconds(),
		StaleUntil:   now + ttl.Milliseconds() + stale.Milliseconds(),
	}
	raw, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal blob metadata: %w", err)
	}
	// The KV record expires with the stale window, so unpurged entries
	// still age out naturally.
	if err := e.store.Set(ctx, metaKey, string(raw), ttl+stale); err != nil {
		return fmt.Errorf("store blob metadata: %w", err)
	}
	return nil
}

// retryableFailure reports whether an upstream failure may be papered over
// with a stale copy: network errors, rate limiting and server errors qualify;
// other 4xx signal a caller bug and propagate.
func retryableFailure(resp *BinaryResponse, err error) bool {
	if err != nil {
		return true
	}
	return resp.Status == 429 || resp.Status >= 500
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
