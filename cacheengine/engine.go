// Package cacheengine is the server-side cache core. It absorbs repeated
// fetches of artwork from third-party image CDNs and of JSON responses from
// rate-limited catalog APIs, tolerates upstream outages by serving stale
// copies, and supports O(1) whole-cache invalidation by advancing a shared
// generation counter. The KV store is the only serialization point; every
// failure of a supporting dependency fails open.
package cacheengine

import (
	"errors"
	"os"
	"time"
)

// Defaults for the freshness windows and timeouts; all overridable through
// Options.
const (
	DefaultImageTTL        = 7 * 24 * time.Hour
	DefaultImageStale      = 30 * 24 * time.Hour
	DefaultJSONTTL         = 10 * time.Minute
	DefaultJSONStale       = 30 * 24 * time.Hour
	DefaultLockTTL         = 10 * time.Second
	DefaultUpstreamTimeout = 5 * time.Second
)

// Options configures a new Engine.
type Options struct {
	Store      Store
	Settings   EnabledReader
	Fetcher    BinaryFetcher // optional; defaults to an HTTP fetcher
	StorageDir string

	ImageTTL        time.Duration
	ImageStale      time.Duration
	JSONTTL         time.Duration
	JSONStale       time.Duration
	LockTTL         time.Duration
	UpstreamTimeout time.Duration
}

// Engine bundles the cache core components around one Store.
type Engine struct {
	Registry    *Registry
	Locks       *LockCoordinator
	Blobs       *BlobEngine
	JSON        *JSONEngine
	Maintenance *Maintenance
}

// New wires up an Engine. The blob storage directory is created if needed.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("cacheengine: store required")
	}
	if opts.Settings == nil {
		return nil, errors.New("cacheengine: settings reader required")
	}
	if opts.StorageDir == "" {
		return nil, errors.New("cacheengine: storage dir required")
	}
	if err := os.MkdirAll(opts.StorageDir, 0o755); err != nil {
		return nil, err
	}

	if opts.ImageTTL <= 0 {
		opts.ImageTTL = DefaultImageTTL
	}
	if opts.ImageStale <= 0 {
		opts.ImageStale = DefaultImageStale
	}
	if opts.JSONTTL <= 0 {
		opts.JSONTTL = DefaultJSONTTL
	}
	if opts.JSONStale <= 0 {
		opts.JSONStale = DefaultJSONStale
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPBinaryFetcher(opts.UpstreamTimeout)
	}

	registry := NewRegistry(opts.Store, opts.Settings)
	locks := NewLockCoordinator(opts.Store, opts.LockTTL)

	return &Engine{
		Registry: registry,
		Locks:    locks,
		Blobs: &BlobEngine{
			store:        opts.Store,
			registry:     registry,
			locks:        locks,
			fetcher:      opts.Fetcher,
			rootDir:      opts.StorageDir,
			defaultTTL:   opts.ImageTTL,
			defaultStale: opts.ImageStale,
		},
		JSON: &JSONEngine{
			store:        opts.Store,
			registry:     registry,
			locks:        locks,
			defaultTTL:   opts.JSONTTL,
			defaultStale: opts.JSONStale,
		},
		Maintenance: &Maintenance{
			store:    opts.Store,
			registry: registry,
			rootDir:  opts.StorageDir,
		},
	}, nil
}
