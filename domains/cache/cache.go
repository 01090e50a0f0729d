package cache

import "context"

// ImageRequest identifies one artwork fetch through the cache.
type ImageRequest struct {
	Key     string            `json:"key"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ImageResult is a definite (status, body|nil, cacheStatus) triple.
type ImageResult struct {
	Status      int    `json:"status"`
	Body        []byte `json:"-"`
	ContentType string `json:"content_type"`
	CacheStatus string `json:"cache_status"`
}

type CacheStats struct {
	Generation int64  `json:"generation"`
	ImageBytes int64  `json:"image_bytes"`
	ImageFiles int64  `json:"image_files"`
	APIBytes   int64  `json:"api_bytes"`
	APIEntries int64  `json:"api_entries"`
	TotalBytes int64  `json:"total_bytes"`
	HumanSize  string `json:"human_size"`
}

type PurgeResult struct {
	Generation int64  `json:"generation"`
	ImageBytes int64  `json:"image_bytes"`
	ImageFiles int64  `json:"image_files"`
	APIEntries int64  `json:"api_entries"`
	HumanSize  string `json:"human_size"`
}

type MaintenanceMeta struct {
	Status       string `json:"status"`
	LastPurgedAt string `json:"last_purged_at"`
}

type CacheSettings struct {
	ImageCacheEnabled bool `json:"image_cache_enabled"`
}

type ICacheUsecase interface {
	GetImage(ctx context.Context, request ImageRequest) (ImageResult, error)

	GetStats(ctx context.Context) (CacheStats, error)
	Purge(ctx context.Context) (PurgeResult, error)
	DisableAndPurge(ctx context.Context) (PurgeResult, error)
	GetMaintenance(ctx context.Context) (MaintenanceMeta, error)

	GetSettings(ctx context.Context) (CacheSettings, error)
	SaveSettings(ctx context.Context, settings CacheSettings) error
}
