package usecase

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/reelhaven/reelhaven/cacheengine"
	"github.com/reelhaven/reelhaven/core/settings/application"
	domainCache "github.com/reelhaven/reelhaven/domains/cache"
	pkgError "github.com/reelhaven/reelhaven/pkg/error"
	"github.com/reelhaven/reelhaven/validations"
)

type cacheService struct {
	engine   *cacheengine.Engine
	settings *application.SettingsService
}

func NewCacheService(engine *cacheengine.Engine, settings *application.SettingsService) domainCache.ICacheUsecase {
	return &cacheService{engine: engine, settings: settings}
}

func (s *cacheService) GetImage(ctx context.Context, request domainCache.ImageRequest) (domainCache.ImageResult, error) {
	if err := validations.ValidateImageRequest(ctx, request); err != nil {
		return domainCache.ImageResult{}, err
	}

	res, err := s.engine.Blobs.FetchBinary(ctx, request.Key, request.URL, &cacheengine.BlobOptions{
		Headers: request.Headers,
	})
	if err != nil {
		return domainCache.ImageResult{CacheStatus: string(res.CacheStatus)},
			pkgError.UpstreamError{Status: res.Status, Message: err.Error()}
	}
	if res.Body == nil {
		return domainCache.ImageResult{Status: res.Status, CacheStatus: string(res.CacheStatus)},
			pkgError.UpstreamError{Status: res.Status}
	}

	return domainCache.ImageResult{
		Status:      res.Status,
		Body:        res.Body,
		ContentType: res.ContentType,
		CacheStatus: string(res.CacheStatus),
	}, nil
}

func (s *cacheService) GetStats(ctx context.Context) (domainCache.CacheStats, error) {
	gen := s.engine.Registry.CurrentGeneration(ctx)
	usage := s.engine.Maintenance.Usage(ctx, gen)

	return domainCache.CacheStats{
		Generation: usage.Generation,
		ImageBytes: usage.ImageBytes,
		ImageFiles: usage.ImageFiles,
		APIBytes:   usage.APIBytes,
		APIEntries: usage.APIEntries,
		TotalBytes: usage.TotalBytes,
		HumanSize:  humanize.Bytes(uint64(usage.TotalBytes)),
	}, nil
}

func (s *cacheService) Purge(ctx context.Context) (domainCache.PurgeResult, error) {
	result := s.engine.Maintenance.PurgeActive(ctx)
	return toPurgeResult(result), nil
}

func (s *cacheService) DisableAndPurge(ctx context.Context) (domainCache.PurgeResult, error) {
	if err := s.settings.SetCacheImagesEnabled(ctx, false); err != nil {
		return domainCache.PurgeResult{}, err
	}
	// The same request cycle must not read a stale enabled flag.
	s.engine.Registry.SetCachingEnabledLocal(false)

	result := s.engine.Maintenance.DisableAndPurge(ctx)
	logrus.Infof("[CACHE] image caching disabled, reclaimed g%d", result.Generation)
	return toPurgeResult(result), nil
}

func (s *cacheService) GetMaintenance(ctx context.Context) (domainCache.MaintenanceMeta, error) {
	meta := s.engine.Maintenance.Meta(ctx)
	return domainCache.MaintenanceMeta{
		Status:       meta.Status,
		LastPurgedAt: meta.LastPurgedAt,
	}, nil
}

func (s *cacheService) GetSettings(ctx context.Context) (domainCache.CacheSettings, error) {
	enabled, err := s.settings.CacheImagesEnabled(ctx)
	if err != nil {
		return domainCache.CacheSettings{}, err
	}
	return domainCache.CacheSettings{ImageCacheEnabled: enabled}, nil
}

func (s *cacheService) SaveSettings(ctx context.Context, settings domainCache.CacheSettings) error {
	if err := s.settings.SetCacheImagesEnabled(ctx, settings.ImageCacheEnabled); err != nil {
		return err
	}
	s.engine.Registry.SetCachingEnabledLocal(settings.ImageCacheEnabled)
	return nil
}

func toPurgeResult(result *cacheengine.PurgeResult) domainCache.PurgeResult {
	return domainCache.PurgeResult{
		Generation: result.Generation,
		ImageBytes: result.ImageBytes,
		ImageFiles: result.ImageFiles,
		APIEntries: result.APIEntries,
		HumanSize:  humanize.Bytes(uint64(result.ImageBytes)),
	}
}
