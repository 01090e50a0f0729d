package application

import (
	"context"
	"strconv"
	"strings"

	"github.com/reelhaven/reelhaven/core/settings/domain"
	"github.com/reelhaven/reelhaven/core/settings/infrastructure"
	"gorm.io/gorm"
)

// SettingsService reads and writes dynamic settings. It is the sole writer of
// the image-caching flag; the cache engine only reads it.
type SettingsService struct {
	repo domain.ISettingsRepository
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{
		repo: infrastructure.NewGlobalSettingsGormRepository(db),
	}
}

// NewSettingsServiceWithRepo is used by tests to inject a repository.
func NewSettingsServiceWithRepo(repo domain.ISettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// InitSchema creates the settings table if needed.
func (s *SettingsService) InitSchema(ctx context.Context) error {
	return s.repo.InitSchema(ctx)
}

// CacheImagesEnabled reports the persisted image-caching flag. An unset flag
// defaults to enabled.
func (s *SettingsService) CacheImagesEnabled(ctx context.Context) (bool, error) {
	val, err := s.repo.Get(ctx, domain.KeyCacheImagesEnabled)
	if err != nil {
		return false, err
	}
	if val == "" {
		return true, nil
	}
	return parseBool(val), nil
}

// SetCacheImagesEnabled persists the image-caching flag.
func (s *SettingsService) SetCacheImagesEnabled(ctx context.Context, enabled bool) error {
	return s.repo.Set(ctx, domain.KeyCacheImagesEnabled, strconv.FormatBool(enabled))
}

func parseBool(v string) bool {
	vLower := strings.ToLower(v)
	return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
}
