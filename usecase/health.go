package usecase

import (
	"context"

	"github.com/reelhaven/reelhaven/cacheengine"
	"github.com/reelhaven/reelhaven/core/config"
	domainHealth "github.com/reelhaven/reelhaven/domains/health"
	"github.com/reelhaven/reelhaven/infrastructure/valkey"
)

type healthService struct {
	client   *valkey.Client
	registry *cacheengine.Registry
}

func NewHealthService(client *valkey.Client, registry *cacheengine.Registry) domainHealth.IHealthUsecase {
	return &healthService{client: client, registry: registry}
}

func (s *healthService) GetStatus(ctx context.Context) (domainHealth.Status, error) {
	version := ""
	if config.Global != nil {
		version = config.Global.App.Version
	}
	return domainHealth.Status{
		Version:        version,
		ValkeyHealthy:  s.client.IsConnected(),
		CachingEnabled: s.registry.CachingEnabled(ctx, false),
	}, nil
}
