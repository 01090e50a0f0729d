package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelhaven/reelhaven/core/settings/domain"
)

type memRepo struct {
	values map[string]string
	getErr error
}

func newMemRepo() *memRepo {
	return &memRepo{values: map[string]string{}}
}

func (r *memRepo) Get(_ context.Context, key string) (string, error) {
	if r.getErr != nil {
		return "", r.getErr
	}
	return r.values[key], nil
}

func (r *memRepo) Set(_ context.Context, key, value string) error {
	r.values[key] = value
	return nil
}

func (r *memRepo) InitSchema(context.Context) error {
	return nil
}

func TestCacheImagesEnabledDefaultsToTrue(t *testing.T) {
	service := NewSettingsServiceWithRepo(newMemRepo())

	enabled, err := service.CacheImagesEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestCacheImagesEnabledRoundTrip(t *testing.T) {
	repo := newMemRepo()
	service := NewSettingsServiceWithRepo(repo)
	ctx := context.Background()

	require.NoError(t, service.SetCacheImagesEnabled(ctx, false))
	enabled, err := service.CacheImagesEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Equal(t, "false", repo.values[domain.KeyCacheImagesEnabled])

	require.NoError(t, service.SetCacheImagesEnabled(ctx, true))
	enabled, err = service.CacheImagesEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestCacheImagesEnabledAcceptsLegacyTruthyValues(t *testing.T) {
	repo := newMemRepo()
	service := NewSettingsServiceWithRepo(repo)
	ctx := context.Background()

	for _, v := range []string{"1", "true", "YES", "On"} {
		repo.values[domain.KeyCacheImagesEnabled] = v
		enabled, err := service.CacheImagesEnabled(ctx)
		require.NoError(t, err)
		assert.True(t, enabled, "value %q", v)
	}

	repo.values[domain.KeyCacheImagesEnabled] = "0"
	enabled, err := service.CacheImagesEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestCacheImagesEnabledPropagatesStoreErrors(t *testing.T) {
	repo := newMemRepo()
	repo.getErr = errors.New("connection refused")
	service := NewSettingsServiceWithRepo(repo)

	_, err := service.CacheImagesEnabled(context.Background())
	assert.Error(t, err)
}
