package validations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainCache "github.com/reelhaven/reelhaven/domains/cache"
	pkgError "github.com/reelhaven/reelhaven/pkg/error"
)

func TestValidateImageRequest(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		request domainCache.ImageRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			request: domainCache.ImageRequest{Key: "poster:603", URL: "https://image.tmdb.org/t/p/w500/poster.jpg"},
			wantErr: false,
		},
		{
			name:    "missing key",
			request: domainCache.ImageRequest{URL: "https://image.tmdb.org/t/p/w500/poster.jpg"},
			wantErr: true,
		},
		{
			name:    "missing url",
			request: domainCache.ImageRequest{Key: "poster:603"},
			wantErr: true,
		},
		{
			name:    "malformed url",
			request: domainCache.ImageRequest{Key: "poster:603", URL: "not a url"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateImageRequest(ctx, tc.request)
			if tc.wantErr {
				assert.Error(t, err)
				assert.IsType(t, pkgError.ValidationError(""), err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
