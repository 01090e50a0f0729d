package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domainCache "github.com/reelhaven/reelhaven/domains/cache"
	pkgError "github.com/reelhaven/reelhaven/pkg/error"
)

func ValidateImageRequest(ctx context.Context, request domainCache.ImageRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Key, validation.Required),
		validation.Field(&request.URL, validation.Required, is.URL),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
