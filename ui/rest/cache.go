package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	domainCache "github.com/reelhaven/reelhaven/domains/cache"
	pkgError "github.com/reelhaven/reelhaven/pkg/error"
	"github.com/reelhaven/reelhaven/pkg/utils"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/image", rest.GetImage)
	app.Get("/cache/stats", rest.GetStats)
	app.Get("/cache/maintenance", rest.GetMaintenance)
	app.Post("/cache/purge", rest.Purge)
	app.Post("/cache/disable", rest.DisableAndPurge)
	app.Get("/cache/settings", rest.GetSettings)
	app.Put("/cache/settings", rest.UpdateSettings)

	return rest
}

// GetImage streams a cached artwork blob, falling back to the upstream CDN.
// The cache outcome is reported in the X-Cache-Status header.
func (handler *Cache) GetImage(c *fiber.Ctx) error {
	request := domainCache.ImageRequest{
		Key: c.Query("key"),
		URL: c.Query("url"),
	}

	result, err := handler.Service.GetImage(c.UserContext(), request)
	if err != nil {
		var upstreamErr pkgError.UpstreamError
		if errors.As(err, &upstreamErr) {
			c.Set("X-Cache-Status", result.CacheStatus)
			return c.Status(upstreamErr.StatusCode()).JSON(utils.ResponseData{
				Status:  upstreamErr.StatusCode(),
				Code:    upstreamErr.ErrCode(),
				Message: upstreamErr.Error(),
			})
		}
		utils.PanicIfNeeded(err)
	}

	c.Set("X-Cache-Status", result.CacheStatus)
	if result.ContentType != "" {
		c.Set(fiber.HeaderContentType, result.ContentType)
	}
	return c.Status(result.Status).Send(result.Body)
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.GetStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

func (handler *Cache) GetMaintenance(c *fiber.Ctx) error {
	meta, err := handler.Service.GetMaintenance(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache maintenance status retrieved",
		Results: meta,
	})
}

func (handler *Cache) Purge(c *fiber.Ctx) error {
	result, err := handler.Service.Purge(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache purged successfully",
		Results: result,
	})
}

func (handler *Cache) DisableAndPurge(c *fiber.Ctx) error {
	result, err := handler.Service.DisableAndPurge(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Image caching disabled and cache purged",
		Results: result,
	})
}

func (handler *Cache) GetSettings(c *fiber.Ctx) error {
	settings, err := handler.Service.GetSettings(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache settings retrieved",
		Results: settings,
	})
}

func (handler *Cache) UpdateSettings(c *fiber.Ctx) error {
	var settings domainCache.CacheSettings
	if err := c.BodyParser(&settings); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	err := handler.Service.SaveSettings(c.UserContext(), settings)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache settings updated successfully",
	})
}
