package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reelhaven/reelhaven/cacheengine"
	coreconfig "github.com/reelhaven/reelhaven/core/config"
	coreDB "github.com/reelhaven/reelhaven/core/database"
	settingsApp "github.com/reelhaven/reelhaven/core/settings/application"
	"github.com/reelhaven/reelhaven/infrastructure/valkey"
	"github.com/reelhaven/reelhaven/ui/rest"
	"github.com/reelhaven/reelhaven/ui/rest/middleware"
	"github.com/reelhaven/reelhaven/usecase"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the dashboard API over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("failed to open settings database: %v", err)
	}

	settingsService := settingsApp.NewSettingsService(db)
	if err := settingsService.InitSchema(context.Background()); err != nil {
		logrus.Fatalf("failed to migrate settings schema: %v", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.Config{
		Address:   cfg.Database.ValkeyAddress,
		Password:  cfg.Database.ValkeyPassword,
		DB:        cfg.Database.ValkeyDB,
		KeyPrefix: cfg.Database.ValkeyKeyPrefix,
	})
	if err != nil {
		logrus.Fatalf("failed to connect to valkey: %v", err)
	}
	defer valkeyClient.Close()

	engine, err := cacheengine.New(cacheengine.Options{
		Store:           cacheengine.NewValkeyStore(valkeyClient),
		Settings:        settingsService,
		StorageDir:      cfg.Cache.StorageDir,
		ImageTTL:        cfg.Cache.ImageTTL,
		ImageStale:      cfg.Cache.ImageStale,
		JSONTTL:         cfg.Cache.JSONTTL,
		JSONStale:       cfg.Cache.JSONStale,
		LockTTL:         cfg.Cache.LockTTL,
		UpstreamTimeout: cfg.Cache.UpstreamTimeout,
	})
	if err != nil {
		logrus.Fatalf("failed to build cache engine: %v", err)
	}

	cacheUsecase := usecase.NewCacheService(engine, settingsService)
	healthUsecase := usecase.NewHealthService(valkeyClient, engine.Registry)

	fiberConfig := fiber.Config{
		Network:               "tcp",
		AppName:               "ReelHaven",
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	api := app.Group(cfg.App.BasePath + "/api")

	if len(cfg.App.BasicAuth) > 0 {
		account := make(map[string]string)
		for _, ba := range cfg.App.BasicAuth {
			parts := strings.Split(ba, ":")
			if len(parts) != 2 {
				logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
			}
			account[parts[0]] = parts[1]
		}
		api.Use(basicauth.New(basicauth.Config{Users: account}))
	} else {
		logrus.Warnln("APP_BASIC_AUTH is not set; the API is unauthenticated")
	}

	rest.InitRestCache(api, cacheUsecase)
	rest.InitRestHealth(api, healthUsecase)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logrus.Fatalf("server stopped: %v", err)
		}
	}()
	logrus.Infof("ReelHaven %s listening on :%s", cfg.App.Version, cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.Errorf("shutdown error: %v", err)
	}
}
