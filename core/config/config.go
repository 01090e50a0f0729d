package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Paths    PathsConfig
	Database DatabaseConfig
	Cache    CacheConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type CacheConfig struct {
	// StorageDir is the root directory for cached blob files.
	StorageDir string

	ImageTTL        time.Duration
	ImageStale      time.Duration
	JSONTTL         time.Duration
	JSONStale       time.Duration
	LockTTL         time.Duration
	UpstreamTimeout time.Duration
}

// Global provides access to the loaded configuration globally (Migration Helper)
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.4.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            filepath.Join(pathsCfg.Storages, "app.db"), // Default SQLite
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "reelhaven:"),
	}
	if v := getEnv("DB_NAME", ""); v != "" && dbCfg.Driver == "postgres" {
		dbCfg.Name = v
	}

	cacheCfg := CacheConfig{
		StorageDir:      getEnv("CACHE_STORAGE_DIR", filepath.Join(baseDir, "cache")),
		ImageTTL:        time.Duration(getEnvInt64("CACHE_IMAGE_TTL_SECONDS", 7*24*3600)) * time.Second,
		ImageStale:      time.Duration(getEnvInt64("CACHE_IMAGE_STALE_SECONDS", 30*24*3600)) * time.Second,
		JSONTTL:         time.Duration(getEnvInt64("CACHE_JSON_TTL_SECONDS", 600)) * time.Second,
		JSONStale:       time.Duration(getEnvInt64("CACHE_JSON_STALE_SECONDS", 30*24*3600)) * time.Second,
		LockTTL:         time.Duration(getEnvInt64("CACHE_LOCK_TTL_MS", 10000)) * time.Millisecond,
		UpstreamTimeout: time.Duration(getEnvInt64("CACHE_UPSTREAM_TIMEOUT_SECONDS", 5)) * time.Second,
	}

	cfg := &Config{
		App:      appCfg,
		Paths:    pathsCfg,
		Database: dbCfg,
		Cache:    cacheCfg,
	}

	Global = cfg
	return cfg, nil
}
