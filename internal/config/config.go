package config

import (
	"fmt"
	"gwent-profile-helper/internal/constants"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type Config struct {
	UpstreamHost    string
	DefaultLocale   string
	DBPath          string
	ServerPort      string
	LogLevel        string
	CacheBackend    string
	RedisAddr       string
	CacheTTL        time.Duration
	FetchDelay      time.Duration
	UpstreamTimeout time.Duration
	UpstreamRPS     float64
	WatchSchedule   string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("upstream_host", cfg.UpstreamHost).
		Str("default_locale", cfg.DefaultLocale).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("cache_backend", cfg.CacheBackend).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("fetch_delay", cfg.FetchDelay).
		Msg("configuration loaded")

	return cfg, nil
}

// FromEnv builds a Config from the process environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{
		UpstreamHost:  getEnv("UPSTREAM_HOST", constants.DefaultUpstreamHost),
		DefaultLocale: getEnv("DEFAULT_LOCALE", constants.DefaultLocale),
		DBPath:        getEnv("DB_PATH", "gwent-profile-helper.db"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendSQLite)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		WatchSchedule: getEnv("WATCH_SCHEDULE", constants.DefaultWatchSchedule),
	}

	var err error
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", constants.StatsCacheTTL); err != nil {
		return nil, err
	}
	if cfg.FetchDelay, err = getDuration("FETCH_DELAY", constants.FetchDelay); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", constants.ExternalAPITimeout); err != nil {
		return nil, err
	}
	if cfg.UpstreamRPS, err = getFloat("UPSTREAM_RPS", constants.UpstreamRPS); err != nil {
		return nil, err
	}

	switch cfg.CacheBackend {
	case CacheBackendSQLite, CacheBackendRedis, CacheBackendMemory:
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if len(cfg.DefaultLocale) != 2 {
		return nil, fmt.Errorf("DEFAULT_LOCALE must be a two letter code, got %q", cfg.DefaultLocale)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive")
	}

	return cfg, nil
}

func (c *Config) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

var Module = fx.Provide(Load)
