package fx

import (
	"context"
	"gwent-profile-helper/internal/api"
	"gwent-profile-helper/internal/augment"
	"gwent-profile-helper/internal/cache"
	"gwent-profile-helper/internal/config"
	"gwent-profile-helper/internal/database"
	"gwent-profile-helper/internal/logger"
	"gwent-profile-helper/internal/repository"
	"gwent-profile-helper/internal/server"
	"gwent-profile-helper/internal/service"
	"gwent-profile-helper/internal/watch"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideStore opens the cache backend selected by CACHE_BACKEND.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (cache.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		logger.Info().Msg("using in-memory stats cache")
		return cache.NewMemoryStore(), nil

	case config.CacheBackendRedis:
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis stats cache")
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		return cache.NewRedisStore(client), nil
	}

	sqlDB, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := sqlDB.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
	return repository.NewStatsRepository(sqlDB, logger), nil
}

func ProvideCache(store cache.Store, cfg *config.Config, logger zerolog.Logger) *cache.Cache {
	return cache.New(store, cfg.CacheTTL, logger)
}

func ProvideAugmenter(stats *service.StatsService, logger zerolog.Logger) *augment.Augmenter {
	return augment.NewAugmenter(stats, logger)
}

// applyLevel narrows the bootstrap logger to LOG_LEVEL once the config is known.
func applyLevel(l zerolog.Logger, cfg *config.Config) zerolog.Logger {
	return l.Level(cfg.ZerologLevel())
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Module("gph",
		fx.Decorate(applyLevel),
		// storage
		fx.Provide(ProvideStore),
		fx.Provide(ProvideCache),
		// upstream
		fx.Provide(fx.Annotate(api.NewProfileClient, fx.As(new(service.PageSource)))),
		// svc
		fx.Provide(service.NewStatsService),
		fx.Provide(ProvideAugmenter),
		fx.Provide(watch.NewWatcher),
		// server
		fx.Provide(server.NewProfileServer),
	),
)
