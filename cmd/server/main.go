package main

import (
	"context"
	"fmt"
	"gwent-profile-helper/internal/cache"
	"gwent-profile-helper/internal/config"
	"gwent-profile-helper/internal/constants"
	fxmodules "gwent-profile-helper/internal/fx"
	"gwent-profile-helper/internal/middleware"
	"gwent-profile-helper/internal/server"
	"net/http"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	profileServer *server.ProfileServer,
	statsCache *cache.Cache,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	logger = logger.Level(cfg.ZerologLevel())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.RequestID(logger)(profileServer.Handler()),
	}

	purger := cron.New()
	if _, err := purger.AddFunc(fmt.Sprintf("@every %s", statsCache.TTL()), func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()

		n, err := statsCache.Purge(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("stats cache purge failed")
			return
		}
		logger.Debug().Int("deleted", n).Msg("stats cache purged")
	}); err != nil {
		logger.Warn().Err(err).Msg("stats cache purge disabled")
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			purger.Start()
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			<-purger.Stop().Done()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
