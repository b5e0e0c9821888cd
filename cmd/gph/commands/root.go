package commands

import (
	"context"
	"fmt"
	"gwent-profile-helper/internal/config"
	"gwent-profile-helper/internal/constants"
	fxmodules "gwent-profile-helper/internal/fx"
	"gwent-profile-helper/internal/logger"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	verbose   bool
	noPersist bool
)

var rootCmd = &cobra.Command{
	Use:          "gph",
	Short:        "gph shows ranked stats for GWENT players and augments profile pages with them.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level.")
	rootCmd.PersistentFlags().BoolVar(&noPersist, "no-persist", false, "Keep the stats cache in memory for this run only.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliConfig applies the global flags on top of the loaded configuration.
func cliConfig(cfg *config.Config) *config.Config {
	c := *cfg
	if verbose {
		c.LogLevel = zerolog.DebugLevel.String()
	}
	if noPersist {
		c.CacheBackend = config.CacheBackendMemory
	}
	return &c
}

// startApp builds the application graph, fills targets and starts it. The returned
// function stops the app.
func startApp(ctx context.Context, targets ...any) (func(), error) {
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Decorate(func(zerolog.Logger) zerolog.Logger {
			return logger.Console(zerolog.WarnLevel)
		}),
		fx.Decorate(cliConfig),
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}, nil
}
