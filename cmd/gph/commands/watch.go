package commands

import (
	"gwent-profile-helper/internal/config"
	"gwent-profile-helper/internal/service"
	"gwent-profile-helper/internal/watch"

	"github.com/spf13/cobra"
)

var watchOpts watch.Options

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.Out, "out", "o", "", "File the augmented page is written to.")
	watchCmd.Flags().StringVar(&watchOpts.Schedule, "schedule", "", "Cron schedule for history polls, defaults to WATCH_SCHEDULE.")
	watchCmd.Flags().StringVar(&watchOpts.Locale, "locale", "", "Profile locale, defaults to DEFAULT_LOCALE.")
	watchCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <nick> --out <file>",
	Short: "Keeps an augmented copy of a profile page up to date as new matches are played.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg     *config.Config
			stats   *service.StatsService
			watcher *watch.Watcher
		)
		stop, err := startApp(cmd.Context(), &cfg, &stats, &watcher)
		if err != nil {
			return err
		}
		defer stop()

		opts := watchOpts
		opts.Nick = args[0]
		if opts.Locale == "" {
			opts.Locale = stats.DefaultLocale()
		}
		if opts.Schedule == "" {
			opts.Schedule = cfg.WatchSchedule
		}
		return watcher.Run(cmd.Context(), opts)
	},
}
