package commands

import (
	"encoding/json"
	"fmt"
	"gwent-profile-helper/internal/domain"
	"gwent-profile-helper/internal/service"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const statsConcurrency = 4

var (
	statsLocale string
	statsJSON   bool
)

func init() {
	statsCmd.Flags().StringVar(&statsLocale, "locale", "", "Profile locale, defaults to DEFAULT_LOCALE.")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print one JSON object per player.")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats <nick>...",
	Short: "Prints the current ranked season stats of players.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats *service.StatsService
		stop, err := startApp(cmd.Context(), &stats)
		if err != nil {
			return err
		}
		defer stop()

		locale := statsLocale
		if locale == "" {
			locale = stats.DefaultLocale()
		}

		results := make([]*domain.PlayerStats, len(args))
		failures := make([]error, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(statsConcurrency)
		for i, nick := range args {
			g.Go(func() error {
				results[i], failures[i] = stats.FetchStats(ctx, locale, nick)
				return nil
			})
		}
		g.Wait()

		out := cmd.OutOrStdout()
		missing := 0
		for i, nick := range args {
			if failures[i] != nil {
				missing++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", nick, failures[i])
				continue
			}
			if err := printStats(out, nick, results[i]); err != nil {
				return err
			}
		}
		if missing == len(args) {
			return fmt.Errorf("no stats found")
		}
		return nil
	},
}

func printStats(w io.Writer, nick string, stats *domain.PlayerStats) error {
	if statsJSON {
		return json.NewEncoder(w).Encode(struct {
			Nick    string             `json:"nick"`
			Winrate string             `json:"winrate"`
			Stats   domain.PlayerStats `json:"stats"`
		}{nick, stats.FormatWinrate(), *stats})
	}

	line := []string{
		nick,
		fmt.Sprintf("rank %d", stats.Rank),
		fmt.Sprintf("winrate %s%% (%d/%d)", stats.FormatWinrate(), stats.Wins, stats.Losses),
	}
	if stats.PrestigeLevel != nil {
		line = append(line, fmt.Sprintf("prestige %d", *stats.PrestigeLevel))
	}
	if stats.MMR != nil {
		line = append(line, fmt.Sprintf("mmr %d", *stats.MMR))
	}
	if stats.LeaderboardPosition != nil {
		line = append(line, fmt.Sprintf("#%d", *stats.LeaderboardPosition))
	}
	_, err := fmt.Fprintln(w, strings.Join(line, "  "))
	return err
}
