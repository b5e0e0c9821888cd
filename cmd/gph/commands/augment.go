package commands

import (
	"fmt"
	"gwent-profile-helper/internal/augment"
	"gwent-profile-helper/internal/service"
	"gwent-profile-helper/internal/watch"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

var (
	augmentPath string
	augmentOut  string
)

func init() {
	augmentCmd.Flags().StringVar(&augmentPath, "path", "", "URL path the page was served from, e.g. /de/profile/me. Selects the locale.")
	augmentCmd.Flags().StringVarP(&augmentOut, "out", "o", "", "Write the page to this file instead of stdout.")
	rootCmd.AddCommand(augmentCmd)
}

var augmentCmd = &cobra.Command{
	Use:   "augment <file|->",
	Short: "Adds winrates and opponent stats to a saved profile page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := readPage(cmd, args[0])
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
		if err != nil {
			return fmt.Errorf("parse page: %w", err)
		}

		var (
			stats     *service.StatsService
			augmenter *augment.Augmenter
		)
		stop, err := startApp(cmd.Context(), &stats, &augmenter)
		if err != nil {
			return err
		}
		defer stop()

		session := augmenter.NewSession(doc, stats.LocaleFromPath(augmentPath))
		session.Render(cmd.Context())

		out, err := session.HTML()
		if err != nil {
			return err
		}
		if augmentOut != "" {
			return watch.WriteFile(augmentOut, out)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	},
}

func readPage(cmd *cobra.Command, name string) (string, error) {
	var (
		raw []byte
		err error
	)
	if name == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(raw), nil
}
