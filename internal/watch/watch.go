package watch

import (
	"context"
	"errors"
	"fmt"
	"gwent-profile-helper/internal/augment"
	"gwent-profile-helper/internal/service"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Options selects the profile to follow and where its augmented page is written.
type Options struct {
	Nick     string
	Locale   string
	Schedule string
	Out      string
}

// Watcher keeps a local augmented copy of one profile page. The history table is
// re-downloaded on a cron schedule and any change is fed to the page session, which
// re-renders opponent stats exactly as it would after in-page pagination.
type Watcher struct {
	pages     service.PageSource
	augmenter *augment.Augmenter
	logger    zerolog.Logger

	mu        sync.Mutex
	signature []string
}

func NewWatcher(pages service.PageSource, augmenter *augment.Augmenter, logger zerolog.Logger) *Watcher {
	return &Watcher{
		pages:     pages,
		augmenter: augmenter,
		logger:    logger.With().Str("component", "watch").Logger(),
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context, opts Options) error {
	if opts.Nick == "" {
		return errors.New("watch: nick is required")
	}
	if opts.Out == "" {
		return errors.New("watch: output file is required")
	}

	doc, err := w.download(ctx, opts)
	if err != nil {
		return err
	}
	session := w.augmenter.NewSession(doc, opts.Locale)
	w.setSignature(session.HistorySignature())

	logger := w.logger.With().Str("nick", opts.Nick).Str("out", opts.Out).Logger()
	session.OnPass(func(result augment.PassResult) {
		if result.Superseded {
			return
		}
		page, err := session.HTML()
		if err != nil {
			logger.Error().Err(err).Msg("failed to serialize page")
			return
		}
		if err := WriteFile(opts.Out, page); err != nil {
			logger.Error().Err(err).Msg("failed to write page")
			return
		}
		logger.Info().
			Int("rows", result.Rows).
			Int("rendered", result.Rendered).
			Int("failed", result.Failed).
			Msg("page written")
	})

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&logger))))
	if _, err := scheduler.AddFunc(opts.Schedule, func() {
		if _, err := w.Poll(ctx, session, opts); err != nil {
			logger.Warn().Err(err).Msg("history poll failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
	}

	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	logger.Info().Str("schedule", opts.Schedule).Msg("watching profile")
	err = session.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Poll downloads the profile again and hands new history rows to session. It reports
// whether the table changed.
func (w *Watcher) Poll(ctx context.Context, session *augment.Session, opts Options) (bool, error) {
	doc, err := w.download(ctx, opts)
	if err != nil {
		return false, err
	}

	signature := augment.HistorySignature(doc.Selection)
	w.mu.Lock()
	unchanged := slices.Equal(signature, w.signature)
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug().Str("nick", opts.Nick).Msg("history unchanged")
		return false, nil
	}

	rows, err := doc.Find(augment.HistoryBodySelector).First().Html()
	if err != nil {
		return false, fmt.Errorf("read history rows: %w", err)
	}
	if err := session.ReplaceHistoryRows(rows); err != nil {
		return false, err
	}
	w.setSignature(signature)

	w.logger.Info().Str("nick", opts.Nick).Int("rows", len(signature)).Msg("history changed")
	return true, nil
}

func (w *Watcher) download(ctx context.Context, opts Options) (*goquery.Document, error) {
	page, err := w.pages.GetProfilePage(ctx, opts.Locale, opts.Nick)
	if err != nil {
		return nil, fmt.Errorf("download profile %s: %w", opts.Nick, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", opts.Nick, err)
	}
	return doc, nil
}

func (w *Watcher) setSignature(signature []string) {
	w.mu.Lock()
	w.signature = signature
	w.mu.Unlock()
}

// WriteFile replaces path with page through a temporary file in the same directory.
func WriteFile(path, page string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gph-*.html")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(page); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
