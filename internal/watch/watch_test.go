package watch

import (
	"context"
	"errors"
	"gwent-profile-helper/internal/augment"
	"gwent-profile-helper/internal/domain"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	mu    sync.Mutex
	page  string
	calls int
}

func (p *fakePages) GetProfilePage(ctx context.Context, locale, nick string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.page == "" {
		return "", errors.New("upstream down")
	}
	return p.page, nil
}

func (p *fakePages) ProfileURL(locale, nick string) string {
	return "https://example.test/" + locale + "/profile/" + nick
}

func (p *fakePages) set(page string) {
	p.mu.Lock()
	p.page = page
	p.mu.Unlock()
}

type fakeStats struct{}

func (fakeStats) FetchStats(ctx context.Context, locale, nick string) (*domain.PlayerStats, error) {
	if nick == "Ghost" {
		return nil, errors.New("no stats")
	}
	return &domain.PlayerStats{Wins: 3, Losses: 1, Rank: 7}, nil
}

func (fakeStats) ProfileURL(locale, nick string) string {
	return "https://example.test/" + locale + "/profile/" + nick
}

func history(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", "history.html"))
	require.NoError(t, err)
	return string(raw)
}

func newWatcher(pages *fakePages) *Watcher {
	return NewWatcher(pages, augment.NewAugmenter(fakeStats{}, zerolog.Nop()), zerolog.Nop())
}

func TestPollDetectsHistoryChange(t *testing.T) {
	page := history(t)
	pages := &fakePages{page: page}
	w := newWatcher(pages)
	opts := Options{Nick: "Geralt", Locale: "en"}

	doc, err := w.download(context.Background(), opts)
	require.NoError(t, err)
	session := w.augmenter.NewSession(doc, opts.Locale)
	w.setSignature(session.HistorySignature())
	session.Render(context.Background())

	changed, err := w.Poll(context.Background(), session, opts)
	require.NoError(t, err)
	require.False(t, changed, "augmented rows must match the raw page")

	pages.set(strings.Replace(page, "<td>Ghost</td>", "<td>Triss</td>", 1))
	changed, err = w.Poll(context.Background(), session, opts)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []string{"Yennefer", "Ciri", "Triss", "Yennefer"}, session.HistoryNicknames())
}

func TestPollUpstreamFailure(t *testing.T) {
	pages := &fakePages{page: history(t)}
	w := newWatcher(pages)
	opts := Options{Nick: "Geralt", Locale: "en"}

	doc, err := w.download(context.Background(), opts)
	require.NoError(t, err)
	session := w.augmenter.NewSession(doc, opts.Locale)

	pages.set("")
	changed, err := w.Poll(context.Background(), session, opts)
	require.Error(t, err)
	require.False(t, changed)
}

func TestRunWritesAugmentedPage(t *testing.T) {
	page := history(t)
	pages := &fakePages{page: page}
	out := filepath.Join(t.TempDir(), "profile.html")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newWatcher(pages).Run(ctx, Options{Nick: "Geralt", Locale: "en", Schedule: "@every 1s", Out: out})
	}()

	panels := func() int {
		raw, err := os.ReadFile(out)
		if err != nil {
			return -1
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
		if err != nil {
			return -1
		}
		if doc.Find("a.gph-link").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Text() == "Triss"
		}).Length() > 0 {
			return 100
		}
		return doc.Find(".gph-container").Length()
	}
	require.Eventually(t, func() bool { return panels() == 3 }, 5*time.Second, 20*time.Millisecond)

	pages.set(strings.Replace(page, "<td>Ghost</td>", "<td>Triss</td>", 1))
	require.Eventually(t, func() bool { return panels() == 100 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunRejectsBadOptions(t *testing.T) {
	w := newWatcher(&fakePages{page: history(t)})

	require.Error(t, w.Run(context.Background(), Options{Locale: "en", Out: "x.html", Schedule: "@every 1m"}))
	require.Error(t, w.Run(context.Background(), Options{Nick: "Geralt", Locale: "en", Schedule: "@every 1m"}))

	out := filepath.Join(t.TempDir(), "profile.html")
	err := w.Run(context.Background(), Options{Nick: "Geralt", Locale: "en", Schedule: "whenever", Out: out})
	require.ErrorContains(t, err, "invalid schedule")
}

func TestWriteFileReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, WriteFile(path, "one"))
	require.NoError(t, WriteFile(path, "two"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(raw))
}
