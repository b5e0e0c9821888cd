package augment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var ErrNoHistoryTable = errors.New("page has no history table")

// Session owns one page and keeps its augmentation in line with the history table.
// Every change to the table schedules a full re-scan of the visible rows. Passes never
// overlap: changes made while a pass runs abandon it and coalesce into one follow-up.
type Session struct {
	augmenter *Augmenter
	locale    string
	logger    zerolog.Logger

	mu     sync.Mutex
	doc    *goquery.Document
	onPass []func(PassResult)

	generation atomic.Uint64

	changed chan struct{}
}

func (a *Augmenter) NewSession(doc *goquery.Document, locale string) *Session {
	return &Session{
		augmenter: a,
		locale:    locale,
		logger:    a.logger.With().Str("locale", locale).Logger(),
		doc:       doc,
		changed:   make(chan struct{}, 1),
	}
}

// Stale reports whether the history table changed since generation.
func (s *Session) Stale(generation uint64) bool {
	return s.generation.Load() != generation
}

// OnPass registers fn to be called after every opponent pass. fn runs on the pass
// goroutine without the session lock held.
func (s *Session) OnPass(fn func(PassResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPass = append(s.onPass, fn)
}

// ReplaceHistoryRows swaps the rows of the history table, as pagination does, and
// schedules a re-scan.
func (s *Session) ReplaceHistoryRows(rowsHTML string) error {
	s.mu.Lock()
	body := s.doc.Find(HistoryBodySelector).First()
	if body.Length() == 0 {
		s.mu.Unlock()
		return ErrNoHistoryTable
	}
	body.Empty()
	body.AppendHtml(rowsHTML)
	generation := s.generation.Add(1)
	s.mu.Unlock()

	s.logger.Debug().Uint64("generation", generation).Msg("history rows replaced")
	s.Notify()
	return nil
}

// Notify schedules a re-scan without changing the document.
func (s *Session) Notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// RenderSelfStats adds the page owner's winrate.
func (s *Session) RenderSelfStats() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.augmenter.RenderSelfStats(s.doc)
}

// RenderOpponentStats runs one pass over the rows currently in the table.
func (s *Session) RenderOpponentStats(ctx context.Context) PassResult {
	result := s.augmenter.renderOpponents(ctx, s.doc, s.locale, sessionGuard{s}, s.generation.Load())

	s.mu.Lock()
	hooks := append([]func(PassResult){}, s.onPass...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(result)
	}
	return result
}

// Render augments the whole page once.
func (s *Session) Render(ctx context.Context) PassResult {
	s.RenderSelfStats()
	return s.RenderOpponentStats(ctx)
}

// Run renders the page and then re-scans the history table after every change until
// ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.Render(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changed:
			s.RenderOpponentStats(ctx)
		}
	}
}

// HTML serializes the current document.
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Html()
}

// HistorySignature describes the rows currently in the history table.
func (s *Session) HistorySignature() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HistorySignature(s.doc.Selection)
}

// HistoryNicknames lists the opponents currently shown in the history table.
func (s *Session) HistoryNicknames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HistoryNicknames(s.doc.Selection)
}

func HistoryNicknames(root *goquery.Selection) []string {
	var nicks []string
	root.Find(HistoryNameSelector).Each(func(_ int, cell *goquery.Selection) {
		if nick := Nickname(cell); nick != "" {
			nicks = append(nicks, nick)
		}
	})
	return nicks
}

type sessionGuard struct {
	s *Session
}

func (g sessionGuard) Lock() {
	g.s.mu.Lock()
}

func (g sessionGuard) Unlock() {
	g.s.mu.Unlock()
}

func (g sessionGuard) Stale(generation uint64) bool {
	return g.s.Stale(generation)
}

// HistorySignature returns one entry per history row built from the row's text with
// added stats panels left out, so an augmented table and its raw source compare equal.
func HistorySignature(root *goquery.Selection) []string {
	var rows []string
	root.Find(HistoryBodySelector).First().ChildrenFiltered("tr").Each(func(_ int, row *goquery.Selection) {
		var cols []string
		row.ChildrenFiltered("td").Each(func(_ int, cell *goquery.Selection) {
			var b strings.Builder
			writeText(&b, cell.Get(0))
			cols = append(cols, strings.Join(strings.Fields(b.String()), " "))
		})
		rows = append(rows, strings.Join(cols, "|"))
	})
	return rows
}
