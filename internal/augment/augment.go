// Package augment annotates a profile page with ranked stats: a winrate next to the
// page owner's summary and a stats panel for every opponent in the match history.
package augment

import (
	"context"
	"fmt"
	"gwent-profile-helper/internal/domain"
	"gwent-profile-helper/internal/extractor"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	xhtml "golang.org/x/net/html"
)

const (
	HistoryBodySelector  = "#history > table > tbody"
	HistoryNameSelector  = "#history > table > tbody > tr > td:nth-child(4)"
	SelfSummarySelector  = ".l-player-details__basic"
	statsPanelClass      = "gph-container"
	selfWinrateClass     = "gph-winrate-large"
	opponentLinkSelector = "a.gph-link"
)

// StatsFetcher resolves a nickname to stats. Errors mean the stats are unavailable.
type StatsFetcher interface {
	FetchStats(ctx context.Context, locale, nick string) (*domain.PlayerStats, error)
	ProfileURL(locale, nick string) string
}

type PassResult struct {
	ID         string
	Generation uint64
	Rows       int
	Linked     int
	Rendered   int
	Failed     int
	Superseded bool
}

type Augmenter struct {
	stats  StatsFetcher
	logger zerolog.Logger
}

func NewAugmenter(stats StatsFetcher, logger zerolog.Logger) *Augmenter {
	return &Augmenter{stats: stats, logger: logger}
}

// RenderSelfStats adds the winrate of the page owner to the summary block, replacing a
// previously added one. It reports false when the page has no stats or no summary block.
func (a *Augmenter) RenderSelfStats(doc *goquery.Document) bool {
	stats, ok := extractor.Extract(doc)
	if !ok {
		a.logger.Debug().Msg("no ranked stats on page, skipping self winrate")
		return false
	}
	summary := doc.Find(SelfSummarySelector).First()
	if summary.Length() == 0 {
		a.logger.Debug().Msg("no summary block on page, skipping self winrate")
		return false
	}

	summary.Find("." + selfWinrateClass).Remove()
	summary.AppendHtml(fmt.Sprintf(
		`<span class="l-player-details gph-winrate %s" title="Current Ranked Season Winrate (added by helper extension).  Wins: %d   Losses: %d">%s %%</span>`,
		selfWinrateClass, stats.Wins, stats.Losses, stats.FormatWinrate(),
	))
	return true
}

// RenderOpponentStats links every opponent name in the history table to its profile
// and appends a stats panel to the row. Rows are handled in document order with one
// fetch at a time; a failed row is logged and skipped.
func (a *Augmenter) RenderOpponentStats(ctx context.Context, doc *goquery.Document, locale string) PassResult {
	return a.renderOpponents(ctx, doc, locale, noGuard{}, 0)
}

// passGuard lets a Session serialise document access and abandon superseded passes.
type passGuard interface {
	Lock()
	Unlock()
	Stale(generation uint64) bool
}

type noGuard struct{}

func (noGuard) Lock() {}

func (noGuard) Unlock() {}

func (noGuard) Stale(uint64) bool { return false }

type opponentCell struct {
	sel  *goquery.Selection
	nick string
}

func (a *Augmenter) renderOpponents(ctx context.Context, doc *goquery.Document, locale string, guard passGuard, generation uint64) PassResult {
	result := PassResult{ID: uuid.NewString(), Generation: generation}
	logger := a.logger.With().Str("pass", result.ID).Uint64("generation", generation).Logger()

	guard.Lock()
	var cells []opponentCell
	doc.Find(HistoryNameSelector).Each(func(_ int, cell *goquery.Selection) {
		nick := Nickname(cell)
		if nick == "" {
			return
		}
		if linkNickname(cell, nick, a.stats.ProfileURL(locale, nick)) {
			result.Linked++
		}
		cells = append(cells, opponentCell{sel: cell, nick: nick})
	})
	guard.Unlock()

	result.Rows = len(cells)
	logger.Debug().Int("rows", result.Rows).Int("linked", result.Linked).Msg("augmenting history rows")

	for _, cell := range cells {
		if ctx.Err() != nil || guard.Stale(generation) {
			result.Superseded = true
			logger.Debug().Msg("history changed, abandoning pass")
			break
		}

		stats, err := a.stats.FetchStats(ctx, locale, cell.nick)
		if err != nil {
			result.Failed++
			logger.Warn().Err(err).Str("nick", cell.nick).Msg("no stats for opponent")
			continue
		}

		guard.Lock()
		if guard.Stale(generation) {
			guard.Unlock()
			result.Superseded = true
			logger.Debug().Msg("history changed, abandoning pass")
			break
		}
		renderPanel(cell.sel, *stats)
		guard.Unlock()
		result.Rendered++
	}

	logger.Info().
		Int("rows", result.Rows).
		Int("rendered", result.Rendered).
		Int("failed", result.Failed).
		Bool("superseded", result.Superseded).
		Msg("history augmentation pass finished")
	return result
}

// Nickname is the opponent name shown in a history cell, ignoring any stats panel
// added to it earlier.
func Nickname(cell *goquery.Selection) string {
	if link := cell.ChildrenFiltered(opponentLinkSelector); link.Length() > 0 {
		return strings.TrimSpace(link.First().Text())
	}
	var b strings.Builder
	for _, n := range cell.Nodes {
		writeText(&b, n)
	}
	return strings.TrimSpace(b.String())
}

func writeText(b *strings.Builder, node *xhtml.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xhtml.TextNode:
			b.WriteString(child.Data)
		case xhtml.ElementNode:
			if hasClass(child, statsPanelClass) {
				continue
			}
			writeText(b, child)
		}
	}
}

func hasClass(node *xhtml.Node, class string) bool {
	for _, attr := range node.Attr {
		if attr.Key == "class" {
			for _, token := range strings.Fields(attr.Val) {
				if token == class {
					return true
				}
			}
		}
	}
	return false
}

// linkNickname swaps the raw name text of a cell for a link to the profile. Cells that
// no longer hold a raw name (already linked) are left untouched.
func linkNickname(cell *goquery.Selection, nick, href string) bool {
	if cell.Length() == 0 {
		return false
	}
	node := cell.Nodes[0]
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xhtml.TextNode || strings.TrimSpace(child.Data) == "" {
			continue
		}
		link := &xhtml.Node{
			Type: xhtml.ElementNode,
			Data: "a",
			Attr: []xhtml.Attribute{
				{Key: "class", Val: "gph-link"},
				{Key: "href", Val: href},
				{Key: "target", Val: "_blank"},
			},
		}
		link.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: nick})
		node.InsertBefore(link, child)
		node.RemoveChild(child)
		return true
	}
	return false
}

func renderPanel(cell *goquery.Selection, stats domain.PlayerStats) {
	cell.ChildrenFiltered("." + statsPanelClass).Remove()
	cell.AppendHtml(StatsPanel(stats))
}

// StatsPanel renders the stats shown next to an opponent's name.
func StatsPanel(stats domain.PlayerStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s">`, statsPanelClass)
	if stats.PrestigeLevel != nil {
		fmt.Fprintf(&b,
			`<span class="l-player-details__prestige l-player-details__prestige--%d gph-prestige"><strong>%d</strong></span>`,
			stats.PrestigeTier, *stats.PrestigeLevel)
	}
	fmt.Fprintf(&b, `<span class="l-player-details__rank gph-rank"><strong>%d</strong></span>`, stats.Rank)
	fmt.Fprintf(&b, `<span class="l-player-details gph-winrate" title="Wins: %d   Losses: %d">%s %%</span>`,
		stats.Wins, stats.Losses, stats.FormatWinrate())

	mmr := ""
	if stats.MMR != nil {
		mmr = fmt.Sprint(*stats.MMR)
	}
	if stats.LeaderboardPosition != nil {
		title := fmt.Sprintf("MMR: %s   Position: %d", mmr, *stats.LeaderboardPosition)
		fmt.Fprintf(&b, `<span class="gph-mmr" title="%s">%s</span>`, html.EscapeString(title), mmr)
	} else {
		fmt.Fprintf(&b, `<span class="gph-mmr">%s</span>`, mmr)
	}
	b.WriteString(`</div>`)
	return b.String()
}
