// Package extractor reads ranked statistics out of a player's profile page.
//
// The selectors describe markup owned by the upstream site. When the site changes,
// only the Schema values here need to follow.
package extractor

import (
	"gwent-profile-helper/internal/domain"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Schema struct {
	Wins     string
	Losses   string
	Rank     string
	Prestige string
	// PrestigeLevel is looked up inside the Prestige element.
	PrestigeLevel string
	MMR           string
	Position      string

	// RequirePrestige is false for the earliest page layout, which had no prestige block.
	RequirePrestige bool
}

var DefaultSchema = Schema{
	Wins:            "table.c-statistics-table.current-ranked > tbody > tr:nth-child(2) > td:nth-child(2)",
	Losses:          "table.c-statistics-table.current-ranked > tbody > tr:nth-child(3) > td:nth-child(2)",
	Rank:            "span.l-player-details__rank > strong",
	Prestige:        "span.l-player-details__prestige",
	PrestigeLevel:   "strong",
	MMR:             "div.l-player-details__table-mmr > strong",
	Position:        "div.l-player-details__table-position > strong",
	RequirePrestige: true,
}

var LegacySchema = Schema{
	Wins:          DefaultSchema.Wins,
	Losses:        DefaultSchema.Losses,
	Rank:          DefaultSchema.Rank,
	Prestige:      DefaultSchema.Prestige,
	PrestigeLevel: DefaultSchema.PrestigeLevel,
	MMR:           DefaultSchema.MMR,
	Position:      DefaultSchema.Position,
}

var (
	numberRegex       = regexp.MustCompile(`\d[\d,\s]*`)
	nonDigitRegex     = regexp.MustCompile(`\D`)
	prestigeTierRegex = regexp.MustCompile(`^l-player-details__prestige--(\d{1,2})$`)
)

// Extract reads stats from doc with DefaultSchema.
func Extract(doc *goquery.Document) (*domain.PlayerStats, bool) {
	return DefaultSchema.Extract(doc.Selection)
}

// Extract returns nil, false when any required anchor is missing or holds no number.
// root is only read.
func (s Schema) Extract(root *goquery.Selection) (*domain.PlayerStats, bool) {
	wins, ok := ParseNumber(root.Find(s.Wins))
	if !ok {
		return nil, false
	}
	losses, ok := ParseNumber(root.Find(s.Losses))
	if !ok {
		return nil, false
	}
	rank, ok := ParseNumber(root.Find(s.Rank))
	if !ok {
		return nil, false
	}

	stats := &domain.PlayerStats{
		Wins:   wins,
		Losses: losses,
		Rank:   rank,
	}

	prestige := root.Find(s.Prestige).First()
	if level, ok := ParseNumber(prestige.Find(s.PrestigeLevel)); ok {
		stats.PrestigeLevel = &level
		stats.PrestigeTier = PrestigeTier(prestige)
	} else if s.RequirePrestige {
		return nil, false
	}

	if mmr, ok := ParseNumber(root.Find(s.MMR)); ok {
		stats.MMR = &mmr
	}
	if position, ok := ParseNumber(root.Find(s.Position)); ok {
		stats.LeaderboardPosition = &position
	}

	return stats, true
}

// ParseNumber parses the first digit run in the text of the first matched element.
// Thousands separators and whitespace inside the run are dropped, so "1,234" is 1234.
func ParseNumber(sel *goquery.Selection) (int, bool) {
	if sel.Length() == 0 {
		return 0, false
	}
	run := numberRegex.FindString(sel.First().Text())
	if run == "" {
		return 0, false
	}
	n, err := strconv.Atoi(nonDigitRegex.ReplaceAllString(run, ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// PrestigeTier reads the tier from a "l-player-details__prestige--N" class token.
// Unparseable or missing tokens yield 0.
func PrestigeTier(sel *goquery.Selection) int {
	class, _ := sel.Attr("class")
	for _, token := range strings.Fields(class) {
		m := prestigeTierRegex.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		tier, err := strconv.Atoi(m[1])
		if err != nil {
			return 0
		}
		return tier
	}
	return 0
}
