package extractor

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func loadDocument(t testing.TB, path string) *goquery.Document {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func parseDocument(t testing.TB, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// page renders a minimal profile. Empty wins or prestigeClass leave that anchor out.
func page(wins, prestigeClass string, withRank bool) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if prestigeClass != "" {
		fmt.Fprintf(&b, `<span class="%s"><strong>12</strong></span>`, prestigeClass)
	}
	if withRank {
		b.WriteString(`<span class="l-player-details__rank"><strong>5</strong></span>`)
	}
	b.WriteString(`<table class="c-statistics-table current-ranked"><tbody><tr><td>Matches</td><td>0</td></tr>`)
	if wins != "" {
		fmt.Fprintf(&b, `<tr><td>Wins</td><td>%s</td></tr>`, wins)
	} else {
		b.WriteString(`<tr><td>Draws</td></tr>`)
	}
	b.WriteString(`<tr><td>Losses</td><td>100</td></tr></tbody></table>`)
	b.WriteString("</body></html>")
	return b.String()
}

func TestExtractProfile(t *testing.T) {
	doc := loadDocument(t, "testdata/profile.html")

	stats, ok := Extract(doc)
	require.True(t, ok)
	require.Equal(t, 1234, stats.Wins)
	require.Equal(t, 100, stats.Losses)
	require.Equal(t, 5, stats.Rank)
	require.NotNil(t, stats.PrestigeLevel)
	require.Equal(t, 42, *stats.PrestigeLevel)
	require.Equal(t, 3, stats.PrestigeTier)
	require.NotNil(t, stats.MMR)
	require.Equal(t, 9876, *stats.MMR)
	require.NotNil(t, stats.LeaderboardPosition)
	require.Equal(t, 1024, *stats.LeaderboardPosition)
}

func TestExtractIsIdempotent(t *testing.T) {
	doc := loadDocument(t, "testdata/profile.html")
	before, err := doc.Html()
	require.NoError(t, err)

	first, ok := Extract(doc)
	require.True(t, ok)
	second, ok := Extract(doc)
	require.True(t, ok)
	require.Equal(t, first, second)

	after, err := doc.Html()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestExtractMissingWins(t *testing.T) {
	doc := parseDocument(t, page("", "l-player-details__prestige l-player-details__prestige--2", true))
	stats, ok := Extract(doc)
	require.False(t, ok)
	require.Nil(t, stats)

	stats, ok = LegacySchema.Extract(doc.Selection)
	require.False(t, ok)
	require.Nil(t, stats)
}

func TestExtractWinsWithoutDigits(t *testing.T) {
	doc := parseDocument(t, page("n/a", "l-player-details__prestige", true))
	_, ok := Extract(doc)
	require.False(t, ok)
}

func TestExtractMissingRank(t *testing.T) {
	doc := parseDocument(t, page("7", "l-player-details__prestige", false))
	_, ok := Extract(doc)
	require.False(t, ok)
}

func TestExtractMalformedPrestigeTier(t *testing.T) {
	testCases := []string{
		"l-player-details__prestige",
		"l-player-details__prestige l-player-details__prestige--",
		"l-player-details__prestige l-player-details__prestige--abc",
		"l-player-details__prestige l-player-details__prestige--123",
	}

	for _, class := range testCases {
		doc := parseDocument(t, page("1,234", class, true))
		stats, ok := Extract(doc)
		require.True(t, ok, class)
		require.Equal(t, 0, stats.PrestigeTier, class)
		require.Equal(t, 12, *stats.PrestigeLevel)
		require.Equal(t, 1234, stats.Wins)
		require.Equal(t, 100, stats.Losses)
		require.Equal(t, 5, stats.Rank)
	}
}

func TestExtractMissingPrestige(t *testing.T) {
	doc := parseDocument(t, page("10", "", true))

	_, ok := Extract(doc)
	require.False(t, ok)

	stats, ok := LegacySchema.Extract(doc.Selection)
	require.True(t, ok)
	require.Nil(t, stats.PrestigeLevel)
	require.Equal(t, 0, stats.PrestigeTier)
	require.Nil(t, stats.MMR)
	require.Nil(t, stats.LeaderboardPosition)
}

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		text   string
		expect int
		ok     bool
	}{
		{text: "1,234", expect: 1234, ok: true},
		{text: "  5 ", expect: 5, ok: true},
		{text: "Rank 17", expect: 17, ok: true},
		{text: "12 345 points", expect: 12345, ok: true},
		{text: "#9", expect: 9, ok: true},
		{text: "none", ok: false},
		{text: "", ok: false},
	}

	for _, test := range testCases {
		doc := parseDocument(t, "<p>"+test.text+"</p>")
		n, ok := ParseNumber(doc.Find("p"))
		require.Equal(t, test.ok, ok, test.text)
		require.Equal(t, test.expect, n, test.text)
	}
}
