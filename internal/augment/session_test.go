package augment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const nextPage = `<tr><td>2024-02-28</td><td>Loss</td><td>Syndicate</td><td>Triss</td></tr>
<tr><td>2024-02-28</td><td>Win</td><td>Northern Realms</td><td>Ciri</td></tr>`

func TestSessionRerendersOnHistoryChange(t *testing.T) {
	fetcher := newFakeFetcher()
	a := NewAugmenter(fetcher, zerolog.Nop())
	session := a.NewSession(loadHistory(t), "en")

	passes := make(chan PassResult, 8)
	session.OnPass(func(r PassResult) { passes <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	first := <-passes
	require.Equal(t, 4, first.Rows)
	require.False(t, first.Superseded)

	require.NoError(t, session.ReplaceHistoryRows(nextPage))

	second := <-passes
	require.Equal(t, 2, second.Rows)
	require.Equal(t, 2, second.Linked)
	require.Equal(t, 2, second.Rendered)
	require.Equal(t, []string{"Triss", "Ciri"}, session.HistoryNicknames())

	out, err := session.HTML()
	require.NoError(t, err)
	require.Contains(t, out, "gph-winrate-large")
	require.Contains(t, out, `href="https://www.playgwent.com/en/profile/Triss"`)
	require.NotContains(t, out, "profile/Yennefer")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSessionAbandonsSupersededPass(t *testing.T) {
	fetcher := newFakeFetcher()
	release := make(chan struct{})
	fetcher.block["Yennefer"] = release
	a := NewAugmenter(fetcher, zerolog.Nop())
	session := a.NewSession(loadHistory(t), "en")

	passes := make(chan PassResult, 8)
	session.OnPass(func(r PassResult) { passes <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	require.Eventually(t, func() bool { return fetcher.callCount("Yennefer") == 1 }, time.Second, time.Millisecond)

	// two changes while the first pass is blocked collapse into a single follow-up pass
	require.NoError(t, session.ReplaceHistoryRows(nextPage))
	require.NoError(t, session.ReplaceHistoryRows(nextPage))
	fetcher.mu.Lock()
	delete(fetcher.block, "Yennefer")
	fetcher.mu.Unlock()
	close(release)

	first := <-passes
	require.True(t, first.Superseded)
	require.Zero(t, first.Rendered)
	require.Equal(t, 1, fetcher.callCount("Yennefer"))

	second := <-passes
	require.False(t, second.Superseded)
	require.Equal(t, 2, second.Rendered)

	select {
	case extra := <-passes:
		t.Fatalf("unexpected extra pass: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 1, fetcher.callCount("Triss"))
}

func TestReplaceHistoryRowsWithoutTable(t *testing.T) {
	doc := loadHistory(t)
	doc.Find("#history").Remove()
	session := NewAugmenter(newFakeFetcher(), zerolog.Nop()).NewSession(doc, "en")

	require.ErrorIs(t, session.ReplaceHistoryRows(nextPage), ErrNoHistoryTable)
}

func TestHistorySignatureIgnoresAugmentation(t *testing.T) {
	raw := loadHistory(t)
	augmented := loadHistory(t)
	NewAugmenter(newFakeFetcher(), zerolog.Nop()).RenderOpponentStats(context.Background(), augmented, "en")

	signature := HistorySignature(raw.Selection)
	require.Len(t, signature, 4)
	require.Equal(t, "2024-03-01|Win|Monsters|Yennefer", signature[0])
	require.Equal(t, signature, HistorySignature(augmented.Selection))
}
