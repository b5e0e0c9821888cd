package repository

import (
	"context"
	"gwent-profile-helper/internal/cache"
	"gwent-profile-helper/internal/database"
	"gwent-profile-helper/internal/domain"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *StatsRepository {
	t.Helper()
	db, err := database.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStatsRepository(db, zerolog.Nop())
}

func TestStatsRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	repo := newTestRepository(t)

	_, err := repo.Get(ctx, "gwent-profile-helper:nobody")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "gwent-profile-helper:a", []byte(`first`)))
	require.NoError(t, repo.Set(ctx, "gwent-profile-helper:a", []byte(`second`)))

	v, err := repo.Get(ctx, "gwent-profile-helper:a")
	require.NoError(t, err)
	require.Equal(t, []byte(`second`), v)
}

func TestStatsRepositoryPurge(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	require.NoError(t, repo.Set(ctx, "old", []byte(`x`)))

	now = now.Add(20 * time.Minute)
	require.NoError(t, repo.Set(ctx, "new", []byte(`y`)))

	n, err := repo.Purge(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = repo.Get(ctx, "old")
	require.ErrorIs(t, err, cache.ErrNotFound)
	_, err = repo.Get(ctx, "new")
	require.NoError(t, err)
}

func TestStatsRepositoryAsCacheStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo.now = clock
	c := cache.New(repo, 10*time.Minute, zerolog.Nop(), cache.WithClock(clock))

	stats := domain.PlayerStats{Wins: 1234, Losses: 100, Rank: 5, PrestigeLevel: domain.IntPtr(3)}
	require.NoError(t, c.Put(ctx, "Geralt", stats))

	got, ok := c.Get(ctx, "Geralt")
	require.True(t, ok)
	require.Equal(t, stats, *got)

	now = now.Add(11 * time.Minute)
	_, ok = c.Get(ctx, "Geralt")
	require.False(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
