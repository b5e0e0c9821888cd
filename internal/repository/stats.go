package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"gwent-profile-helper/internal/cache"
	"time"

	"github.com/rs/zerolog"
)

const (
	getStatsQuery = `SELECT value FROM stats_cache WHERE key = ?`

	upsertStatsQuery = `INSERT INTO stats_cache (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	purgeStatsQuery = `DELETE FROM stats_cache WHERE updated_at < ?`
)

// StatsRepository is the sqlite backed cache.Store.
type StatsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewStatsRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{
		db:     sqlDB,
		logger: logger,
		now:    time.Now,
	}
}

func (r *StatsRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, getStatsQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to read cache entry")
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, nil
}

func (r *StatsRepository) Set(ctx context.Context, key string, value []byte) error {
	if _, err := r.db.ExecContext(ctx, upsertStatsQuery, key, value, r.now().UnixMilli()); err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to write cache entry")
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *StatsRepository) Purge(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, purgeStatsQuery, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged cache entries: %w", err)
	}

	r.logger.Debug().Int64("purged", n).Time("before", before).Msg("purged stale cache entries")
	return int(n), nil
}
