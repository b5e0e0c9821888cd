// Package cache keeps scraped player stats for a fixed time so repeated lookups of the
// same nickname do not hit the upstream site.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"gwent-profile-helper/internal/constants"
	"gwent-profile-helper/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("cache: key not found")

	errUnsupportedEntry = errors.New("cache: unsupported entry version")
)

// Store is a flat key/value namespace. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Purger is implemented by stores able to drop entries last written before a point in time.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int, error)
}

type Clock func() time.Time

// entry is the persisted form. Entries without a version (the bare stats blob and the
// unversioned {stats, timestamp} wrapper written by older builds) never decode.
type entry struct {
	Version   int                 `json:"version"`
	Stats     *domain.PlayerStats `json:"stats"`
	Timestamp int64               `json:"timestamp"`
}

type Cache struct {
	store  Store
	ttl    time.Duration
	now    Clock
	logger zerolog.Logger
}

type Option func(*Cache)

func WithClock(now Clock) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(store Store, ttl time.Duration, logger zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func Key(nick string) string {
	return constants.StatsKeyPrefix + nick
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the stats stored for nick if they are at most TTL old. Stale, legacy and
// unreadable entries are reported as misses and left in place.
func (c *Cache) Get(ctx context.Context, nick string) (*domain.PlayerStats, bool) {
	cached, err := c.Lookup(ctx, nick)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Str("nick", nick).Msg("ignoring unreadable cache entry")
		}
		return nil, false
	}

	age := c.now().Sub(cached.StoredAt)
	if age > c.ttl {
		c.logger.Debug().Str("nick", nick).Dur("age", age).Dur("ttl", c.ttl).Msg("cache entry expired")
		return nil, false
	}

	stats := cached.Stats
	return &stats, true
}

// Lookup returns the stored entry regardless of its age.
func (c *Cache) Lookup(ctx context.Context, nick string) (domain.CachedStats, error) {
	raw, err := c.store.Get(ctx, Key(nick))
	if err != nil {
		return domain.CachedStats{}, err
	}
	return decode(raw)
}

func (c *Cache) Put(ctx context.Context, nick string, stats domain.PlayerStats) error {
	raw, err := encode(stats, c.now())
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, Key(nick), raw); err != nil {
		return fmt.Errorf("failed to store stats for %s: %w", nick, err)
	}
	return nil
}

// Purge deletes entries older than TTL when the store supports it.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	purger, ok := c.store.(Purger)
	if !ok {
		return 0, nil
	}
	return purger.Purge(ctx, c.now().Add(-c.ttl))
}

func encode(stats domain.PlayerStats, storedAt time.Time) ([]byte, error) {
	return json.Marshal(entry{
		Version:   constants.StatsCacheVersion,
		Stats:     &stats,
		Timestamp: storedAt.UnixMilli(),
	})
}

func decode(raw []byte) (domain.CachedStats, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.CachedStats{}, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if e.Version != constants.StatsCacheVersion || e.Stats == nil || e.Timestamp == 0 {
		return domain.CachedStats{}, fmt.Errorf("%w: %d", errUnsupportedEntry, e.Version)
	}
	return domain.CachedStats{
		Stats:    *e.Stats,
		StoredAt: time.UnixMilli(e.Timestamp),
	}, nil
}
