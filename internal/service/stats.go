package service

import (
	"context"
	"errors"
	"fmt"
	"gwent-profile-helper/internal/cache"
	"gwent-profile-helper/internal/config"
	"gwent-profile-helper/internal/constants"
	"gwent-profile-helper/internal/domain"
	"gwent-profile-helper/internal/extractor"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var ErrStatsUnavailable = errors.New("stats unavailable")

// PageSource fetches profile pages from the upstream site.
type PageSource interface {
	GetProfilePage(ctx context.Context, locale, nick string) (string, error)
	ProfileURL(locale, nick string) string
}

type StatsService struct {
	pages         PageSource
	cache         *cache.Cache
	schema        extractor.Schema
	delay         time.Duration
	defaultLocale string
	flightTimeout time.Duration
	group         singleflight.Group
	logger        zerolog.Logger
}

func NewStatsService(pages PageSource, statsCache *cache.Cache, cfg *config.Config, logger zerolog.Logger) *StatsService {
	upstreamTimeout := cfg.UpstreamTimeout
	if upstreamTimeout <= 0 {
		upstreamTimeout = constants.ExternalAPITimeout
	}

	return &StatsService{
		pages:         pages,
		cache:         statsCache,
		schema:        extractor.DefaultSchema,
		delay:         cfg.FetchDelay,
		defaultLocale: cfg.DefaultLocale,
		flightTimeout: cfg.FetchDelay + upstreamTimeout,
		logger:        logger,
	}
}

// LocaleFromPath returns the first segment of a page path when it is exactly two
// characters long, fallback otherwise.
func LocaleFromPath(path, fallback string) string {
	segments := strings.Split(path, "/")
	if len(segments) > 1 && len(segments[1]) == 2 {
		return segments[1]
	}
	return fallback
}

func (s *StatsService) DefaultLocale() string {
	return s.defaultLocale
}

func (s *StatsService) LocaleFromPath(path string) string {
	return LocaleFromPath(path, s.defaultLocale)
}

func (s *StatsService) ProfileURL(locale, nick string) string {
	return s.pages.ProfileURL(locale, nick)
}

// FetchStats returns nick's stats from the cache, or scrapes them from the profile page
// and caches the result. Concurrent calls for the same nick share one upstream request,
// which is not tied to any single caller: a caller that gives up leaves the others
// waiting on it. Any error means the stats are not available; nothing is cached then.
func (s *StatsService) FetchStats(ctx context.Context, locale, nick string) (*domain.PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stats, ok := s.cache.Get(ctx, nick); ok {
		return stats, nil
	}

	ch := s.group.DoChan(nick, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
		defer cancel()

		// a flight that finished between our miss and this call may have filled the cache
		if stats, ok := s.cache.Get(flightCtx, nick); ok {
			return stats, nil
		}
		return s.load(flightCtx, locale, nick)
	})

	select {
	case <-ctx.Done():
		s.logger.Debug().Str("nick", nick).Msg("caller left in-flight stats request")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug().Str("nick", nick).Msg("joined in-flight stats request")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		stats := *res.Val.(*domain.PlayerStats)
		return &stats, nil
	}
}

func (s *StatsService) load(ctx context.Context, locale, nick string) (*domain.PlayerStats, error) {
	if err := sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	s.logger.Info().Str("nick", nick).Str("locale", locale).Msg("loading player stats")

	page, err := s.pages.GetProfilePage(ctx, locale, nick)
	if err != nil {
		s.logger.Warn().Err(err).Str("nick", nick).Msg("player stats fetch failed")
		return nil, fmt.Errorf("failed to fetch profile of %s: %w", nick, err)
	}

	stats, err := s.StatsFromPage(page)
	if err != nil {
		s.logger.Info().Str("nick", nick).Bool("found", false).Msg("player stats result")
		return nil, fmt.Errorf("%s: %w", nick, err)
	}

	s.logger.Info().
		Str("nick", nick).
		Bool("found", true).
		Int("wins", stats.Wins).
		Int("losses", stats.Losses).
		Int("rank", stats.Rank).
		Msg("player stats result")

	if err := s.cache.Put(ctx, nick, *stats); err != nil {
		s.logger.Warn().Err(err).Str("nick", nick).Msg("failed to cache player stats")
	}
	return stats, nil
}

// StatsFromPage parses an HTML page and extracts stats from it.
func (s *StatsService) StatsFromPage(page string) (*domain.PlayerStats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile page: %w", err)
	}
	stats, ok := s.schema.Extract(doc.Selection)
	if !ok {
		return nil, ErrStatsUnavailable
	}
	return stats, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
