package server

import (
	"context"
	"encoding/json"
	"errors"
	"gwent-profile-helper/internal/augment"
	"gwent-profile-helper/internal/constants"
	"gwent-profile-helper/internal/domain"
	"gwent-profile-helper/internal/service"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type ProfileServer struct {
	stats     *service.StatsService
	pages     service.PageSource
	augmenter *augment.Augmenter
	logger    zerolog.Logger
}

func NewProfileServer(stats *service.StatsService, pages service.PageSource, augmenter *augment.Augmenter, logger zerolog.Logger) *ProfileServer {
	return &ProfileServer{stats: stats, pages: pages, augmenter: augmenter, logger: logger}
}

type statsResponse struct {
	Nick    string             `json:"nick"`
	Winrate string             `json:"winrate"`
	Stats   domain.PlayerStats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler routes the augmented profile pages and the stats API. The stats API allows
// cross-origin calls so a script running on the upstream page can use it.
func (s *ProfileServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /{locale}/profile/{nick}", s.handleProfile)

	api := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	mux.Handle("/api/stats/{nick}", api.Handler(http.HandlerFunc(s.handleStats)))

	return mux
}

func (s *ProfileServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}

	nick := r.PathValue("nick")
	locale := s.stats.LocaleFromPath(r.URL.Path)

	page, err := s.pages.GetProfilePage(ctx, locale, nick)
	if err != nil {
		logger.Error().Err(err).Str("nick", nick).Msg("failed to fetch profile page")
		http.Error(w, "failed to fetch profile page", http.StatusBadGateway)
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		logger.Error().Err(err).Str("nick", nick).Msg("failed to parse profile page")
		http.Error(w, "failed to parse profile page", http.StatusBadGateway)
		return
	}

	session := s.augmenter.NewSession(doc, locale)
	result := session.Render(ctx)
	logger.Debug().
		Str("nick", nick).
		Int("rows", result.Rows).
		Int("rendered", result.Rendered).
		Msg("profile augmented")

	out, err := session.HTML()
	if err != nil {
		logger.Error().Err(err).Msg("failed to render augmented page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(out))
}

func (s *ProfileServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	nick := r.PathValue("nick")
	locale := r.URL.Query().Get("locale")
	if len(locale) != 2 {
		locale = s.stats.DefaultLocale()
	}

	stats, err := s.stats.FetchStats(r.Context(), locale, nick)
	if errors.Is(err, service.ErrStatsUnavailable) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no ranked stats for " + nick})
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("nick", nick).Msg("stats lookup failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Nick:    nick,
		Winrate: stats.FormatWinrate(),
		Stats:   *stats,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
