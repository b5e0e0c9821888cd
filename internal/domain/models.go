package domain

import (
	"fmt"
	"time"
)

// PlayerStats is the ranked-season summary scraped from a public profile page.
// Pointer fields are optional on the page and nil when missing.
type PlayerStats struct {
	Wins                int  `json:"wins"`
	Losses              int  `json:"losses"`
	Rank                int  `json:"rank"`
	PrestigeLevel       *int `json:"prestige_level,omitempty"`
	PrestigeTier        int  `json:"prestige_tier"`
	MMR                 *int `json:"mmr,omitempty"`
	LeaderboardPosition *int `json:"leaderboard_position,omitempty"`
}

func (s PlayerStats) Games() int {
	return s.Wins + s.Losses
}

// Winrate returns the win percentage, 0 when no games were played.
func (s PlayerStats) Winrate() float64 {
	if s.Games() == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games()) * 100
}

func (s PlayerStats) FormatWinrate() string {
	return fmt.Sprintf("%.2f", s.Winrate())
}

// CachedStats is a PlayerStats together with the time it was scraped.
type CachedStats struct {
	Stats    PlayerStats
	StoredAt time.Time
}

func IntPtr(v int) *int {
	return &v
}
