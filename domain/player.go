package domain

import (
	"time"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
)

type PlayerStatus string

const (
	PlayerActive   PlayerStatus = "active"
	PlayerInactive PlayerStatus = "inactive"
	PlayerBlocked  PlayerStatus = "blocked"
)

// Player is the minimal registry row used to decide whether a player may be served.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID           string       `bun:"id,pk"          json:"id"`
	Status       PlayerStatus `bun:"status,notnull" json:"status"`
	RegisteredAt time.Time    `bun:"registered_at"  json:"registered_at"`
}

func (p Player) IsActive() bool {
	return p.Status == PlayerActive
}

// PlayerFeatures is a behavioural snapshot of one player. It is refreshed out of band
// and read-only to the engine.
type PlayerFeatures struct {
	bun.BaseModel `bun:"table:player_features,alias:pf"`

	PlayerID            string    `bun:"player_id,pk"         json:"player_id"`
	TotalSessions       int       `bun:"total_sessions"       json:"total_sessions"`
	TotalGamesPlayed    int       `bun:"total_games_played"   json:"total_games_played"`
	ActiveDays          int       `bun:"active_days"          json:"active_days"`
	AvgSessionMinutes   float64   `bun:"avg_session_minutes"  json:"avg_session_minutes"`
	TotalDeposits       float64   `bun:"total_deposits"       json:"total_deposits"`
	TotalBets           float64   `bun:"total_bets"           json:"total_bets"`
	TotalWins           float64   `bun:"total_wins"           json:"total_wins"`
	PreferredCategories []string  `bun:"preferred_categories" json:"preferred_categories"`
	FavoriteProviders   []string  `bun:"favorite_providers"   json:"favorite_providers"`
	RecentItemIDs       []string  `bun:"recent_item_ids"      json:"recent_item_ids"`
	Embedding           []float64 `bun:"embedding"            json:"embedding,omitempty"`
	RiskTier            string    `bun:"risk_tier"            json:"risk_tier"`
	VIPTier             string    `bun:"vip_tier"             json:"vip_tier"`
	PlayStyle           string    `bun:"play_style"           json:"play_style"`
	IsNewPlayer         bool      `bun:"is_new_player"        json:"is_new_player"`
	WinRate             float64   `bun:"win_rate"             json:"win_rate"`
	UpdatedAt           time.Time `bun:"updated_at"           json:"updated_at"`
}

// DefaultNewPlayerFeatures synthesises the profile used when no feature row exists yet.
func DefaultNewPlayerFeatures(playerID string) PlayerFeatures {
	return PlayerFeatures{
		PlayerID:    playerID,
		IsNewPlayer: true,
		RiskTier:    "unknown",
		VIPTier:     "none",
		PlayStyle:   "unknown",
		UpdatedAt:   time.Now().UTC(),
	}
}

// DistinctCategories counts distinct preferred categories.
func (f PlayerFeatures) DistinctCategories() int {
	return len(lo.Uniq(f.PreferredCategories))
}

// Prefers reports whether category is among the preferred categories.
func (f PlayerFeatures) Prefers(category string) bool {
	return lo.Contains(f.PreferredCategories, category)
}

// Likes reports whether provider is among the favourite providers.
func (f PlayerFeatures) Likes(provider string) bool {
	return lo.Contains(f.FavoriteProviders, provider)
}

// Snapshot is the subset of features stored with every served recommendation.
func (f PlayerFeatures) Snapshot() map[string]any {
	return map[string]any{
		"total_sessions":     f.TotalSessions,
		"total_games_played": f.TotalGamesPlayed,
		"is_new_player":      f.IsNewPlayer,
		"vip_tier":           f.VIPTier,
		"risk_tier":          f.RiskTier,
		"play_style":         f.PlayStyle,
		"win_rate":           f.WinRate,
	}
}

// Env exposes the features to business rule expressions.
func (f PlayerFeatures) Env() map[string]any {
	env := f.Snapshot()
	env["id"] = f.PlayerID
	env["active_days"] = f.ActiveDays
	env["total_deposits"] = f.TotalDeposits
	env["preferred_categories"] = f.PreferredCategories
	env["favorite_providers"] = f.FavoriteProviders
	return env
}
