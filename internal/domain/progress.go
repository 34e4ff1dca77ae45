package domain

import "time"

// DefaultSkin is unlocked for every player and is never evicted by a merge.
const DefaultSkin = "default"

// PlayerProgress is the canonical progress record for a single player,
// keyed by the opaque user ID assigned on the device.
type PlayerProgress struct {
	UserID               string         `json:"user_id"`
	Username             string         `json:"username,omitempty"`
	HighScore            int64          `json:"high_score"`
	Coins                int64          `json:"coins"`
	UnlockedSkins        []string       `json:"unlocked_skins"`
	SelectedSkin         string         `json:"selected_skin"`
	OwnedPowerUps        map[string]int `json:"owned_power_ups"`
	AdsRemoved           bool           `json:"ads_removed"`
	TotalGamesPlayed     int64          `json:"total_games_played"`
	TotalCoinsEarned     int64          `json:"total_coins_earned"`
	UnlockedAchievements []string       `json:"unlocked_achievements"`
	AchievementStats     map[string]int `json:"achievement_stats"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Snapshot is a full set of progress values submitted by a client at sync
// time. The client applies its own defaults before submitting; Normalize
// covers the gaps for sparse payloads.
type Snapshot struct {
	UserID               string         `json:"user_id"`
	Username             string         `json:"username,omitempty"`
	HighScore            int64          `json:"high_score"`
	Coins                int64          `json:"coins"`
	UnlockedSkins        []string       `json:"unlocked_skins"`
	SelectedSkin         string         `json:"selected_skin"`
	OwnedPowerUps        map[string]int `json:"owned_power_ups"`
	AdsRemoved           bool           `json:"ads_removed"`
	TotalGamesPlayed     int64          `json:"total_games_played"`
	TotalCoinsEarned     int64          `json:"total_coins_earned"`
	UnlockedAchievements []string       `json:"unlocked_achievements"`
	AchievementStats     map[string]int `json:"achievement_stats"`
}

// Normalize fills in client-side defaults for fields the payload omitted.
func (s *Snapshot) Normalize() {
	if len(s.UnlockedSkins) == 0 {
		s.UnlockedSkins = []string{DefaultSkin}
	}
	if s.SelectedSkin == "" {
		s.SelectedSkin = DefaultSkin
	}
	if s.OwnedPowerUps == nil {
		s.OwnedPowerUps = map[string]int{}
	}
	if s.UnlockedAchievements == nil {
		s.UnlockedAchievements = []string{}
	}
	if s.AchievementStats == nil {
		s.AchievementStats = map[string]int{}
	}
}

// HighScoreResult reports the outcome of a conditional high-score update.
type HighScoreResult struct {
	HighScore   int64 `json:"high_score"`
	Previous    int64 `json:"previous"`
	IsNewRecord bool  `json:"is_new_record"`
}

// CoinBalance reports the outcome of a coin grant.
type CoinBalance struct {
	Coins int64 `json:"coins"`
	Added int64 `json:"added"`
}
