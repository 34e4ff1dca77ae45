package domain

import (
	"sort"
	"time"
)

// Merge reconciles an incoming client snapshot with the stored record and
// returns the new canonical record. It is pure: no I/O, deterministic given
// its inputs and now, and safe to re-apply (idempotent for every field except
// UpdatedAt).
//
// Per-field policy when a record already exists:
//   - high_score, total_games_played, total_coins_earned: max (never regress)
//   - unlocked_skins, unlocked_achievements: set union
//   - ads_removed: sticky true (logical OR)
//   - achievement_stats: shallow merge, incoming overwrites per key
//   - coins, selected_skin, username, owned_power_ups: client-authoritative
//
// When existing is nil the snapshot is taken verbatim and both timestamps are
// set to now; this is the only path that establishes a player's identity.
func Merge(existing *PlayerProgress, in Snapshot, now time.Time) PlayerProgress {
	in.Normalize()

	if existing == nil {
		return PlayerProgress{
			UserID:               in.UserID,
			Username:             in.Username,
			HighScore:            in.HighScore,
			Coins:                in.Coins,
			UnlockedSkins:        unionStrings(in.UnlockedSkins, []string{DefaultSkin}),
			SelectedSkin:         in.SelectedSkin,
			OwnedPowerUps:        copyCounts(in.OwnedPowerUps),
			AdsRemoved:           in.AdsRemoved,
			TotalGamesPlayed:     in.TotalGamesPlayed,
			TotalCoinsEarned:     in.TotalCoinsEarned,
			UnlockedAchievements: unionStrings(in.UnlockedAchievements),
			AchievementStats:     copyCounts(in.AchievementStats),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
	}

	username := existing.Username
	if in.Username != "" {
		username = in.Username
	}

	return PlayerProgress{
		UserID:               in.UserID,
		Username:             username,
		HighScore:            maxInt64(existing.HighScore, in.HighScore),
		Coins:                in.Coins,
		UnlockedSkins:        unionStrings(existing.UnlockedSkins, in.UnlockedSkins, []string{DefaultSkin}),
		SelectedSkin:         in.SelectedSkin,
		OwnedPowerUps:        copyCounts(in.OwnedPowerUps),
		AdsRemoved:           existing.AdsRemoved || in.AdsRemoved,
		TotalGamesPlayed:     maxInt64(existing.TotalGamesPlayed, in.TotalGamesPlayed),
		TotalCoinsEarned:     maxInt64(existing.TotalCoinsEarned, in.TotalCoinsEarned),
		UnlockedAchievements: unionStrings(existing.UnlockedAchievements, in.UnlockedAchievements),
		AchievementStats:     mergeCounts(existing.AchievementStats, in.AchievementStats),
		CreatedAt:            existing.CreatedAt,
		UpdatedAt:            now,
	}
}

// unionStrings returns the sorted union of the given string sets.
func unionStrings(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, s := range set {
			seen[s] = struct{}{}
		}
	}
	union := make([]string, 0, len(seen))
	for s := range seen {
		union = append(union, s)
	}
	sort.Strings(union)
	return union
}

// mergeCounts shallow-merges two count maps; incoming keys overwrite.
func mergeCounts(existing, incoming map[string]int) map[string]int {
	merged := make(map[string]int, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
