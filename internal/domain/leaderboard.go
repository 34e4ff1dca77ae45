package domain

// LeaderboardEntry represents a single ranked entry in the global leaderboard
type LeaderboardEntry struct {
	Rank      int64  `json:"rank"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	HighScore int64  `json:"high_score"`
}

// PlayerRank reports a single player's standing on the leaderboard
type PlayerRank struct {
	UserID    string `json:"user_id"`
	HighScore int64  `json:"high_score"`
	Rank      int64  `json:"rank"`
}

// AssignRanks assigns 1-based dense ranks to entries already sorted by
// descending high score: ties share a rank and the next distinct score's
// rank equals the count of strictly greater entries plus one.
func AssignRanks(entries []LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].HighScore == entries[i-1].HighScore {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = int64(i + 1)
		}
	}
}
