package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() Snapshot {
	return Snapshot{
		UserID:               "user-1",
		Username:             "fish",
		HighScore:            120,
		Coins:                340,
		UnlockedSkins:        []string{"default", "gold"},
		SelectedSkin:         "gold",
		OwnedPowerUps:        map[string]int{"shield": 2},
		AdsRemoved:           false,
		TotalGamesPlayed:     50,
		TotalCoinsEarned:     900,
		UnlockedAchievements: []string{"first_flight"},
		AchievementStats:     map[string]int{"games": 50},
	}
}

func TestMergeFirstSync(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := testSnapshot()

	p := Merge(nil, in, now)

	assert.Equal(t, in.UserID, p.UserID)
	assert.Equal(t, in.HighScore, p.HighScore)
	assert.Equal(t, in.Coins, p.Coins)
	assert.ElementsMatch(t, in.UnlockedSkins, p.UnlockedSkins)
	assert.Equal(t, in.SelectedSkin, p.SelectedSkin)
	assert.Equal(t, in.OwnedPowerUps, p.OwnedPowerUps)
	assert.Equal(t, in.TotalGamesPlayed, p.TotalGamesPlayed)
	assert.Equal(t, in.TotalCoinsEarned, p.TotalCoinsEarned)
	assert.ElementsMatch(t, in.UnlockedAchievements, p.UnlockedAchievements)
	assert.Equal(t, in.AchievementStats, p.AchievementStats)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestMergeFirstSyncAppliesDefaults(t *testing.T) {
	now := time.Now().UTC()

	p := Merge(nil, Snapshot{UserID: "user-1"}, now)

	assert.Equal(t, []string{DefaultSkin}, p.UnlockedSkins)
	assert.Equal(t, DefaultSkin, p.SelectedSkin)
	assert.NotNil(t, p.OwnedPowerUps)
	assert.NotNil(t, p.AchievementStats)
	assert.Empty(t, p.UnlockedAchievements)
}

func TestMergeMonotoneFields(t *testing.T) {
	now := time.Now().UTC()
	existing := Merge(nil, testSnapshot(), now)

	// A stale device syncs with lower counters everywhere.
	stale := testSnapshot()
	stale.HighScore = 10
	stale.TotalGamesPlayed = 5
	stale.TotalCoinsEarned = 100

	p := Merge(&existing, stale, now.Add(time.Minute))

	assert.Equal(t, existing.HighScore, p.HighScore)
	assert.Equal(t, existing.TotalGamesPlayed, p.TotalGamesPlayed)
	assert.Equal(t, existing.TotalCoinsEarned, p.TotalCoinsEarned)

	// And a fresher device raises them.
	fresh := testSnapshot()
	fresh.HighScore = 500
	fresh.TotalGamesPlayed = 80
	fresh.TotalCoinsEarned = 2000

	p = Merge(&existing, fresh, now.Add(time.Minute))

	assert.Equal(t, int64(500), p.HighScore)
	assert.Equal(t, int64(80), p.TotalGamesPlayed)
	assert.Equal(t, int64(2000), p.TotalCoinsEarned)
}

func TestMergeSetUnion(t *testing.T) {
	now := time.Now().UTC()
	existing := Merge(nil, testSnapshot(), now)

	in := testSnapshot()
	in.UnlockedSkins = []string{"silver"}
	in.UnlockedAchievements = []string{"night_owl"}

	p := Merge(&existing, in, now.Add(time.Minute))

	assert.ElementsMatch(t, []string{"default", "gold", "silver"}, p.UnlockedSkins)
	assert.ElementsMatch(t, []string{"first_flight", "night_owl"}, p.UnlockedAchievements)
}

func TestMergeDefaultSkinNeverEvicted(t *testing.T) {
	now := time.Now().UTC()
	existing := Merge(nil, testSnapshot(), now)

	in := testSnapshot()
	in.UnlockedSkins = []string{"gold"}

	p := Merge(&existing, in, now.Add(time.Minute))

	assert.Contains(t, p.UnlockedSkins, DefaultSkin)
}

func TestMergeStickyAdsRemoved(t *testing.T) {
	now := time.Now().UTC()
	in := testSnapshot()
	in.AdsRemoved = true
	existing := Merge(nil, in, now)
	require.True(t, existing.AdsRemoved)

	in = testSnapshot()
	in.AdsRemoved = false

	p := Merge(&existing, in, now.Add(time.Minute))

	assert.True(t, p.AdsRemoved)
}

func TestMergeClientAuthoritativeFields(t *testing.T) {
	now := time.Now().UTC()
	existing := Merge(nil, testSnapshot(), now)

	in := testSnapshot()
	in.Coins = 5
	in.SelectedSkin = "default"
	in.OwnedPowerUps = map[string]int{"magnet": 1}

	p := Merge(&existing, in, now.Add(time.Minute))

	assert.Equal(t, int64(5), p.Coins)
	assert.Equal(t, "default", p.SelectedSkin)
	assert.Equal(t, map[string]int{"magnet": 1}, p.OwnedPowerUps)
}

func TestMergeAchievementStats(t *testing.T) {
	now := time.Now().UTC()
	in := testSnapshot()
	in.AchievementStats = map[string]int{"games": 50, "pipes": 300}
	existing := Merge(nil, in, now)

	in = testSnapshot()
	in.AchievementStats = map[string]int{"games": 60, "crashes": 12}

	p := Merge(&existing, in, now.Add(time.Minute))

	// Shallow merge: incoming keys overwrite, untouched keys survive.
	assert.Equal(t, map[string]int{"games": 60, "pipes": 300, "crashes": 12}, p.AchievementStats)
}

func TestMergeTimestamps(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := created.Add(48 * time.Hour)

	existing := Merge(nil, testSnapshot(), created)
	p := Merge(&existing, testSnapshot(), later)

	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, later, p.UpdatedAt)
}

func TestMergeIdempotent(t *testing.T) {
	now := time.Now().UTC()
	in := testSnapshot()

	first := Merge(nil, in, now)
	second := Merge(&first, in, now.Add(time.Minute))

	// Every field equal except updated_at.
	second.UpdatedAt = first.UpdatedAt
	assert.Equal(t, first, second)
}

func TestMergeCommutativeOnMonotoneFields(t *testing.T) {
	now := time.Now().UTC()

	deviceA := testSnapshot()
	deviceA.HighScore = 300
	deviceA.UnlockedSkins = []string{"gold"}

	deviceB := testSnapshot()
	deviceB.HighScore = 250
	deviceB.UnlockedSkins = []string{"silver"}

	ab1 := Merge(nil, deviceA, now)
	ab := Merge(&ab1, deviceB, now.Add(time.Minute))

	ba1 := Merge(nil, deviceB, now)
	ba := Merge(&ba1, deviceA, now.Add(time.Minute))

	assert.Equal(t, ab.HighScore, ba.HighScore)
	assert.Equal(t, ab.UnlockedSkins, ba.UnlockedSkins)
	assert.Equal(t, ab.TotalGamesPlayed, ba.TotalGamesPlayed)
	assert.Equal(t, ab.TotalCoinsEarned, ba.TotalCoinsEarned)
	assert.Equal(t, ab.AdsRemoved, ba.AdsRemoved)
}

func TestSnapshotNormalize(t *testing.T) {
	var s Snapshot
	s.Normalize()

	assert.Equal(t, []string{DefaultSkin}, s.UnlockedSkins)
	assert.Equal(t, DefaultSkin, s.SelectedSkin)
	assert.NotNil(t, s.OwnedPowerUps)
	assert.NotNil(t, s.UnlockedAchievements)
	assert.NotNil(t, s.AchievementStats)
}
