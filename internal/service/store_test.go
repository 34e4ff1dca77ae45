package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/flappyfish-backend/internal/domain"
)

// memStore is an in-memory stand-in for the PostgreSQL repository,
// implementing the same contract the SQL queries do.
type memStore struct {
	progress     map[string]domain.PlayerProgress
	purchases    []domain.PurchaseRecord
	statusChecks []domain.StatusCheck
	failReads    bool
}

func newMemStore() *memStore {
	return &memStore{progress: make(map[string]domain.PlayerProgress)}
}

var errStoreDown = errors.New("store down")

func (m *memStore) GetProgress(_ context.Context, userID string) (*domain.PlayerProgress, error) {
	if m.failReads {
		return nil, errStoreDown
	}
	p, ok := m.progress[userID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

func (m *memStore) UpsertProgress(_ context.Context, p domain.PlayerProgress) error {
	m.progress[p.UserID] = p
	return nil
}

func (m *memStore) IncrementCoins(_ context.Context, userID string, delta int64) (*domain.PlayerProgress, error) {
	p, ok := m.progress[userID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	p.Coins += delta
	p.TotalCoinsEarned += delta
	p.UpdatedAt = time.Now().UTC()
	m.progress[userID] = p
	return &p, nil
}

func (m *memStore) SetHighScoreIfGreater(_ context.Context, userID string, score int64) (int64, int64, error) {
	p, ok := m.progress[userID]
	if !ok {
		return 0, 0, domain.ErrPlayerNotFound
	}
	previous := p.HighScore
	if score > p.HighScore {
		p.HighScore = score
	}
	p.UpdatedAt = time.Now().UTC()
	m.progress[userID] = p
	return p.HighScore, previous, nil
}

func (m *memStore) SetAdsRemoved(_ context.Context, userID string, removed bool) error {
	p, ok := m.progress[userID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.AdsRemoved = removed
	m.progress[userID] = p
	return nil
}

func (m *memStore) TopByScore(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if m.failReads {
		return nil, errStoreDown
	}
	entries := make([]domain.LeaderboardEntry, 0, len(m.progress))
	for _, p := range m.progress {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:    p.UserID,
			Username:  p.Username,
			HighScore: p.HighScore,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].HighScore != entries[j].HighScore {
			return entries[i].HighScore > entries[j].HighScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memStore) Rank(_ context.Context, userID string) (*domain.PlayerRank, error) {
	p, ok := m.progress[userID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	var greater int64
	for _, other := range m.progress {
		if other.HighScore > p.HighScore {
			greater++
		}
	}
	return &domain.PlayerRank{UserID: userID, HighScore: p.HighScore, Rank: greater + 1}, nil
}

func (m *memStore) InsertStatusCheck(_ context.Context, check domain.StatusCheck) error {
	m.statusChecks = append(m.statusChecks, check)
	return nil
}

func (m *memStore) ListStatusChecks(_ context.Context, limit int) ([]domain.StatusCheck, error) {
	checks := m.statusChecks
	if len(checks) > limit {
		checks = checks[:limit]
	}
	return checks, nil
}

func (m *memStore) InsertPurchase(_ context.Context, rec domain.PurchaseRecord) error {
	m.purchases = append(m.purchases, rec)
	return nil
}

func (m *memStore) ListPurchases(_ context.Context, userID string, limit int) ([]domain.PurchaseRecord, error) {
	var records []domain.PurchaseRecord
	for i := len(m.purchases) - 1; i >= 0 && len(records) < limit; i-- {
		if m.purchases[i].UserID == userID {
			records = append(records, m.purchases[i])
		}
	}
	return records, nil
}

// memCache is an in-memory stand-in for the Redis leaderboard cache
type memCache struct {
	scores map[string]int64
	names  map[string]string
	fail   bool
}

func newMemCache() *memCache {
	return &memCache{scores: make(map[string]int64), names: make(map[string]string)}
}

var errCacheDown = errors.New("cache down")

func (c *memCache) SetScore(_ context.Context, userID string, score int64) error {
	if c.fail {
		return errCacheDown
	}
	c.scores[userID] = score
	return nil
}

func (c *memCache) SetPlayerInfo(_ context.Context, userID, username string) error {
	if c.fail {
		return errCacheDown
	}
	c.names[userID] = username
	return nil
}

func (c *memCache) TopN(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if c.fail {
		return nil, errCacheDown
	}
	entries := make([]domain.LeaderboardEntry, 0, len(c.scores))
	for userID, score := range c.scores {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:    userID,
			Username:  c.names[userID],
			HighScore: score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].HighScore != entries[j].HighScore {
			return entries[i].HighScore > entries[j].HighScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (c *memCache) Rank(_ context.Context, userID string) (*domain.PlayerRank, error) {
	if c.fail {
		return nil, errCacheDown
	}
	score, ok := c.scores[userID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	var greater int64
	for _, other := range c.scores {
		if other > score {
			greater++
		}
	}
	return &domain.PlayerRank{UserID: userID, HighScore: score, Rank: greater + 1}, nil
}
