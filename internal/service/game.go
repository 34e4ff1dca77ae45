package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flappyfish-backend/internal/config"
	"github.com/flappyfish-backend/internal/domain"
)

// statusCheckLimit caps how many status check pings a listing returns
const statusCheckLimit = 1000

// ProgressStore is the durable keyed store for player progress records
type ProgressStore interface {
	GetProgress(ctx context.Context, userID string) (*domain.PlayerProgress, error)
	UpsertProgress(ctx context.Context, p domain.PlayerProgress) error
	IncrementCoins(ctx context.Context, userID string, delta int64) (*domain.PlayerProgress, error)
	SetHighScoreIfGreater(ctx context.Context, userID string, score int64) (newHigh, previous int64, err error)
	TopByScore(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (*domain.PlayerRank, error)
	InsertStatusCheck(ctx context.Context, check domain.StatusCheck) error
	ListStatusChecks(ctx context.Context, limit int) ([]domain.StatusCheck, error)
}

// LeaderboardCache is the derived, rebuildable leaderboard projection
type LeaderboardCache interface {
	SetScore(ctx context.Context, userID string, score int64) error
	SetPlayerInfo(ctx context.Context, userID, username string) error
	TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (*domain.PlayerRank, error)
}

// GameService provides business logic for progress sync and leaderboards
type GameService struct {
	store  ProgressStore
	cache  LeaderboardCache
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewGameService creates a new game service
func NewGameService(store ProgressStore, cache LeaderboardCache, cfg *config.LeaderboardConfig, logger *slog.Logger) *GameService {
	return &GameService{
		store:  store,
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

// Sync reconciles a client snapshot against the stored record and persists
// the merged result. First sync for a user ID creates the record.
//
// The read-merge-write here is intentionally not transactional: concurrent
// syncs for one player race, and the last writer's merge result wins,
// computed against whichever record it read. The per-field merge policy
// protects the monotone fields either way.
func (s *GameService) Sync(ctx context.Context, in domain.Snapshot) (*domain.PlayerProgress, error) {
	existing, err := s.store.GetProgress(ctx, in.UserID)
	if err != nil && !errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, fmt.Errorf("reading progress: %w", err)
	}

	merged := domain.Merge(existing, in, time.Now().UTC())

	if err := s.store.UpsertProgress(ctx, merged); err != nil {
		return nil, fmt.Errorf("writing progress: %w", err)
	}

	s.updateCache(ctx, merged.UserID, merged.Username, merged.HighScore)

	return &merged, nil
}

// GetProgress returns a player's stored progress record
func (s *GameService) GetProgress(ctx context.Context, userID string) (*domain.PlayerProgress, error) {
	return s.store.GetProgress(ctx, userID)
}

// AddCoins grants (or, for refunds, deducts) coins. The balance is not
// clamped at zero.
func (s *GameService) AddCoins(ctx context.Context, userID string, amount int64) (*domain.CoinBalance, error) {
	p, err := s.store.IncrementCoins(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	return &domain.CoinBalance{Coins: p.Coins, Added: amount}, nil
}

// SubmitHighScore raises the stored high score if the submitted score is
// greater and reports whether it strictly beat the previous record.
func (s *GameService) SubmitHighScore(ctx context.Context, userID string, score int64) (*domain.HighScoreResult, error) {
	newHigh, previous, err := s.store.SetHighScoreIfGreater(ctx, userID, score)
	if err != nil {
		return nil, err
	}

	s.updateCache(ctx, userID, "", newHigh)

	return &domain.HighScoreResult{
		HighScore:   newHigh,
		Previous:    previous,
		IsNewRecord: score > previous,
	}, nil
}

// Leaderboard returns the top players with dense ranks assigned, serving
// from the cache and falling back to the store when the cache is cold or
// unavailable.
func (s *GameService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	entries, err := s.cache.TopN(ctx, limit)
	if err != nil || len(entries) == 0 {
		if err != nil {
			s.logger.Warn("leaderboard cache read failed, falling back to store", "error", err)
		}
		entries, err = s.store.TopByScore(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("getting top by score: %w", err)
		}
	}

	domain.AssignRanks(entries)
	return entries, nil
}

// Rank returns a single player's leaderboard standing
func (s *GameService) Rank(ctx context.Context, userID string) (*domain.PlayerRank, error) {
	rank, err := s.cache.Rank(ctx, userID)
	if err == nil {
		return rank, nil
	}
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		s.logger.Warn("rank cache read failed, falling back to store", "error", err)
	}
	// The player may exist but not be cached yet; the store answer is exact.
	return s.store.Rank(ctx, userID)
}

// RecordStatusCheck stores a client liveness ping
func (s *GameService) RecordStatusCheck(ctx context.Context, clientName string) (*domain.StatusCheck, error) {
	check := domain.StatusCheck{
		ID:         uuid.NewString(),
		ClientName: clientName,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.store.InsertStatusCheck(ctx, check); err != nil {
		return nil, err
	}
	return &check, nil
}

// StatusChecks lists recorded status check pings
func (s *GameService) StatusChecks(ctx context.Context) ([]domain.StatusCheck, error) {
	return s.store.ListStatusChecks(ctx, statusCheckLimit)
}

// updateCache pushes the canonical high score into the leaderboard cache.
// Cache writes are best-effort; the rebuild worker repairs any misses.
func (s *GameService) updateCache(ctx context.Context, userID, username string, highScore int64) {
	if err := s.cache.SetScore(ctx, userID, highScore); err != nil {
		s.logger.Warn("failed to update leaderboard cache", "user_id", userID, "error", err)
		return
	}
	if username != "" {
		if err := s.cache.SetPlayerInfo(ctx, userID, username); err != nil {
			s.logger.Warn("failed to cache player info", "user_id", userID, "error", err)
		}
	}
}
