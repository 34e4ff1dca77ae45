package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/flappyfish-backend/internal/config"
	"github.com/flappyfish-backend/internal/domain"
)

// leaderboardKey is the sorted set holding every player's canonical high
// score. Postgres is the source of truth; this set is a rebuildable
// projection.
const leaderboardKey = "leaderboard:global"

// Cache provides Redis-based leaderboard reads and best-effort writes
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis leaderboard cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// playerInfoKey returns the Redis key for the player info cache
func playerInfoKey(userID string) string {
	return fmt.Sprintf("player:%s:info", userID)
}

// SetScore stores a player's high score. Callers supply the already-merged
// canonical score, so a plain ZADD is sufficient.
func (c *Cache) SetScore(ctx context.Context, userID string, score int64) error {
	err := c.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(score),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting score: %w", err)
	}
	return nil
}

// SetPlayerInfo caches a player's display name for leaderboard hydration
func (c *Cache) SetPlayerInfo(ctx context.Context, userID, username string) error {
	err := c.client.HSet(ctx, playerInfoKey(userID), "username", username).Err()
	if err != nil {
		return fmt.Errorf("setting player info: %w", err)
	}
	return nil
}

// TopN returns the top N players by descending high score, with usernames
// hydrated from the player info cache. Ranks are not assigned here.
func (c *Cache) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	pipe := c.client.Pipeline()
	nameCmds := make([]*redis.StringCmd, len(results))
	for i, result := range results {
		userID := result.Member.(string)
		entries[i] = domain.LeaderboardEntry{
			UserID:    userID,
			HighScore: int64(result.Score),
		}
		nameCmds[i] = pipe.HGet(ctx, playerInfoKey(userID), "username")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("hydrating usernames: %w", err)
	}
	for i, cmd := range nameCmds {
		if name, err := cmd.Result(); err == nil {
			entries[i].Username = name
		}
	}
	return entries, nil
}

// Rank returns a player's high score and dense rank, computed as one plus
// the count of strictly greater scores.
func (c *Cache) Rank(ctx context.Context, userID string) (*domain.PlayerRank, error) {
	score, err := c.client.ZScore(ctx, leaderboardKey, userID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting score: %w", err)
	}

	greater, err := c.client.ZCount(ctx, leaderboardKey, fmt.Sprintf("(%d", int64(score)), "+inf").Result()
	if err != nil {
		return nil, fmt.Errorf("counting greater scores: %w", err)
	}

	return &domain.PlayerRank{
		UserID:    userID,
		HighScore: int64(score),
		Rank:      greater + 1,
	}, nil
}

// BatchSetScores rebuilds score and player info entries using pipelining
func (c *Cache) BatchSetScores(ctx context.Context, entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, entry := range entries {
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{
			Score:  float64(entry.HighScore),
			Member: entry.UserID,
		})
		if entry.Username != "" {
			pipe.HSet(ctx, playerInfoKey(entry.UserID), "username", entry.Username)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}
