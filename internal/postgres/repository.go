package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flappyfish-backend/internal/config"
	"github.com/flappyfish-backend/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS player_progress (
			user_id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) NOT NULL DEFAULT '',
			high_score BIGINT NOT NULL DEFAULT 0,
			coins BIGINT NOT NULL DEFAULT 0,
			unlocked_skins JSONB NOT NULL DEFAULT '["default"]',
			selected_skin VARCHAR(64) NOT NULL DEFAULT 'default',
			owned_power_ups JSONB NOT NULL DEFAULT '{}',
			ads_removed BOOLEAN NOT NULL DEFAULT FALSE,
			total_games_played BIGINT NOT NULL DEFAULT 0,
			total_coins_earned BIGINT NOT NULL DEFAULT 0,
			unlocked_achievements JSONB NOT NULL DEFAULT '[]',
			achievement_stats JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id UUID PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			product_id VARCHAR(128) NOT NULL,
			transaction_id VARCHAR(128) NOT NULL DEFAULT '',
			platform VARCHAR(32) NOT NULL DEFAULT 'unknown',
			amount DOUBLE PRECISION,
			currency VARCHAR(8) NOT NULL DEFAULT '',
			event_type VARCHAR(32) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS status_checks (
			id UUID PRIMARY KEY,
			client_name VARCHAR(255) NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_progress_high_score ON player_progress(high_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_transaction ON purchases(transaction_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

const progressColumns = `user_id, username, high_score, coins, unlocked_skins, selected_skin,
	owned_power_ups, ads_removed, total_games_played, total_coins_earned,
	unlocked_achievements, achievement_stats, created_at, updated_at`

// scanProgress reads one player_progress row, decoding the JSONB columns
func scanProgress(row pgx.Row) (*domain.PlayerProgress, error) {
	var p domain.PlayerProgress
	var skins, powerUps, achievements, stats []byte

	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.HighScore,
		&p.Coins,
		&skins,
		&p.SelectedSkin,
		&powerUps,
		&p.AdsRemoved,
		&p.TotalGamesPlayed,
		&p.TotalCoinsEarned,
		&achievements,
		&stats,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(skins, &p.UnlockedSkins); err != nil {
		return nil, fmt.Errorf("decoding unlocked_skins: %w", err)
	}
	if err := json.Unmarshal(powerUps, &p.OwnedPowerUps); err != nil {
		return nil, fmt.Errorf("decoding owned_power_ups: %w", err)
	}
	if err := json.Unmarshal(achievements, &p.UnlockedAchievements); err != nil {
		return nil, fmt.Errorf("decoding unlocked_achievements: %w", err)
	}
	if err := json.Unmarshal(stats, &p.AchievementStats); err != nil {
		return nil, fmt.Errorf("decoding achievement_stats: %w", err)
	}
	return &p, nil
}

// GetProgress retrieves a player's progress record
func (r *Repository) GetProgress(ctx context.Context, userID string) (*domain.PlayerProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM player_progress WHERE user_id = $1`
	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	return p, nil
}

// UpsertProgress stores a complete progress record, replacing any existing
// one. Callers always supply a full record produced by the merge engine.
func (r *Repository) UpsertProgress(ctx context.Context, p domain.PlayerProgress) error {
	skins, err := json.Marshal(p.UnlockedSkins)
	if err != nil {
		return fmt.Errorf("encoding unlocked_skins: %w", err)
	}
	powerUps, err := json.Marshal(p.OwnedPowerUps)
	if err != nil {
		return fmt.Errorf("encoding owned_power_ups: %w", err)
	}
	achievements, err := json.Marshal(p.UnlockedAchievements)
	if err != nil {
		return fmt.Errorf("encoding unlocked_achievements: %w", err)
	}
	stats, err := json.Marshal(p.AchievementStats)
	if err != nil {
		return fmt.Errorf("encoding achievement_stats: %w", err)
	}

	query := `
		INSERT INTO player_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			username = $2,
			high_score = $3,
			coins = $4,
			unlocked_skins = $5,
			selected_skin = $6,
			owned_power_ups = $7,
			ads_removed = $8,
			total_games_played = $9,
			total_coins_earned = $10,
			unlocked_achievements = $11,
			achievement_stats = $12,
			updated_at = $14
	`
	_, err = r.pool.Exec(ctx, query,
		p.UserID,
		p.Username,
		p.HighScore,
		p.Coins,
		skins,
		p.SelectedSkin,
		powerUps,
		p.AdsRemoved,
		p.TotalGamesPlayed,
		p.TotalCoinsEarned,
		achievements,
		stats,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting progress: %w", err)
	}
	return nil
}

// IncrementCoins atomically adds delta to a player's coin balance and
// lifetime earned total. Negative deltas are applied as given.
func (r *Repository) IncrementCoins(ctx context.Context, userID string, delta int64) (*domain.PlayerProgress, error) {
	query := `
		UPDATE player_progress
		SET coins = coins + $2, total_coins_earned = total_coins_earned + $2, updated_at = $3
		WHERE user_id = $1
		RETURNING ` + progressColumns
	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID, delta, time.Now().UTC()))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("incrementing coins: %w", err)
	}
	return p, nil
}

// SetHighScoreIfGreater atomically raises a player's high score to the given
// value if it is greater, returning the resulting and previous scores.
func (r *Repository) SetHighScoreIfGreater(ctx context.Context, userID string, score int64) (newHigh, previous int64, err error) {
	query := `
		WITH prev AS (
			SELECT high_score FROM player_progress WHERE user_id = $1
		)
		UPDATE player_progress
		SET high_score = GREATEST(high_score, $2), updated_at = $3
		WHERE user_id = $1
		RETURNING high_score, (SELECT high_score FROM prev)
	`
	err = r.pool.QueryRow(ctx, query, userID, score, time.Now().UTC()).Scan(&newHigh, &previous)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, 0, domain.ErrPlayerNotFound
		}
		return 0, 0, fmt.Errorf("updating high score: %w", err)
	}
	return newHigh, previous, nil
}

// SetAdsRemoved toggles the ads_removed entitlement flag
func (r *Repository) SetAdsRemoved(ctx context.Context, userID string, removed bool) error {
	query := `UPDATE player_progress SET ads_removed = $2, updated_at = $3 WHERE user_id = $1`
	result, err := r.pool.Exec(ctx, query, userID, removed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting ads_removed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

// TopByScore returns the top players ordered by descending high score with a
// stable tie-break (earliest created first). Ranks are not assigned here.
func (r *Repository) TopByScore(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT user_id, username, high_score
		FROM player_progress
		ORDER BY high_score DESC, created_at ASC, user_id ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top by score: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.HighScore); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Rank returns a player's high score and dense rank: one plus the count of
// players with a strictly greater high score.
func (r *Repository) Rank(ctx context.Context, userID string) (*domain.PlayerRank, error) {
	query := `
		SELECT p.high_score,
			   1 + (SELECT COUNT(*) FROM player_progress WHERE high_score > p.high_score)
		FROM player_progress p
		WHERE p.user_id = $1
	`
	rank := domain.PlayerRank{UserID: userID}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&rank.HighScore, &rank.Rank)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting rank: %w", err)
	}
	return &rank, nil
}

// AllHighScores returns every player's score entry, used to rebuild the
// leaderboard cache.
func (r *Repository) AllHighScores(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	query := `SELECT user_id, username, high_score FROM player_progress`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting all high scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.HighScore); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// InsertPurchase appends a purchase record to the log
func (r *Repository) InsertPurchase(ctx context.Context, rec domain.PurchaseRecord) error {
	query := `
		INSERT INTO purchases (id, user_id, product_id, transaction_id, platform, amount, currency, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ProductID,
		rec.TransactionID,
		rec.Platform,
		rec.Amount,
		rec.Currency,
		rec.EventType,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting purchase: %w", err)
	}
	return nil
}

// ListPurchases returns a player's purchases, newest first
func (r *Repository) ListPurchases(ctx context.Context, userID string, limit int) ([]domain.PurchaseRecord, error) {
	query := `
		SELECT id, user_id, product_id, transaction_id, platform, amount, currency, event_type, created_at
		FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	defer rows.Close()

	var records []domain.PurchaseRecord
	for rows.Next() {
		var rec domain.PurchaseRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.ProductID,
			&rec.TransactionID,
			&rec.Platform,
			&rec.Amount,
			&rec.Currency,
			&rec.EventType,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertStatusCheck records a client liveness ping
func (r *Repository) InsertStatusCheck(ctx context.Context, check domain.StatusCheck) error {
	query := `INSERT INTO status_checks (id, client_name, timestamp) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, check.ID, check.ClientName, check.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting status check: %w", err)
	}
	return nil
}

// ListStatusChecks returns recorded status checks, newest first
func (r *Repository) ListStatusChecks(ctx context.Context, limit int) ([]domain.StatusCheck, error) {
	query := `SELECT id, client_name, timestamp FROM status_checks ORDER BY timestamp DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing status checks: %w", err)
	}
	defer rows.Close()

	var checks []domain.StatusCheck
	for rows.Next() {
		var check domain.StatusCheck
		if err := rows.Scan(&check.ID, &check.ClientName, &check.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning status check: %w", err)
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}
