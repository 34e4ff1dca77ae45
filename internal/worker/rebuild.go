package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flappyfish-backend/internal/config"
	"github.com/flappyfish-backend/internal/domain"
)

// ScoreSource reads canonical high scores from the durable store
type ScoreSource interface {
	AllHighScores(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

// CacheTarget receives rebuilt leaderboard entries
type CacheTarget interface {
	BatchSetScores(ctx context.Context, entries []domain.LeaderboardEntry) error
}

// RebuildWorker periodically rebuilds the Redis leaderboard projection from
// PostgreSQL, repairing entries lost to best-effort cache writes or a cache
// restart.
type RebuildWorker struct {
	source  ScoreSource
	cache   CacheTarget
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewRebuildWorker creates a new rebuild worker
func NewRebuildWorker(source ScoreSource, cache CacheTarget, cfg *config.SyncConfig, logger *slog.Logger) *RebuildWorker {
	return &RebuildWorker{
		source: source,
		cache:  cache,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background rebuild process
func (w *RebuildWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("leaderboard rebuild worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background rebuild process
func (w *RebuildWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("leaderboard rebuild worker stopped")
	return nil
}

// run is the main worker loop
func (w *RebuildWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.Rebuild(ctx); err != nil {
				w.logger.Error("leaderboard rebuild failed", "error", err)
			}
		}
	}
}

// Rebuild loads every high score from the store and pushes it into the
// cache. Also run once at startup so the cache serves reads immediately.
func (w *RebuildWorker) Rebuild(ctx context.Context) error {
	startTime := time.Now()

	entries, err := w.source.AllHighScores(ctx)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		w.logger.Debug("no scores to rebuild")
		return nil
	}

	if err := w.cache.BatchSetScores(ctx, entries); err != nil {
		return err
	}

	w.logger.Info("leaderboard cache rebuilt",
		"players", len(entries),
		"duration", time.Since(startTime),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *RebuildWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
