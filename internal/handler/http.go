package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flappyfish-backend/internal/domain"
)

// GameService provides progress sync, narrow progress mutations, and
// leaderboard reads
type GameService interface {
	Sync(ctx context.Context, in domain.Snapshot) (*domain.PlayerProgress, error)
	GetProgress(ctx context.Context, userID string) (*domain.PlayerProgress, error)
	AddCoins(ctx context.Context, userID string, amount int64) (*domain.CoinBalance, error)
	SubmitHighScore(ctx context.Context, userID string, score int64) (*domain.HighScoreResult, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (*domain.PlayerRank, error)
	RecordStatusCheck(ctx context.Context, clientName string) (*domain.StatusCheck, error)
	StatusChecks(ctx context.Context) ([]domain.StatusCheck, error)
}

// PurchaseService records purchases and processes RevenueCat webhooks
type PurchaseService interface {
	RecordPurchase(ctx context.Context, req domain.RecordPurchaseRequest) (*domain.PurchaseRecord, error)
	ListPurchases(ctx context.Context, userID string) ([]domain.PurchaseRecord, error)
	HandleRevenueCat(ctx context.Context, payload domain.RevenueCatWebhook) error
}

// Handler provides HTTP handlers for the game backend API
type Handler struct {
	game      GameService
	purchases PurchaseService
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(game GameService, purchases PurchaseService, logger *slog.Logger) *Handler {
	return &Handler{
		game:      game,
		purchases: purchases,
		logger:    logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Liveness probes
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Root)
		r.Get("/health", h.Health)

		r.Post("/status", h.CreateStatusCheck)
		r.Get("/status", h.ListStatusChecks)

		r.Post("/game/sync", h.SyncGameData)
		r.Route("/game/{userID}", func(r chi.Router) {
			r.Get("/", h.GetGameData)
			r.Post("/coins/add", h.AddCoins)
			r.Post("/highscore", h.SubmitHighScore)
		})

		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/leaderboard/{userID}/rank", h.GetPlayerRank)

		r.Post("/purchases/record", h.RecordPurchase)
		r.Get("/purchases/{userID}", h.ListPurchases)

		r.Post("/webhook/revenuecat", h.RevenueCatWebhook)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps domain errors to HTTP status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	if domain.IsNotFoundError(err) {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.logger.Error(msg, "error", err)
	h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Root returns API identification
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Flappy Fish API",
		"version": "1.0.0",
	})
}

// Health returns service health with a timestamp
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateStatusCheck records a client liveness ping
func (h *Handler) CreateStatusCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientName string `json:"client_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	check, err := h.game.RecordStatusCheck(r.Context(), req.ClientName)
	if err != nil {
		h.writeServiceError(w, err, "failed to record status check")
		return
	}

	h.writeJSON(w, http.StatusOK, check)
}

// ListStatusChecks returns recorded status checks
func (h *Handler) ListStatusChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.game.StatusChecks(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list status checks")
		return
	}
	if checks == nil {
		checks = []domain.StatusCheck{}
	}
	h.writeJSON(w, http.StatusOK, checks)
}

// SyncGameData reconciles a full client snapshot against the stored record
func (h *Handler) SyncGameData(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if snapshot.UserID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	progress, err := h.game.Sync(r.Context(), snapshot)
	if err != nil {
		h.writeServiceError(w, err, "failed to sync game data")
		return
	}

	h.writeJSON(w, http.StatusOK, progress)
}

// GetGameData returns a player's stored progress
func (h *Handler) GetGameData(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	progress, err := h.game.GetProgress(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get game data")
		return
	}

	h.writeJSON(w, http.StatusOK, progress)
}

// AddCoins grants coins to a player's balance
func (h *Handler) AddCoins(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	balance, err := h.game.AddCoins(r.Context(), userID, amount)
	if err != nil {
		h.writeServiceError(w, err, "failed to add coins")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"coins":   balance.Coins,
		"added":   balance.Added,
	})
}

// SubmitHighScore conditionally raises a player's high score
func (h *Handler) SubmitHighScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	score, err := strconv.ParseInt(r.URL.Query().Get("score"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.game.SubmitHighScore(r.Context(), userID, score)
	if err != nil {
		h.writeServiceError(w, err, "failed to submit high score")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"high_score":    result.HighScore,
		"previous":      result.Previous,
		"is_new_record": result.IsNewRecord,
	})
}

// GetLeaderboard returns the top players by high score
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.game.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err, "failed to get leaderboard")
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// GetPlayerRank returns a single player's leaderboard standing
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rank, err := h.game.Rank(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get player rank")
		return
	}

	h.writeJSON(w, http.StatusOK, rank)
}

// RecordPurchase appends a purchase record
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.UserID == "" || req.ProductID == "" || req.TransactionID == "" || req.Platform == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	rec, err := h.purchases.RecordPurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to record purchase")
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// ListPurchases returns a player's purchases, newest first
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	records, err := h.purchases.ListPurchases(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to list purchases")
		return
	}
	if records == nil {
		records = []domain.PurchaseRecord{}
	}

	h.writeJSON(w, http.StatusOK, records)
}

// RevenueCatWebhook processes subscription platform events. It always
// reports success to the sender: a retry storm from the payment platform is
// worse than a dropped event, which reconciles on the next client sync.
func (h *Handler) RevenueCatWebhook(w http.ResponseWriter, r *http.Request) {
	var payload domain.RevenueCatWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("unparseable revenuecat webhook payload", "error", err)
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := h.purchases.HandleRevenueCat(r.Context(), payload); err != nil {
		h.logger.Error("revenuecat webhook processing failed",
			"event_type", payload.Event.Type,
			"user_id", payload.UserID(),
			"error", err,
		)
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
