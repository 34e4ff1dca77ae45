package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flappyfish-backend/internal/domain"
)

// purchaseHistoryLimit caps how many purchases a listing returns
const purchaseHistoryLimit = 100

// PurchaseStore is the append-only purchase log
type PurchaseStore interface {
	InsertPurchase(ctx context.Context, rec domain.PurchaseRecord) error
	ListPurchases(ctx context.Context, userID string, limit int) ([]domain.PurchaseRecord, error)
}

// EntitlementStore applies purchase side effects to player progress
type EntitlementStore interface {
	IncrementCoins(ctx context.Context, userID string, delta int64) (*domain.PlayerProgress, error)
	SetAdsRemoved(ctx context.Context, userID string, removed bool) error
}

// PurchaseService records purchases and reconciles RevenueCat events
type PurchaseService struct {
	purchases PurchaseStore
	progress  EntitlementStore
	logger    *slog.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(purchases PurchaseStore, progress EntitlementStore, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{
		purchases: purchases,
		progress:  progress,
		logger:    logger,
	}
}

// RecordPurchase appends a client-reported purchase to the log
func (s *PurchaseService) RecordPurchase(ctx context.Context, req domain.RecordPurchaseRequest) (*domain.PurchaseRecord, error) {
	rec := domain.PurchaseRecord{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		ProductID:     req.ProductID,
		TransactionID: req.TransactionID,
		Platform:      req.Platform,
		Amount:        req.Amount,
		Currency:      req.Currency,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.purchases.InsertPurchase(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListPurchases returns a player's purchases, newest first
func (s *PurchaseService) ListPurchases(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	return s.purchases.ListPurchases(ctx, userID, purchaseHistoryLimit)
}

// HandleRevenueCat applies a RevenueCat webhook event: purchase events are
// logged and mapped to coin credits or the ads entitlement, refunds revoke
// the ads entitlement, cancellations and unknown event types are no-ops.
func (s *PurchaseService) HandleRevenueCat(ctx context.Context, payload domain.RevenueCatWebhook) error {
	userID := payload.UserID()
	event := payload.Event

	s.logger.Info("revenuecat webhook event", "type", event.Type, "user_id", userID, "product_id", event.ProductID)

	switch event.Type {
	case domain.EventInitialPurchase, domain.EventRenewal, domain.EventProductChange:
		platform := event.Store
		if platform == "" {
			platform = "unknown"
		}
		rec := domain.PurchaseRecord{
			ID:            uuid.NewString(),
			UserID:        userID,
			ProductID:     event.ProductID,
			TransactionID: event.TransactionID,
			Platform:      platform,
			EventType:     event.Type,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.purchases.InsertPurchase(ctx, rec); err != nil {
			return fmt.Errorf("recording webhook purchase: %w", err)
		}

		if coins, ok := domain.CoinBundles[event.ProductID]; ok {
			if _, err := s.progress.IncrementCoins(ctx, userID, coins); err != nil {
				return fmt.Errorf("crediting coin bundle: %w", err)
			}
		} else if event.ProductID == domain.ProductRemoveAds {
			if err := s.progress.SetAdsRemoved(ctx, userID, true); err != nil {
				return fmt.Errorf("granting ads entitlement: %w", err)
			}
		}

	case domain.EventRefund:
		if event.ProductID == domain.ProductRemoveAds {
			if err := s.progress.SetAdsRemoved(ctx, userID, false); err != nil {
				return fmt.Errorf("revoking ads entitlement: %w", err)
			}
		}

	case domain.EventCancellation:
		// Entitlements stay active until the period ends; nothing to revoke.
	}

	return nil
}
